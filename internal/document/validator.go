package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/ragdesk/internal/config"
	"github.com/nikhilbhutani/ragdesk/internal/models"
)

// Validator runs the upload rules in a fixed order: extension, size,
// content_parse, content_length. The content rules only run when the first
// two pass.
type Validator struct {
	allowed   []string
	maxMB     int
	minLength int
	tempDir   string
	extractor TextExtractor
}

func NewValidator(cfg config.UploadConfig, tempDir string, extractor TextExtractor) *Validator {
	return &Validator{
		allowed:   cfg.AllowedExtensions,
		maxMB:     cfg.MaxFileSizeMB,
		minLength: cfg.MinDocumentLength,
		tempDir:   tempDir,
		extractor: extractor,
	}
}

func (v *Validator) Validate(ctx context.Context, fileName string, data []byte) models.Validation {
	ext := strings.ToLower(filepath.Ext(fileName))
	size := int64(len(data))

	rules := make([]models.ValidationRule, 0, 4)

	extOK := slices.Contains(v.allowed, ext)
	rules = append(rules, models.ValidationRule{
		Rule:   models.RuleExtension,
		Passed: extOK,
		Detail: fmt.Sprintf("allowed: %s", formatList(v.allowed)),
	})

	sizeOK := size <= int64(v.maxMB)*1024*1024
	rules = append(rules, models.ValidationRule{
		Rule:   models.RuleSize,
		Passed: sizeOK,
		Detail: fmt.Sprintf("<= %dMB", v.maxMB),
	})

	if !extOK || !sizeOK {
		rules = append(rules, models.ValidationRule{
			Rule:   models.RuleContentLength,
			Passed: false,
			Detail: "skipped due to previous failure",
		})
		return summarize(rules)
	}

	text, err := v.parse(ctx, ext, data)
	if err != nil {
		rules = append(rules, models.ValidationRule{
			Rule:   models.RuleContentParse,
			Passed: false,
			Detail: err.Error(),
		})
		return summarize(rules)
	}

	rules = append(rules, models.ValidationRule{
		Rule:   models.RuleContentLength,
		Passed: utf8.RuneCountInString(strings.TrimSpace(text)) >= v.minLength,
		Detail: fmt.Sprintf(">= %d characters", v.minLength),
	})
	return summarize(rules)
}

// parse writes data to a temporary file next to the stored documents and
// extracts it. The file is removed on every path out, panics included.
func (v *Validator) parse(ctx context.Context, ext string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(v.tempDir, "_tmp_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return v.extractor.ExtractFile(ctx, tmp.Name())
}

func summarize(rules []models.ValidationRule) models.Validation {
	passed := true
	for _, r := range rules {
		passed = passed && r.Passed
	}
	return models.Validation{Passed: passed, Rules: rules}
}

func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
