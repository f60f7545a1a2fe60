package document

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/ragdesk/pkg/textextract"
)

// TextExtractor turns a stored file into plain text.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

type extractor struct{}

func NewTextExtractor() TextExtractor {
	return &extractor{}
}

func (e *extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out, err := textextract.ExtractFile(path)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

var knownTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".html":     "text/html",
	".htm":      "text/html",
}

// GuessFileType maps a file name to a MIME type, defaulting to
// application/octet-stream.
func GuessFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	return "application/octet-stream"
}
