package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ValidationRule struct {
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type Validation struct {
	Passed bool             `json:"passed"`
	Rules  []ValidationRule `json:"rules"`
}

// DocumentTask records one upload and its validation outcome. FilePath is
// empty unless the upload passed validation.
type DocumentTask struct {
	ID         string     `json:"taskId" db:"task_id"`
	FileName   string     `json:"fileName" db:"file_name"`
	FileType   string     `json:"fileType" db:"file_type"`
	FileSize   int64      `json:"fileSize" db:"file_size"`
	Status     string     `json:"status" db:"status"`
	Validation Validation `json:"validation" db:"validation"`
	Message    *string    `json:"message" db:"message"`
	FilePath   string     `json:"-" db:"file_path"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

const (
	TaskStatusPending = "pending"
	TaskStatusSuccess = "success"
	TaskStatusFailed  = "failed"
)

const (
	RuleExtension     = "extension"
	RuleSize          = "size"
	RuleContentParse  = "content_parse"
	RuleContentLength = "content_length"
)

// NewID returns a random 32 character hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
