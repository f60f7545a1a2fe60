package document

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/database"
	"github.com/nikhilbhutani/ragdesk/internal/models"
	"github.com/nikhilbhutani/ragdesk/internal/storage"
)

const ValidationFailedMessage = "document validation failed"

type Service struct {
	db        *database.DB
	storage   storage.Storage
	validator *Validator
	extractor TextExtractor
	bucket    string
}

func NewService(db *database.DB, store storage.Storage, validator *Validator, extractor TextExtractor) *Service {
	return &Service{
		db:        db,
		storage:   store,
		validator: validator,
		extractor: extractor,
		bucket:    storage.BucketDocuments,
	}
}

// CreateTask validates an upload and records the outcome. Only uploads that
// pass keep their bytes on disk. A failed upload is still recorded and
// returned as an *apperr.ValidationError.
func (s *Service) CreateTask(ctx context.Context, fileName string, data []byte) (*models.DocumentTask, error) {
	if strings.TrimSpace(fileName) == "" {
		fileName = "uploaded"
	}

	report := s.validator.Validate(ctx, fileName, data)
	now := time.Now().UTC()

	task := &models.DocumentTask{
		ID:         models.NewID(),
		FileName:   fileName,
		FileType:   GuessFileType(fileName),
		FileSize:   int64(len(data)),
		Status:     models.TaskStatusSuccess,
		Validation: report,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if report.Passed {
		path, err := s.storage.Upload(ctx, s.bucket, task.ID+filepath.Ext(fileName), bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("store document: %w", err)
		}
		task.FilePath = path
	} else {
		msg := ValidationFailedMessage
		task.Status = models.TaskStatusFailed
		task.Message = &msg
	}

	if err := s.insert(ctx, task); err != nil {
		if task.FilePath != "" {
			if derr := s.storage.Delete(ctx, s.bucket, task.ID+filepath.Ext(fileName)); derr != nil {
				slog.Warn("failed to remove stored document", "task_id", task.ID, "error", derr)
			}
		}
		return nil, err
	}

	slog.Info("document task recorded", "task_id", task.ID, "file_name", fileName, "status", task.Status)

	if !report.Passed {
		return task, &apperr.ValidationError{
			TaskID:  task.ID,
			Message: ValidationFailedMessage,
			Rules:   report.Rules,
		}
	}
	return task, nil
}

func (s *Service) insert(ctx context.Context, task *models.DocumentTask) error {
	validation, err := json.Marshal(task.Validation)
	if err != nil {
		return fmt.Errorf("encode validation: %w", err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO document_tasks (task_id, file_name, file_type, file_size, status, validation, message, file_path, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			task.ID, task.FileName, task.FileType, task.FileSize, task.Status, string(validation), task.Message, task.FilePath, task.CreatedAt, task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert document task: %w", err)
		}
		return nil
	})
}

func (s *Service) GetTask(ctx context.Context, id string) (*models.DocumentTask, error) {
	var (
		task       models.DocumentTask
		validation string
		message    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT task_id, file_name, file_type, file_size, status, validation, message, file_path, created_at, updated_at
		 FROM document_tasks WHERE task_id = ?`), id,
	).Scan(&task.ID, &task.FileName, &task.FileType, &task.FileSize, &task.Status, &validation, &message, &task.FilePath, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document task %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document task: %w", err)
	}

	if err := json.Unmarshal([]byte(validation), &task.Validation); err != nil {
		return nil, fmt.Errorf("decode validation: %w", err)
	}
	if message.Valid {
		task.Message = &message.String
	}
	return &task, nil
}

// DocumentText extracts the text of a successfully validated document.
func (s *Service) DocumentText(ctx context.Context, task *models.DocumentTask) (string, error) {
	if task.Status != models.TaskStatusSuccess || task.FilePath == "" {
		return "", fmt.Errorf("document task %s has no stored file: %w", task.ID, apperr.ErrPrecondition)
	}
	text, err := s.extractor.ExtractFile(ctx, task.FilePath)
	if err != nil {
		return "", fmt.Errorf("extract document text: %w", err)
	}
	return text, nil
}
