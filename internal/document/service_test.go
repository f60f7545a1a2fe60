package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/database"
	"github.com/nikhilbhutani/ragdesk/internal/models"
	"github.com/nikhilbhutani/ragdesk/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	docDir := filepath.Join(t.TempDir(), "documents")
	store, err := storage.NewLocalStorage(map[string]string{storage.BucketDocuments: docDir})
	require.NoError(t, err)

	extractor := NewTextExtractor()
	validator := NewValidator(testUploadConfig(), docDir, extractor)
	return NewService(db, store, validator, extractor), docDir
}

func TestCreateTask_Success(t *testing.T) {
	ctx := context.Background()
	svc, docDir := newTestService(t)
	body := strings.Repeat("The handbook covers onboarding. ", 3)

	task, err := svc.CreateTask(ctx, "handbook.txt", []byte(body))
	require.NoError(t, err)

	assert.Len(t, task.ID, 32)
	assert.Equal(t, models.TaskStatusSuccess, task.Status)
	assert.True(t, task.Validation.Passed)
	assert.Nil(t, task.Message)
	assert.Equal(t, "text/plain", task.FileType)
	assert.Equal(t, filepath.Join(docDir, task.ID+".txt"), task.FilePath)
	assert.FileExists(t, task.FilePath)

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.FilePath, got.FilePath)
	assert.Equal(t, task.Validation, got.Validation)
	assert.Equal(t, int64(len(body)), got.FileSize)

	text, err := svc.DocumentText(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(body), text)
}

func TestCreateTask_ValidationFailure(t *testing.T) {
	ctx := context.Background()
	svc, docDir := newTestService(t)

	task, err := svc.CreateTask(ctx, "malware.exe", []byte("MZ"))

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ValidationFailedMessage, verr.Message)
	assert.Equal(t, task.ID, verr.TaskID)
	require.Len(t, verr.Rules, 3)
	assert.Equal(t, models.RuleExtension, verr.Rules[0].Rule)
	assert.False(t, verr.Rules[0].Passed)
	assert.Equal(t, models.RuleSize, verr.Rules[1].Rule)
	assert.True(t, verr.Rules[1].Passed)
	assert.Equal(t, models.RuleContentLength, verr.Rules[2].Rule)
	assert.False(t, verr.Rules[2].Passed)

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Empty(t, got.FilePath)
	require.NotNil(t, got.Message)
	assert.Equal(t, ValidationFailedMessage, *got.Message)

	entries, err := os.ReadDir(docDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed uploads keep no file")

	_, err = svc.DocumentText(ctx, got)
	assert.ErrorIs(t, err, apperr.ErrPrecondition)
}

func TestCreateTask_DefaultsFileName(t *testing.T) {
	svc, _ := newTestService(t)

	task, err := svc.CreateTask(context.Background(), "", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, "uploaded", task.FileName)
	assert.Equal(t, "application/octet-stream", task.FileType)
}

func TestCreateTask_InsertFailureRemovesFile(t *testing.T) {
	svc, docDir := newTestService(t)
	require.NoError(t, svc.db.Close())
	body := strings.Repeat("The handbook covers onboarding. ", 3)

	_, err := svc.CreateTask(context.Background(), "handbook.txt", []byte(body))
	require.Error(t, err)

	entries, err := os.ReadDir(docDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetTask_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
