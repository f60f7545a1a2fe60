package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/models"
	"github.com/nikhilbhutani/ragdesk/internal/queue"
)

type Builder interface {
	Build(ctx context.Context, storeID string) (*models.VectorStore, error)
}

type VectorStoreWorker struct {
	builder Builder
}

func NewVectorStoreWorker(builder Builder) *VectorStoreWorker {
	return &VectorStoreWorker{builder: builder}
}

// ProcessTask builds the index for one vector store record. Unknown stores
// and malformed payloads are not retried.
func (w *VectorStoreWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.VectorStoreBuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.StoreID == "" {
		return fmt.Errorf("payload has no store id: %w", asynq.SkipRetry)
	}

	slog.Info("building vector store", "store_id", payload.StoreID)

	rec, err := w.builder.Build(ctx, payload.StoreID)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("build vector store %s: %v: %w", payload.StoreID, err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("build vector store %s: %w", payload.StoreID, err)
	}

	slog.Info("vector store built", "store_id", rec.ID, "backend", rec.Config.EmbeddingBackend)
	return nil
}
