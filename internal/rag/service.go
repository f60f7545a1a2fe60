package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/cache"
	"github.com/nikhilbhutani/ragdesk/internal/database"
	"github.com/nikhilbhutani/ragdesk/internal/embedding"
	"github.com/nikhilbhutani/ragdesk/internal/models"
	"github.com/nikhilbhutani/ragdesk/internal/queue"
	"github.com/nikhilbhutani/ragdesk/internal/vectorstore"
	"github.com/nikhilbhutani/ragdesk/pkg/chunker"
)

// DocumentSource gives the service access to validated uploads.
type DocumentSource interface {
	GetTask(ctx context.Context, id string) (*models.DocumentTask, error)
	DocumentText(ctx context.Context, task *models.DocumentTask) (string, error)
}

type BuildEnqueuer interface {
	EnqueueVectorStoreBuild(payload queue.VectorStoreBuildPayload) error
}

type Service struct {
	db       *database.DB
	docs     DocumentSource
	indexes  vectorstore.Store
	embed    embedding.Selection
	cache    *cache.Cache
	cacheTTL time.Duration
	queue    BuildEnqueuer
}

type Option func(*Service)

// WithCache caches recall responses for ttl.
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithEnqueuer hands index builds to the worker instead of building inline.
func WithEnqueuer(q BuildEnqueuer) Option {
	return func(s *Service) {
		s.queue = q
	}
}

func NewService(db *database.DB, docs DocumentSource, indexes vectorstore.Store, embed embedding.Selection, opts ...Option) *Service {
	s := &Service{
		db:      db,
		docs:    docs,
		indexes: indexes,
		embed:   embed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateRequest struct {
	DocumentTaskID string                   `json:"documentTaskId"`
	Config         models.VectorStoreConfig `json:"config"`
}

func (r CreateRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.DocumentTaskID) == "" {
		problems = append(problems, "documentTaskId is required")
	}
	if strings.TrimSpace(r.Config.Name) == "" {
		problems = append(problems, "config.name is required")
	}
	if r.Config.ChunkSize <= 0 {
		problems = append(problems, "config.chunkSize must be positive")
	}
	if r.Config.Overlap < 0 || r.Config.Overlap >= r.Config.ChunkSize {
		problems = append(problems, "config.overlap must be in [0, chunkSize)")
	}
	if r.Config.TopK < 1 {
		problems = append(problems, "config.topK must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), apperr.ErrBadRequest)
	}
	return nil
}

// Create records a new vector store for a validated document and builds its
// index, inline or through the worker queue.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.VectorStore, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task, err := s.docs.GetTask(ctx, req.DocumentTaskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusSuccess {
		return nil, fmt.Errorf("document task %s has status %s: %w", task.ID, task.Status, apperr.ErrPrecondition)
	}

	now := time.Now().UTC()
	cfg := req.Config
	cfg.EmbeddingBackend = ""
	rec := &models.VectorStore{
		ID:             models.NewID(),
		Name:           cfg.Name,
		DocumentTaskID: task.ID,
		Config:         cfg,
		Status:         models.StoreStatusBuilding,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.insert(ctx, rec); err != nil {
		return nil, err
	}

	if s.queue != nil {
		err := s.queue.EnqueueVectorStoreBuild(queue.VectorStoreBuildPayload{StoreID: rec.ID})
		if err == nil {
			slog.Info("vector store build queued", "store_id", rec.ID)
			return rec, nil
		}
		slog.Warn("enqueue vector store build failed, building inline", "store_id", rec.ID, "error", err)
	}

	return s.Build(ctx, rec.ID)
}

// Build chunks the document, embeds it and persists the index. The record
// ends up ready, or failed with the reason.
func (s *Service) Build(ctx context.Context, storeID string) (*models.VectorStore, error) {
	rec, err := s.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	backend, err := s.build(ctx, rec)
	if err != nil {
		reason := err.Error()
		rec.Status = models.StoreStatusFailed
		rec.FailureReason = &reason
		cleanup := context.WithoutCancel(ctx)
		if uerr := s.update(cleanup, rec); uerr != nil {
			slog.Error("failed to record vector store failure", "store_id", rec.ID, "error", uerr)
		}
		if derr := s.indexes.Delete(cleanup, rec.ID); derr != nil {
			slog.Warn("failed to remove partial vector index", "store_id", rec.ID, "error", derr)
		}
		return nil, fmt.Errorf("build vector store %s: %w", rec.ID, err)
	}

	rec.Status = models.StoreStatusReady
	rec.FailureReason = nil
	rec.Config.EmbeddingBackend = backend
	if err := s.update(ctx, rec); err != nil {
		return nil, err
	}
	s.InvalidateRecall(ctx, rec.ID)

	slog.Info("vector store ready", "store_id", rec.ID, "backend", backend)
	return rec, nil
}

func (s *Service) build(ctx context.Context, rec *models.VectorStore) (models.EmbeddingBackend, error) {
	task, err := s.docs.GetTask(ctx, rec.DocumentTaskID)
	if err != nil {
		return "", err
	}
	text, err := s.docs.DocumentText(ctx, task)
	if err != nil {
		return "", err
	}

	chunks := ChunkText(text, chunker.ChunkOptions{
		ChunkSize:    rec.Config.ChunkSize,
		ChunkOverlap: rec.Config.Overlap,
	}, task.FileName, task.ID)
	if len(chunks) == 0 {
		return "", errors.New("no chunks generated from document")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, backend, err := s.embedChunks(ctx, rec.ID, texts)
	if err != nil {
		return "", err
	}

	idx, err := vectorstore.NewIndex(embedding.ToChromemFunc(s.embed.For(backend)))
	if err != nil {
		return "", err
	}

	items := make([]vectorstore.Chunk, len(chunks))
	for i, c := range chunks {
		items[i] = vectorstore.Chunk{
			ID:         fmt.Sprintf("%s-chunk-%d", rec.ID, c.Index),
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  vectors[i],
			Metadata:   c.Metadata,
		}
	}
	if err := idx.Upsert(ctx, items); err != nil {
		return "", fmt.Errorf("index chunks: %w", err)
	}

	if err := s.indexes.Save(ctx, rec.ID, idx); err != nil {
		return "", fmt.Errorf("save index: %w", err)
	}
	return backend, nil
}

// embedChunks embeds with the primary embedder when one is available and
// switches the whole store to deterministic vectors on an upstream failure.
func (s *Service) embedChunks(ctx context.Context, storeID string, texts []string) ([][]float32, models.EmbeddingBackend, error) {
	if s.embed.Primary != nil {
		vectors, err := s.embed.Primary.Embed(ctx, texts)
		if err == nil {
			return vectors, models.EmbeddingBackendPrimary, nil
		}
		if !embedding.IsUpstream(err) || ctx.Err() != nil {
			return nil, "", fmt.Errorf("embed chunks: %w", err)
		}
		slog.Warn("embedding model failed, falling back to deterministic embeddings", "store_id", storeID, "error", err)
	}

	vectors, err := embedding.Deterministic{}.Embed(ctx, texts)
	if err != nil {
		return nil, "", fmt.Errorf("embed chunks: %w", err)
	}
	return vectors, models.EmbeddingBackendDeterministic, nil
}

func (s *Service) insert(ctx context.Context, rec *models.VectorStore) error {
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO vector_stores (store_id, name, document_task_id, config, status, failure_reason, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			rec.ID, rec.Name, rec.DocumentTaskID, string(cfg), rec.Status, rec.FailureReason, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert vector store: %w", err)
		}
		return nil
	})
}

func (s *Service) update(ctx context.Context, rec *models.VectorStore) error {
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	rec.UpdatedAt = time.Now().UTC()

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`UPDATE vector_stores SET config = ?, status = ?, failure_reason = ?, updated_at = ? WHERE store_id = ?`),
			string(cfg), rec.Status, rec.FailureReason, rec.UpdatedAt, rec.ID,
		)
		if err != nil {
			return fmt.Errorf("update vector store: %w", err)
		}
		return nil
	})
}

const selectStore = `SELECT store_id, name, document_task_id, config, status, failure_reason, created_at, updated_at FROM vector_stores`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(row rowScanner) (*models.VectorStore, error) {
	var (
		rec    models.VectorStore
		cfg    string
		reason sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.DocumentTaskID, &cfg, &rec.Status, &reason, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &rec.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if reason.Valid {
		rec.FailureReason = &reason.String
	}
	return &rec, nil
}

func (s *Service) Get(ctx context.Context, storeID string) (*models.VectorStore, error) {
	rec, err := scanStore(s.db.QueryRowContext(ctx, s.db.Rebind(selectStore+` WHERE store_id = ?`), storeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vector store %s: %w", storeID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vector store: %w", err)
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context) ([]models.VectorStore, error) {
	rows, err := s.db.QueryContext(ctx, selectStore+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list vector stores: %w", err)
	}
	defer rows.Close()

	stores := []models.VectorStore{}
	for rows.Next() {
		rec, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vector store: %w", err)
		}
		stores = append(stores, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vector stores: %w", err)
	}
	return stores, nil
}

type TaskStatus struct {
	TaskID   string  `json:"taskId"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  *string `json:"message"`
}

// TaskStatus reports build progress. The build task id is the store id.
func (s *Service) TaskStatus(ctx context.Context, storeID, taskID string) (*TaskStatus, error) {
	rec, err := s.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if taskID != rec.ID {
		return nil, fmt.Errorf("build task %s for vector store %s: %w", taskID, storeID, apperr.ErrNotFound)
	}

	progress := 0.5
	if rec.Status == models.StoreStatusReady {
		progress = 1.0
	}
	return &TaskStatus{
		TaskID:   rec.ID,
		Status:   rec.Status,
		Progress: progress,
		Message:  rec.FailureReason,
	}, nil
}
