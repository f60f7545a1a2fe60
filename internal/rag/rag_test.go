package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/database"
	"github.com/nikhilbhutani/ragdesk/internal/embedding"
	"github.com/nikhilbhutani/ragdesk/internal/models"
	"github.com/nikhilbhutani/ragdesk/internal/queue"
	"github.com/nikhilbhutani/ragdesk/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paragraphs = []string{
	strings.Repeat("alpha ", 41) + "end.",
	strings.Repeat("beta ", 49) + "end.",
	strings.Repeat("gamma ", 41) + "end.",
}

type fakeDocs struct {
	tasks map[string]*models.DocumentTask
	texts map[string]string
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{tasks: map[string]*models.DocumentTask{}, texts: map[string]string{}}
}

func (f *fakeDocs) add(status, text string) *models.DocumentTask {
	task := &models.DocumentTask{ID: models.NewID(), FileName: "handbook.txt", Status: status}
	f.tasks[task.ID] = task
	f.texts[task.ID] = text
	return task
}

func (f *fakeDocs) GetTask(_ context.Context, id string) (*models.DocumentTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("document task %s: %w", id, apperr.ErrNotFound)
	}
	cp := *task
	return &cp, nil
}

func (f *fakeDocs) DocumentText(_ context.Context, task *models.DocumentTask) (string, error) {
	return f.texts[task.ID], nil
}

// keywordEmbedder counts topic words so similarity follows the topic. A
// non-zero dims keeps only the leading components.
type keywordEmbedder struct {
	failQueries atomic.Bool
	err         error
	dims        int
}

func (k *keywordEmbedder) Name() string { return "keyword" }

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	if k.failQueries.Load() {
		return nil, &embedding.UpstreamError{Backend: "keyword", Err: errors.New("connection reset")}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{
			float32(strings.Count(t, "alpha")),
			float32(strings.Count(t, "beta")),
			float32(strings.Count(t, "gamma")) + 0.1,
		}
		if k.dims > 0 {
			out[i] = out[i][:k.dims]
		}
	}
	return out, nil
}

type fakeQueue struct {
	payloads []queue.VectorStoreBuildPayload
	err      error
}

func (q *fakeQueue) EnqueueVectorStoreBuild(p queue.VectorStoreBuildPayload) error {
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, p)
	return nil
}

type fixture struct {
	svc     *Service
	docs    *fakeDocs
	bundles *vectorstore.BundleStore
	dir     string
}

func newFixture(t *testing.T, sel embedding.Selection, opts ...Option) *fixture {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := filepath.Join(t.TempDir(), "vectors")
	bundles := vectorstore.NewBundleStore(dir)
	docs := newFakeDocs()
	return &fixture{
		svc:     NewService(db, docs, bundles, sel, opts...),
		docs:    docs,
		bundles: bundles,
		dir:     dir,
	}
}

func validConfig() models.VectorStoreConfig {
	return models.VectorStoreConfig{Name: "handbook", ChunkSize: 256, Overlap: 32, TopK: 3}
}

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{name: "missing task id", mutate: func(r *CreateRequest) { r.DocumentTaskID = " " }},
		{name: "missing name", mutate: func(r *CreateRequest) { r.Config.Name = "" }},
		{name: "zero chunk size", mutate: func(r *CreateRequest) { r.Config.ChunkSize = 0 }},
		{name: "negative overlap", mutate: func(r *CreateRequest) { r.Config.Overlap = -1 }},
		{name: "overlap not below chunk size", mutate: func(r *CreateRequest) { r.Config.Overlap = 256 }},
		{name: "zero top k", mutate: func(r *CreateRequest) { r.Config.TopK = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateRequest{DocumentTaskID: "abc", Config: validConfig()}
			tt.mutate(&req)
			assert.ErrorIs(t, req.Validate(), apperr.ErrBadRequest)
		})
	}

	assert.NoError(t, CreateRequest{DocumentTaskID: "abc", Config: validConfig()}.Validate())
}

func TestCreate_TaskPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{}))

	_, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: "missing", Config: validConfig()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	failed := f.docs.add(models.TaskStatusFailed, "")
	_, err = f.svc.Create(ctx, CreateRequest{DocumentTaskID: failed.ID, Config: validConfig()})
	assert.ErrorIs(t, err, apperr.ErrPrecondition)

	stores, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestCreateAndRecall_PrimaryBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{}))
	task := f.docs.add(models.TaskStatusSuccess, strings.Join(paragraphs, "\n\n"))

	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)
	assert.Equal(t, models.StoreStatusReady, rec.Status)
	assert.Equal(t, models.EmbeddingBackendPrimary, rec.Config.EmbeddingBackend)
	assert.FileExists(t, filepath.Join(f.dir, rec.ID, "index.gob.gz"))

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Config, got.Config)
	assert.Nil(t, got.FailureReason)

	resp, err := f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "beta beta", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, resp.StoreID)
	require.Len(t, resp.Items, 2)

	top := resp.Items[0]
	assert.Equal(t, rec.ID+"-1", top.ID)
	assert.Equal(t, rec.ID+"-2", resp.Items[1].ID)
	assert.Equal(t, "handbook.txt", top.Title)
	assert.Contains(t, top.Content, "beta")
	assert.Greater(t, top.Similarity, 0.9)
	assert.GreaterOrEqual(t, top.Similarity, resp.Items[1].Similarity)
	assert.Equal(t, task.ID, top.Metadata["document_task_id"])
	assert.NotEmpty(t, top.Metadata["chunk_index"])
}

func TestRecall_Defaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{}))
	task := f.docs.add(models.TaskStatusSuccess, strings.Join(paragraphs, "\n\n"))
	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)

	resp, err := f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "alpha"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assert.Greater(t, utf8.RuneCountInString(resp.Items[0].Content), previewRunes)

	full := resp.Items

	no := false
	resp, err = f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "alpha", TopK: 50, WithContent: &no})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	for i, item := range resp.Items {
		assert.Equal(t, full[i].ID, item.ID)
		assert.Equal(t, full[i].Similarity, item.Similarity)
		runes := []rune(full[i].Content)
		assert.Equal(t, string(runes[:min(previewRunes, len(runes))]), item.Content)
	}

	_, err = f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "  "})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestCreate_UpstreamFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	failing := &keywordEmbedder{err: &embedding.UpstreamError{Backend: "openai", Err: errors.New("503")}}
	f := newFixture(t, embedding.Pinned(failing))
	task := f.docs.add(models.TaskStatusSuccess, strings.Join(paragraphs, "\n\n"))

	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)
	assert.Equal(t, models.StoreStatusReady, rec.Status)
	assert.Equal(t, models.EmbeddingBackendDeterministic, rec.Config.EmbeddingBackend)

	resp, err := f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "gamma", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)
}

func TestCreate_NoPrimaryUsesDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Selection{Backend: models.EmbeddingBackendDeterministic})
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[0])

	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)
	assert.Equal(t, models.EmbeddingBackendDeterministic, rec.Config.EmbeddingBackend)
}

func TestCreate_NonUpstreamFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{err: embedding.ErrVectorCount}))
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[0])

	_, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.ErrorIs(t, err, embedding.ErrVectorCount)

	stores, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, models.StoreStatusFailed, stores[0].Status)
	require.NotNil(t, stores[0].FailureReason)
	assert.Contains(t, *stores[0].FailureReason, embedding.ErrVectorCount.Error())

	_, err = f.svc.Recall(ctx, stores[0].ID, RecallRequest{Query: "alpha"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBuild_FailureRemovesIndex(t *testing.T) {
	ctx := context.Background()
	primary := &keywordEmbedder{}
	f := newFixture(t, embedding.Pinned(primary))
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[0])
	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(f.dir, rec.ID))

	primary.err = embedding.ErrVectorCount
	_, err = f.svc.Build(ctx, rec.ID)
	require.ErrorIs(t, err, embedding.ErrVectorCount)

	assert.NoDirExists(t, filepath.Join(f.dir, rec.ID))
	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoreStatusFailed, got.Status)
}

func TestRecall_RetriesWithDeterministicEmbedder(t *testing.T) {
	ctx := context.Background()
	primary := &keywordEmbedder{}
	f := newFixture(t, embedding.Pinned(primary))
	task := f.docs.add(models.TaskStatusSuccess, strings.Join(paragraphs, "\n\n"))
	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)

	primary.failQueries.Store(true)
	resp, err := f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "alpha", TopK: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
}

func TestRecall_DeterministicRetryFailureIsUnrecoverable(t *testing.T) {
	ctx := context.Background()
	primary := &keywordEmbedder{dims: 2}
	f := newFixture(t, embedding.Pinned(primary))
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[0])
	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)
	require.Equal(t, models.EmbeddingBackendPrimary, rec.Config.EmbeddingBackend)

	// The retry embeds in three dimensions against a two dimensional index.
	primary.failQueries.Store(true)
	_, err = f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "alpha"})
	assert.ErrorIs(t, err, apperr.ErrUnrecoverable)
	assert.ErrorContains(t, err, "fallback embeddings")
}

func TestRecall_DeterministicStoreQueryFailureIsUnrecoverable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{dims: 2}))
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[0])
	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)

	rec.Config.EmbeddingBackend = models.EmbeddingBackendDeterministic
	require.NoError(t, f.svc.update(ctx, rec))

	_, err = f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "alpha"})
	assert.ErrorIs(t, err, apperr.ErrUnrecoverable)
	assert.NotContains(t, err.Error(), "fallback embeddings")
}

func TestRecall_MissingBundleIsNotReady(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{}))
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[0])
	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)

	require.NoError(t, f.bundles.Delete(ctx, rec.ID))
	_, err = f.svc.Recall(ctx, rec.ID, RecallRequest{Query: "alpha"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorContains(t, err, "not ready")
}

func TestRecall_UnknownStore(t *testing.T) {
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{}))
	_, err := f.svc.Recall(context.Background(), "nope", RecallRequest{Query: "alpha"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate_Enqueued(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{}
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{}), WithEnqueuer(q))
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[1])

	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)
	assert.Equal(t, models.StoreStatusBuilding, rec.Status)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, rec.ID, q.payloads[0].StoreID)

	status, err := f.svc.TaskStatus(ctx, rec.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, status.Progress)

	built, err := f.svc.Build(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoreStatusReady, built.Status)

	status, err = f.svc.TaskStatus(ctx, rec.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StoreStatusReady, status.Status)
	assert.Equal(t, 1.0, status.Progress)

	_, err = f.svc.TaskStatus(ctx, rec.ID, "other")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate_EnqueueFailureBuildsInline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, embedding.Pinned(&keywordEmbedder{}), WithEnqueuer(&fakeQueue{err: errors.New("redis down")}))
	task := f.docs.add(models.TaskStatusSuccess, paragraphs[1])

	rec, err := f.svc.Create(ctx, CreateRequest{DocumentTaskID: task.ID, Config: validConfig()})
	require.NoError(t, err)
	assert.Equal(t, models.StoreStatusReady, rec.Status)
}

func TestRecallCacheKey(t *testing.T) {
	yes, no := true, false
	a := recallCacheKey("s1", RecallRequest{Query: "q", TopK: 3, WithContent: &yes})
	b := recallCacheKey("s1", RecallRequest{Query: "q", TopK: 3, WithContent: &no})
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "recall:s1:"))
}
