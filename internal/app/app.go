package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/ragdesk/internal/cache"
	"github.com/nikhilbhutani/ragdesk/internal/chat"
	"github.com/nikhilbhutani/ragdesk/internal/config"
	"github.com/nikhilbhutani/ragdesk/internal/database"
	"github.com/nikhilbhutani/ragdesk/internal/document"
	"github.com/nikhilbhutani/ragdesk/internal/embedding"
	"github.com/nikhilbhutani/ragdesk/internal/llm"
	"github.com/nikhilbhutani/ragdesk/internal/queue"
	"github.com/nikhilbhutani/ragdesk/internal/rag"
	"github.com/nikhilbhutani/ragdesk/internal/storage"
	"github.com/nikhilbhutani/ragdesk/internal/vectorstore"
)

// App holds the services shared by the API server and the worker. Backend
// selections are made once in New and never change afterwards.
type App struct {
	Config       *config.Config
	DB           *database.DB
	Redis        *redis.Client
	Documents    *document.Service
	VectorStores *rag.Service
	Chat         *chat.Service
	ChatModel    llm.Selection
	Embedding    embedding.Selection

	queue *queue.Client
}

type options struct {
	embedding *embedding.Selection
	chatModel *llm.Selection
}

type Option func(*options)

// WithEmbedding replaces the embedder resolved from the environment.
func WithEmbedding(sel embedding.Selection) Option {
	return func(o *options) { o.embedding = &sel }
}

// WithChatModel replaces the chat model selected from the environment.
func WithChatModel(model llm.ChatModel) Option {
	return func(o *options) {
		o.chatModel = &llm.Selection{Model: model, Provider: model.Name(), Path: llm.PathDirect}
	}
}

// New wires every service. rdb may be nil, which disables the recall cache
// and the build queue.
func New(ctx context.Context, cfg *config.Config, db *database.DB, rdb *redis.Client, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := storage.NewLocalStorage(map[string]string{
		storage.BucketDocuments: cfg.Storage.DocumentDir,
		storage.BucketVectors:   cfg.Storage.VectorDir,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	vectorDir, err := store.Dir(storage.BucketVectors)
	if err != nil {
		return nil, err
	}

	extractor := document.NewTextExtractor()
	validator := document.NewValidator(cfg.Upload, cfg.Storage.DocumentDir, extractor)
	docs := document.NewService(db, store, validator, extractor)

	var embed embedding.Selection
	if o.embedding != nil {
		embed = *o.embedding
	} else {
		embed = embedding.Resolve(cfg.LLM)
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Documents: docs,
		Embedding: embed,
	}

	var ragOpts []rag.Option
	if rdb != nil {
		if cfg.VectorStore.RecallCacheTTL > 0 {
			ttl := time.Duration(cfg.VectorStore.RecallCacheTTL) * time.Second
			ragOpts = append(ragOpts, rag.WithCache(cache.NewCache(rdb), ttl))
		}
		if cfg.VectorStore.AsyncBuild {
			a.queue = queue.NewClient(cfg.Redis)
			ragOpts = append(ragOpts, rag.WithEnqueuer(a.queue))
			slog.Info("vector store builds run on the worker queue")
		}
	}
	a.VectorStores = rag.NewService(db, docs, vectorstore.NewBundleStore(vectorDir), embed, ragOpts...)

	if o.chatModel != nil {
		a.ChatModel = *o.chatModel
	} else {
		a.ChatModel = llm.SelectChatModel(cfg.LLM)
	}

	graph, err := chat.NewGraph(ctx, a.VectorStores, rag.NewGenerator(a.ChatModel.Model))
	if err != nil {
		return nil, err
	}
	a.Chat = chat.NewService(db, graph)

	return a, nil
}

func (a *App) Close() error {
	if a.queue != nil {
		return a.queue.Close()
	}
	return nil
}
