package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/embedding"
	"github.com/nikhilbhutani/ragdesk/internal/models"
	"github.com/nikhilbhutani/ragdesk/internal/vectorstore"
)

const (
	DefaultTopK       = 3
	previewRunes      = 100
	recallCachePrefix = "recall:"
)

type RecallRequest struct {
	Query       string `json:"query"`
	TopK        int    `json:"topK"`
	WithContent *bool  `json:"withContent"`
}

func (r RecallRequest) withDefaults() RecallRequest {
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.WithContent == nil {
		yes := true
		r.WithContent = &yes
	}
	return r
}

type RecallResponse struct {
	StoreID string                   `json:"storeId"`
	Items   []models.DocumentSnippet `json:"items"`
}

// Recall runs a similarity query against a ready store. A query failure on a
// store pinned to the primary embedder is retried once with deterministic
// query vectors.
func (s *Service) Recall(ctx context.Context, storeID string, req RecallRequest) (*RecallResponse, error) {
	req = req.withDefaults()
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", apperr.ErrBadRequest)
	}

	rec, err := s.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	key := recallCacheKey(storeID, req)
	if s.cache != nil {
		var cached RecallResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			slog.Warn("recall cache read failed", "store_id", storeID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	backend := rec.Config.Backend()
	results, err := s.query(ctx, rec.ID, s.embed.For(backend), req)
	switch {
	case errors.Is(err, vectorstore.ErrIndexNotFound):
		return nil, fmt.Errorf("vector store %s not ready: %w", rec.ID, apperr.ErrNotFound)
	case err != nil && backend == models.EmbeddingBackendPrimary:
		slog.Warn("recall failed, retrying with deterministic embeddings", "store_id", rec.ID, "error", err)
		results, err = s.query(ctx, rec.ID, embedding.Deterministic{}, req)
		if err != nil {
			return nil, fmt.Errorf("recall %s with fallback embeddings: %w: %w", rec.ID, apperr.ErrUnrecoverable, err)
		}
	case err != nil:
		return nil, fmt.Errorf("recall %s: %w: %w", rec.ID, apperr.ErrUnrecoverable, err)
	}

	resp := &RecallResponse{
		StoreID: rec.ID,
		Items:   toSnippets(rec, results, *req.WithContent),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
			slog.Warn("recall cache write failed", "store_id", storeID, "error", err)
		}
	}
	return resp, nil
}

func (s *Service) query(ctx context.Context, storeID string, e embedding.Embedder, req RecallRequest) ([]vectorstore.SearchResult, error) {
	idx, err := s.indexes.Load(ctx, storeID, embedding.ToChromemFunc(e))
	if err != nil {
		return nil, err
	}
	return idx.SimilaritySearch(ctx, req.Query, vectorstore.SearchOptions{TopK: req.TopK})
}

func toSnippets(rec *models.VectorStore, results []vectorstore.SearchResult, withContent bool) []models.DocumentSnippet {
	items := make([]models.DocumentSnippet, 0, len(results))
	for i, r := range results {
		title := r.Metadata["source"]
		if title == "" {
			title = rec.Name
		}

		similarity, err := strconv.ParseFloat(r.Metadata["score"], 64)
		if err != nil {
			similarity = 0
		}

		content := r.Content
		if !withContent {
			content = truncateRunes(content, previewRunes)
		}

		items = append(items, models.DocumentSnippet{
			ID:         fmt.Sprintf("%s-%d", rec.ID, i+1),
			Title:      title,
			Similarity: similarity,
			Content:    content,
			Metadata:   r.Metadata,
		})
	}
	return items
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func recallCacheKey(storeID string, req RecallRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%t", req.Query, req.TopK, *req.WithContent)))
	return recallCachePrefix + storeID + ":" + hex.EncodeToString(sum[:])
}

// InvalidateRecall drops cached recall responses for a store.
func (s *Service) InvalidateRecall(ctx context.Context, storeID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, recallCachePrefix+storeID+":"); err != nil {
		slog.Warn("recall cache invalidation failed", "store_id", storeID, "error", err)
	}
}
