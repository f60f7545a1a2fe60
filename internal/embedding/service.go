package embedding

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/ragdesk/internal/llm"
)

// Service embeds through a remote provider in batches.
type Service struct {
	provider llm.EmbeddingProvider
	model    string
}

func NewService(provider llm.EmbeddingProvider, model string) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Service{provider: provider, model: model}
}

func (s *Service) Name() string {
	return s.provider.Name() + ":" + s.model
}

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Batch in groups of 100 for API limits
	const batchSize = 100
	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		batch := texts[i:end]

		resp, err := s.provider.GenerateEmbedding(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: batch,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, ctx.Err())
			}
			return nil, &UpstreamError{Backend: s.provider.Name(), Err: fmt.Errorf("embed batch %d: %w", i/batchSize, err)}
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("embed batch %d: got %d vectors for %d texts: %w", i/batchSize, len(resp.Embeddings), len(batch), ErrVectorCount)
		}

		allEmbeddings = append(allEmbeddings, resp.Embeddings...)
	}

	return allEmbeddings, nil
}
