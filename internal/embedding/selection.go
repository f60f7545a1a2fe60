package embedding

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/ragdesk/internal/config"
	"github.com/nikhilbhutani/ragdesk/internal/llm"
	"github.com/nikhilbhutani/ragdesk/internal/models"
)

var ErrNotConfigured = errors.New("embedding backend not configured")

// Selection is the process-wide embedding choice, resolved once at startup.
// Primary is nil when no remote embedder could be built.
type Selection struct {
	Backend models.EmbeddingBackend
	Primary Embedder
	Reason  string
}

// For returns the embedder to use for an index pinned to backend.
func (s Selection) For(backend models.EmbeddingBackend) Embedder {
	if backend == models.EmbeddingBackendPrimary && s.Primary != nil {
		return s.Primary
	}
	return Deterministic{}
}

// Pinned builds a selection that always uses e as the primary embedder.
func Pinned(e Embedder) Selection {
	return Selection{Backend: models.EmbeddingBackendPrimary, Primary: e}
}

// Resolve tries to build the primary embedder once. Any configuration
// failure selects the deterministic embedder for the life of the process.
func Resolve(cfg config.LLMConfig) Selection {
	primary, err := newPrimary(cfg)
	if err != nil {
		slog.Warn("primary embedder unavailable, using deterministic embeddings", "provider", cfg.EmbedProvider, "class", "configuration", "error", err)
		return Selection{Backend: models.EmbeddingBackendDeterministic, Reason: err.Error()}
	}
	slog.Info("primary embedder selected", "embedder", primary.Name())
	return Pinned(primary)
}

func newPrimary(cfg config.LLMConfig) (Embedder, error) {
	switch cfg.EmbedProvider {
	case "ollama":
		p, err := llm.NewOllamaProvider(cfg.OllamaURL, "")
		if err != nil {
			return nil, err
		}
		return NewService(p, cfg.EmbedModel), nil
	case "", "openai":
		apiKey := embedAPIKey(cfg)
		if apiKey == "" {
			return nil, fmt.Errorf("no embedding API key: %w", ErrNotConfigured)
		}
		p, err := llm.NewOpenAIProvider(llm.OpenAIOptions{Name: "openai", APIKey: apiKey, BaseURL: EmbedBaseURL(cfg)})
		if err != nil {
			return nil, err
		}
		return NewService(p, cfg.EmbedModel), nil
	default:
		return nil, fmt.Errorf("embedding provider %q: %w", cfg.EmbedProvider, ErrNotConfigured)
	}
}

func embedAPIKey(cfg config.LLMConfig) string {
	for _, k := range []string{cfg.EmbedAPIKey, cfg.OpenAIKey, cfg.DeepSeekKey} {
		k = strings.TrimSpace(k)
		if k != "" && k != "test-key" {
			return k
		}
	}
	return ""
}

// EmbedBaseURL picks the embeddings endpoint. A DeepSeek chat endpoint is
// never used for embeddings.
func EmbedBaseURL(cfg config.LLMConfig) string {
	if u := strings.TrimSpace(cfg.EmbedBaseURL); u != "" {
		return u
	}
	if u := strings.TrimSpace(cfg.OpenAIBaseURL); u != "" && !strings.HasPrefix(u, llm.DeepSeekBaseURL) {
		return u
	}
	return llm.DefaultOpenAIBaseURL
}
