package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nikhilbhutani/ragdesk/internal/config"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DeepSeekBaseURL      = "https://api.deepseek.com"
)

const (
	PathHinted    = "hinted"
	PathDirect    = "direct"
	PathAnthropic = "anthropic"
	PathCanned    = "canned"
)

// Selection is the chat backend chosen once at startup.
type Selection struct {
	Model    ChatModel
	Provider string
	Path     string
}

type initFunc func(apiKey, baseURL, model string) (ChatModel, error)

// providerRegistry resolves a provider hint into a client for an explicit
// endpoint.
var providerRegistry = map[string]initFunc{
	"openai":   initOpenAICompatible("openai"),
	"deepseek": initOpenAICompatible("deepseek"),
}

func initOpenAICompatible(name string) initFunc {
	return func(apiKey, baseURL, model string) (ChatModel, error) {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("endpoint %q is not an absolute http(s) URL", baseURL)
		}
		if model == "" {
			return nil, errors.New("model name is required")
		}
		return NewOpenAIProvider(OpenAIOptions{Name: name, APIKey: apiKey, BaseURL: baseURL, Model: model})
	}
}

// usableKey reports whether key looks like a real credential.
func usableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != "test-key"
}

func firstUsable(keys ...string) string {
	for _, k := range keys {
		if usableKey(k) {
			return strings.TrimSpace(k)
		}
	}
	return ""
}

// SelectChatModel walks the backend cascade once: DeepSeek or OpenAI through
// the provider hints when a custom endpoint is configured, then a direct
// client, then Anthropic, and finally the canned backend. Every failed step
// is logged and never retried.
func SelectChatModel(cfg config.LLMConfig) Selection {
	baseURL := strings.TrimSpace(cfg.OpenAIBaseURL)
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	preferDeepSeek := usableKey(cfg.DeepSeekKey) || strings.HasPrefix(baseURL, DeepSeekBaseURL)

	hint := "openai"
	apiKey := firstUsable(cfg.OpenAIKey, cfg.DeepSeekKey)
	if preferDeepSeek {
		hint = "deepseek"
		apiKey = firstUsable(cfg.DeepSeekKey, cfg.OpenAIKey)
	}

	if apiKey != "" {
		if baseURL != DefaultOpenAIBaseURL {
			model, err := providerRegistry[hint](apiKey, baseURL, cfg.ModelName)
			if err == nil {
				return selected(model, hint, PathHinted)
			}
			slog.Error("chat model init via provider hint failed", "provider", hint, "class", "configuration", "error", err)
		}

		model, err := NewOpenAIProvider(OpenAIOptions{Name: hint, APIKey: apiKey, BaseURL: baseURL, Model: cfg.ModelName})
		if err == nil {
			return selected(model, hint, PathDirect)
		}
		slog.Error("direct chat model init failed", "provider", hint, "class", "configuration", "error", err)
	} else if usableKey(cfg.AnthropicKey) {
		return selected(NewAnthropicProvider(strings.TrimSpace(cfg.AnthropicKey), cfg.AnthropicModel), "anthropic", PathAnthropic)
	} else {
		slog.Warn("no chat model API key configured")
	}

	return selected(NewCannedProvider(), "canned", PathCanned)
}

func selected(model ChatModel, provider, path string) Selection {
	slog.Info("chat model selected", "provider", provider, "path", path)
	return Selection{Model: model, Provider: provider, Path: path}
}
