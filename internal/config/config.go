package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	LLM         LLMConfig
	Storage     StorageConfig
	Upload      UploadConfig
	VectorStore VectorStoreConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AppName        string
	APIPrefix      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// DatabaseConfig selects the record store. An empty URL means the embedded
// SQLite file at SQLitePath.
type DatabaseConfig struct {
	URL        string
	SQLitePath string
	MaxConns   int
	MinConns   int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey      string
	OpenAIBaseURL  string
	DeepSeekKey    string
	AnthropicKey   string
	AnthropicModel string
	OllamaURL      string
	ModelName      string

	EmbedProvider string // "openai" or "ollama"
	EmbedModel    string
	EmbedAPIKey   string
	EmbedBaseURL  string
}

type StorageConfig struct {
	DataDir     string
	DocumentDir string
	VectorDir   string
}

type UploadConfig struct {
	AllowedExtensions []string
	MaxFileSizeMB     int
	MinDocumentLength int
}

type VectorStoreConfig struct {
	AsyncBuild     bool
	RecallCacheTTL int // seconds; 0 disables the recall cache
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8002)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxMB, err := getEnvInt("MAX_FILE_SIZE_MB", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_FILE_SIZE_MB: %w", err)
	}

	minLength, err := getEnvInt("MIN_DOCUMENT_LENGTH", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_DOCUMENT_LENGTH: %w", err)
	}

	cacheTTL, err := getEnvInt("RECALL_CACHE_TTL_SECONDS", 300)
	if err != nil {
		return nil, fmt.Errorf("invalid RECALL_CACHE_TTL_SECONDS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	asyncBuild, err := getEnvBool("VECTOR_BUILD_ASYNC", false)
	if err != nil {
		return nil, fmt.Errorf("invalid VECTOR_BUILD_ASYNC: %w", err)
	}

	allowed, err := ParseExtensions(os.Getenv("ALLOWED_EXTENSIONS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOWED_EXTENSIONS: %w", err)
	}

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AppName:        getEnv("APP_NAME", "rag-backend"),
			APIPrefix:      strings.TrimRight(getEnv("API_PREFIX", "/api/v1"), "/"),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Database: DatabaseConfig{
			URL:        getEnv("DATABASE_URL", ""),
			SQLitePath: getEnv("SQLITE_PATH", filepath.Join(dataDir, "rag.db")),
			MaxConns:   maxConns,
			MinConns:   minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			DeepSeekKey:    getEnv("DEEPSEEK_API_KEY", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
			OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
			ModelName:      getEnv("MODEL_NAME", "deepseek-chat"),
			EmbedProvider:  strings.ToLower(getEnv("EMBED_PROVIDER", "openai")),
			EmbedModel:     getEnv("EMBED_MODEL", "text-embedding-3-small"),
			EmbedAPIKey:    getEnv("EMBED_API_KEY", ""),
			EmbedBaseURL:   getEnv("EMBED_BASE_URL", ""),
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			DocumentDir: getEnv("DOCUMENT_DIR", filepath.Join(dataDir, "documents")),
			VectorDir:   getEnv("VECTOR_DIR", filepath.Join(dataDir, "vectors")),
		},
		Upload: UploadConfig{
			AllowedExtensions: allowed,
			MaxFileSizeMB:     maxMB,
			MinDocumentLength: minLength,
		},
		VectorStore: VectorStoreConfig{
			AsyncBuild:     asyncBuild,
			RecallCacheTTL: cacheTTL,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var invalid []string
	if c.Upload.MaxFileSizeMB <= 0 {
		invalid = append(invalid, "MAX_FILE_SIZE_MB")
	}
	if c.Upload.MinDocumentLength < 0 {
		invalid = append(invalid, "MIN_DOCUMENT_LENGTH")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		invalid = append(invalid, "ALLOWED_EXTENSIONS")
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		invalid = append(invalid, "API_PREFIX")
	}
	if c.LLM.EmbedProvider != "openai" && c.LLM.EmbedProvider != "ollama" {
		invalid = append(invalid, "EMBED_PROVIDER")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid env vars: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// ParseExtensions accepts a comma separated list or a JSON array and returns
// lower-cased extensions with a leading dot. Empty input yields the defaults.
func ParseExtensions(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{".txt", ".md", ".pdf"}, nil
	}

	var items []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("parse extension list: %w", err)
		}
	} else {
		items = strings.Split(raw, ",")
	}

	exts := make([]string, 0, len(items))
	for _, item := range items {
		ext := strings.ToLower(strings.TrimSpace(item))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}
