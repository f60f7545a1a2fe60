package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtensions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty uses defaults", raw: "", want: []string{".txt", ".md", ".pdf"}},
		{name: "comma list", raw: "txt, .MD ,pdf", want: []string{".txt", ".md", ".pdf"}},
		{name: "json array", raw: `[".TXT", "docx"]`, want: []string{".txt", ".docx"}},
		{name: "blank entries dropped", raw: ".txt,,", want: []string{".txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExtensions(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExtensions_InvalidJSON(t *testing.T) {
	_, err := ParseExtensions(`[".txt"`)
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "DATA_DIR", "ALLOWED_EXTENSIONS",
		"MAX_FILE_SIZE_MB", "MIN_DOCUMENT_LENGTH", "MODEL_NAME", "EMBED_MODEL",
		"EMBED_PROVIDER", "VECTOR_BUILD_ASYNC", "OPENAI_BASE_URL", "API_PREFIX",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8002, cfg.Server.Port)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.Equal(t, 50, cfg.Upload.MaxFileSizeMB)
	assert.Equal(t, 200, cfg.Upload.MinDocumentLength)
	assert.Equal(t, "deepseek-chat", cfg.LLM.ModelName)
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbedModel)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.OpenAIBaseURL)
	assert.Equal(t, "data/rag.db", cfg.Database.SQLitePath)
	assert.Equal(t, "data/documents", cfg.Storage.DocumentDir)
	assert.False(t, cfg.VectorStore.AsyncBuild)
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE_MB", "lots")
	_, err := Load()
	assert.ErrorContains(t, err, "MAX_FILE_SIZE_MB")
}

func TestValidate_RejectsUnknownEmbedProvider(t *testing.T) {
	t.Setenv("EMBED_PROVIDER", "cohere")
	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "EMBED_PROVIDER")
}
