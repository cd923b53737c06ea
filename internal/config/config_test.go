package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.Query.HistoryWindow)
	assert.InDelta(t, 0.7, cfg.Retrieval.MinSimilarity, 1e-9)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "config.yaml", `
database:
  url: postgres://rag@db:5432/rag
  conn_max_lifetime: 10m
redis:
  url: redis://cache:6379/0
  embedding_cache_ttl: 1h
vector:
  backend: chromem
  chromem:
    path: /var/lib/rag/index
    compress: true
embedding:
  provider: openai
  model: text-embedding-3-large
  api_key: sk-file
  dimensions: 3072
  batch_size: 8
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-llm
  temperature: 0.1
  top_k: 20
chunking:
  chunk_size: 256
  overlap: 32
  min_chunk_size: 16
retrieval:
  default_limit: 3
  max_limit: 10
  min_similarity: 0.5
query:
  history_window: 2
conversation:
  backend: redis
log:
  level: debug
  format: console
metrics:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres://rag@db:5432/rag", cfg.Database.URL)
	assert.Equal(t, 10*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns, "unset keys keep defaults")
	assert.Equal(t, time.Hour, cfg.Redis.EmbeddingCacheTTL)
	assert.Equal(t, VectorBackendChromem, cfg.Vector.Backend)
	assert.Equal(t, "/var/lib/rag/index", cfg.Vector.Chromem.Path)
	assert.True(t, cfg.Vector.Chromem.Compress)
	assert.Equal(t, domain.AIProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, "sk-file", cfg.Embedding.APIKey)
	assert.Equal(t, 3072, cfg.Embedding.Dimensions)
	assert.Equal(t, 8, cfg.Embedding.BatchSize)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 20, cfg.LLM.TopK)
	assert.InDelta(t, 0.8, cfg.LLM.TopP, 1e-9, "unset generation keys keep defaults")
	assert.Equal(t, 256, cfg.Chunking.ChunkSize)
	assert.Equal(t, 3, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 2, cfg.Query.HistoryWindow)
	assert.Equal(t, ConversationBackendRedis, cfg.Conversation.Backend)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "chunking: [not, a, map]"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{
		"DATABASE_URL":         "postgres://env/db",
		"EMBEDDING_PROVIDER":   "ollama",
		"EMBEDDING_DIMENSIONS": "1536",
		"LLM_API_KEY":          "sk-env",
		"LOG_LEVEL":            "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, domain.AIProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "info", cfg.Log.Level, "empty values do not override")
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{"EMBEDDING_BATCH_SIZE": "many"}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"overlap not below chunk size", func(c *Config) { c.Chunking.Overlap = c.Chunking.ChunkSize }, domain.ErrInvalidInput},
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = "voyage" }, domain.ErrInvalidProvider},
		{"unsupported dimensions", func(c *Config) { c.Embedding.Dimensions = 1024 }, domain.ErrUnsupportedDimension},
		{"zero batch size", func(c *Config) { c.Embedding.BatchSize = 0 }, domain.ErrInvalidInput},
		{"gemini generator", func(c *Config) { c.LLM.Provider = domain.AIProviderGemini }, domain.ErrInvalidProvider},
		{"threshold above one", func(c *Config) { c.Retrieval.MinSimilarity = 1.5 }, domain.ErrInvalidInput},
		{"default above max", func(c *Config) { c.Retrieval.DefaultLimit = 80 }, domain.ErrInvalidInput},
		{"negative history", func(c *Config) { c.Query.HistoryWindow = -1 }, domain.ErrInvalidInput},
		{"unknown vector backend", func(c *Config) { c.Vector.Backend = "qdrant" }, domain.ErrInvalidInput},
		{"chromem without path", func(c *Config) { c.Vector.Backend = VectorBackendChromem }, domain.ErrInvalidInput},
		{"redis conversations without url", func(c *Config) { c.Conversation.Backend = ConversationBackendRedis }, domain.ErrInvalidInput},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "SERCHA_RAG_DOTENV_TEST"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })

	path := writeFile(t, ".env", key+"=from-file\n")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	assert.Equal(t, "from-file", os.Getenv(key))
}
