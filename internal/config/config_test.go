package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ManifestPath:      "manifest.json",
		WeaviateHost:      "localhost:8080",
		WeaviateScheme:    "http",
		IndexClass:        "DocumentChunk",
		VectorDim:         768,
		EmbedBackend:      EmbedBackendGemini,
		EmbedModel:        "gemini-embedding-001",
		GeminiAPIKey:      "test-key",
		LocalEmbedHost:    "http://localhost:11434/v1",
		EmbedBatchSize:    16,
		EmbedMaxAttempts:  5,
		IndexMaxAttempts:  4,
		ChunkSize:         2000,
		ChunkOverlap:      200,
		BoundaryTolerance: 200,
		DocConcurrency:    4,
		BatchConcurrency:  2,
		ProgressBackend:   ProgressBackendBadger,
		ProgressPath:      "data/progress",
		DBHost:            "postgres",
		DBUser:            "docdex",
		DBName:            "docdex",
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing manifest", func(t *testing.T) {
		cfg := validConfig()
		cfg.ManifestPath = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingRequired)
	})

	t.Run("gemini requires api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.GeminiAPIKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingRequired)
	})

	t.Run("local backend does not require api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbedBackend = EmbedBackendLocal
		cfg.GeminiAPIKey = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown embed backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.EmbedBackend = "hallucinated"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown progress backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.ProgressBackend = "redis"
		assert.Error(t, cfg.Validate())
	})

	t.Run("overlap must be smaller than chunk size", func(t *testing.T) {
		cfg := validConfig()
		cfg.ChunkOverlap = cfg.ChunkSize
		assert.Error(t, cfg.Validate())
	})

	t.Run("vector dim must be positive", func(t *testing.T) {
		cfg := validConfig()
		cfg.VectorDim = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MANIFEST_PATH", "manifest.json")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.WeaviateHost)
	assert.Equal(t, "DocumentChunk", cfg.IndexClass)
	assert.Equal(t, EmbedBackendGemini, cfg.EmbedBackend)
	assert.Equal(t, 16, cfg.EmbedBatchSize)
	assert.Equal(t, 2000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, ProgressBackendBadger, cfg.ProgressBackend)
	assert.Equal(t, "index.result", cfg.ResultTopic)
}
