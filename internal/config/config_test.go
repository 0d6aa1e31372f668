package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 12000, cfg.MaxContextChars)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, "docqa-documents", cfg.S3Bucket)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DOCQA_PORT", "9090")
	t.Setenv("DOCQA_DATABASE_URL", "postgres://localhost/docqa")
	t.Setenv("DOCQA_CHUNK_SIZE", "500")
	t.Setenv("DOCQA_SYNC_INGEST", "true")
	t.Setenv("DOCQA_HYDE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/docqa", cfg.DatabaseURL)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.True(t, cfg.SyncIngest)
	assert.True(t, cfg.HyDE)
	assert.True(t, cfg.HasDatabase())
}

func TestHasS3(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasS3())

	cfg.S3Endpoint = "http://localhost:9000"
	cfg.S3AccessKey = "key"
	cfg.S3SecretKey = "secret"
	assert.True(t, cfg.HasS3())
}

func TestHasOpenAI(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasOpenAI())

	cfg.OpenAIAPIKey = "sk-test"
	assert.True(t, cfg.HasOpenAI())
}
