package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calenlabs/ragbook/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 150, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.Equal(t, 4000, cfg.Query.MaxContextLength)
	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, "robotics_textbook_chunks", cfg.Store.Collection)
	assert.Equal(t, []string{"*"}, cfg.Serve.CORSOrigins)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
chunking:
  chunk_size: 300
  chunk_overlap: 50
store:
  backend: qdrant
  collection_name: my_chunks
  qdrant:
    url: http://qdrant.local:6333
query:
  top_k: 3
  relevance_floor: 0.4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, BackendQdrant, cfg.Store.Backend)
	assert.Equal(t, "my_chunks", cfg.Store.Collection)
	assert.Equal(t, "http://qdrant.local:6333", cfg.Store.Qdrant.URL)
	assert.Equal(t, 3, cfg.Query.TopK)
	assert.Equal(t, float32(0.4), cfg.Query.RelevanceFloor)

	// Untouched sections keep their defaults.
	assert.Equal(t, 4000, cfg.Query.MaxContextLength)
	assert.Equal(t, "nomic-embed-text", cfg.AI.EmbeddingModel)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
chunking:
  chunk_size: 300
`)

	t.Setenv("CHUNK_SIZE", "256")
	t.Setenv("QDRANT_COLLECTION_NAME", "env_chunks")
	t.Setenv("TOP_K_RESULTS", "7")
	t.Setenv("RELEVANCE_FLOOR", "0.25")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Chunking.ChunkSize)
	assert.Equal(t, "env_chunks", cfg.Store.Collection)
	assert.Equal(t, 7, cfg.Query.TopK)
	assert.Equal(t, float32(0.25), cfg.Query.RelevanceFloor)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Serve.CORSOrigins)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "chunking: [not a map")
	_, err := Load(path)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap not below chunk size", func(c *Config) {
			c.Chunking.ChunkSize = 100
			c.Chunking.Overlap = 100
		}},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"zero batch size", func(c *Config) { c.Chunking.BatchSize = 0 }},
		{"zero top_k", func(c *Config) { c.Query.TopK = 0 }},
		{"empty collection", func(c *Config) { c.Store.Collection = "" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"qdrant without url", func(c *Config) {
			c.Store.Backend = BackendQdrant
			c.Store.Qdrant.URL = ""
		}},
		{"badger without path", func(c *Config) { c.Store.Badger.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrConfig)
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})
}
