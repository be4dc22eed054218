// Copyright 2025 Calen Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads application configuration from a YAML file with
// environment overrides.
//
// Resolution order, lowest to highest precedence: built-in defaults, the
// YAML file, environment variables. A .env file in the working directory is
// loaded first so local setups can keep credentials out of the config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/calenlabs/ragbook/core"
)

// Store backend names accepted in StoreConfig.Backend.
const (
	BackendQdrant = "qdrant"
	BackendBadger = "badger"
)

// Config holds all configuration for ragbook.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Chunking ChunkingConfig `yaml:"chunking"`
	AI       AIConfig       `yaml:"ai"`
	Store    StoreConfig    `yaml:"store"`
	Query    QueryConfig    `yaml:"query"`
	Serve    ServeConfig    `yaml:"serve"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CorpusConfig locates the document corpus.
type CorpusConfig struct {
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChunkingConfig configures the token windowing.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"chunk_overlap"`
	BatchSize int `yaml:"batch_size"`
}

// AIConfig configures the embedding and generation provider.
type AIConfig struct {
	Host              string  `yaml:"host"`
	EmbeddingModel    string  `yaml:"embedding_model_id"`
	GenerationModel   string  `yaml:"generation_model_id"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	BatchDelaySeconds float64 `yaml:"batch_delay_seconds"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend    string       `yaml:"backend"`
	Collection string       `yaml:"collection_name"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
	Badger     BadgerConfig `yaml:"badger"`
}

// QdrantConfig contains connection details for a Qdrant service.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// BadgerConfig locates the embedded store's data directory.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// QueryConfig configures retrieval and prompt assembly.
type QueryConfig struct {
	TopK             int     `yaml:"top_k"`
	RelevanceFloor   float32 `yaml:"relevance_floor"`
	MaxContextLength int     `yaml:"max_context_length"`
}

// ServeConfig configures the HTTP front door.
type ServeConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults: embedded badger store and a
// local OpenAI-compatible endpoint.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir:      "./docs",
			Includes: []string{"**/*.md", "**/*.mdx"},
		},
		Chunking: ChunkingConfig{
			ChunkSize: 500,
			Overlap:   150,
			BatchSize: 10,
		},
		AI: AIConfig{
			Host:              "http://localhost:11434",
			EmbeddingModel:    "nomic-embed-text",
			GenerationModel:   "qwen2.5:3b",
			BatchDelaySeconds: 1.0,
		},
		Store: StoreConfig{
			Backend:    BackendBadger,
			Collection: "robotics_textbook_chunks",
			Qdrant: QdrantConfig{
				TimeoutSecs: 60,
			},
			Badger: BadgerConfig{
				Path: "./data/ragbook",
			},
		},
		Query: QueryConfig{
			TopK:             5,
			MaxContextLength: 4000,
		},
		Serve: ServeConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, applies environment overrides,
// and validates the result. A missing file is not an error; defaults plus
// environment are used.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: reading %s: %v", core.ErrConfig, path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", core.ErrConfig, path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays recognized environment variables onto the config.
func applyEnv(cfg *Config) {
	envString(&cfg.Corpus.Dir, "DOCS_DIR")

	envInt(&cfg.Chunking.ChunkSize, "CHUNK_SIZE")
	envInt(&cfg.Chunking.Overlap, "CHUNK_OVERLAP")
	envInt(&cfg.Chunking.BatchSize, "BATCH_SIZE")

	envString(&cfg.AI.Host, "AI_HOST")
	envString(&cfg.AI.EmbeddingModel, "EMBEDDING_MODEL_ID")
	envString(&cfg.AI.GenerationModel, "GENERATION_MODEL_ID")
	envString(&cfg.AI.APIKey, "AI_API_KEY")
	envFloat(&cfg.AI.BatchDelaySeconds, "BATCH_DELAY_SECONDS")

	envString(&cfg.Store.Backend, "STORE_BACKEND")
	envString(&cfg.Store.Collection, "QDRANT_COLLECTION_NAME")
	envString(&cfg.Store.Qdrant.URL, "QDRANT_URL")
	envString(&cfg.Store.Qdrant.APIKey, "QDRANT_API_KEY")
	envString(&cfg.Store.Badger.Path, "BADGER_PATH")

	envInt(&cfg.Query.TopK, "TOP_K_RESULTS")
	envFloat32(&cfg.Query.RelevanceFloor, "RELEVANCE_FLOOR")
	envInt(&cfg.Query.MaxContextLength, "MAX_CONTEXT_LENGTH")

	envString(&cfg.Serve.Addr, "SERVE_ADDR")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Serve.CORSOrigins = parts
	}

	envString(&cfg.Logging.Level, "LOG_LEVEL")
}

// Validate checks the configuration for values that would fail later in a
// less obvious place.
func (c *Config) Validate() error {
	if err := core.ValidateChunking(c.Chunking.ChunkSize, c.Chunking.Overlap); err != nil {
		return err
	}
	if c.Chunking.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", core.ErrConfig, c.Chunking.BatchSize)
	}
	if err := core.ValidateTopK(c.Query.TopK); err != nil {
		return err
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("%w: collection_name must not be empty", core.ErrConfig)
	}

	switch c.Store.Backend {
	case BackendQdrant:
		if c.Store.Qdrant.URL == "" {
			return fmt.Errorf("%w: store backend %q requires QDRANT_URL or store.qdrant.url", core.ErrConfig, BackendQdrant)
		}
	case BackendBadger:
		if c.Store.Badger.Path == "" {
			return fmt.Errorf("%w: store backend %q requires a data path", core.ErrConfig, BackendBadger)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q (expected %q or %q)",
			core.ErrConfig, c.Store.Backend, BackendQdrant, BackendBadger)
	}

	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}
