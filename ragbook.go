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


// Package ragbook wires the configured backends into ready-to-use ingestion
// and query front ends. It is the composition root: everything below it
// (chunker, ai, vectorstore, ingestion, query) is independently usable, but
// a System is the one-call way to get a working setup from a Config.
package ragbook

import (
	"context"
	"log/slog"
	"time"

	"github.com/calenlabs/ragbook/ai"
	"github.com/calenlabs/ragbook/ai/openai"
	"github.com/calenlabs/ragbook/chunker"
	"github.com/calenlabs/ragbook/config"
	"github.com/calenlabs/ragbook/docsource"
	"github.com/calenlabs/ragbook/ingestion"
	"github.com/calenlabs/ragbook/query"
	"github.com/calenlabs/ragbook/vectorstore"
	badgerstore "github.com/calenlabs/ragbook/vectorstore/badger"
	"github.com/calenlabs/ragbook/vectorstore/qdrant"
)

// System aggregates the configured store and AI provider and builds
// pipelines and orchestrators bound to the configured collection.
type System struct {
	config    *config.Config
	store     vectorstore.Store
	provider  ai.Provider
	tokenizer chunker.Tokenizer
	logger    *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	store     vectorstore.Store
	provider  ai.Provider
	tokenizer chunker.Tokenizer
}

// WithStore overrides the configured vector store backend. The caller
// retains ownership; Close will still close it.
func WithStore(store vectorstore.Store) SystemOption {
	return func(o *systemOptions) {
		o.store = store
	}
}

// WithProvider overrides the configured AI provider.
func WithProvider(provider ai.Provider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithTokenizer overrides the tokenizer used for chunking. The default is
// the cl100k_base BPE tokenizer.
func WithTokenizer(tokenizer chunker.Tokenizer) SystemOption {
	return func(o *systemOptions) {
		o.tokenizer = tokenizer
	}
}

// NewSystem builds a system from the configuration, opening the configured
// store backend and AI provider.
func NewSystem(cfg *config.Config, opts ...SystemOption) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &systemOptions{}
	for _, opt := range opts {
		opt(options)
	}

	store := options.store
	if store == nil {
		var err error
		switch cfg.Store.Backend {
		case config.BackendQdrant:
			store, err = qdrant.New(qdrant.Config{
				URL:     cfg.Store.Qdrant.URL,
				APIKey:  cfg.Store.Qdrant.APIKey,
				Timeout: time.Duration(cfg.Store.Qdrant.TimeoutSecs) * time.Second,
			})
		case config.BackendBadger:
			store, err = badgerstore.Open(cfg.Store.Badger.Path)
		}
		if err != nil {
			return nil, err
		}
	}

	provider := options.provider
	if provider == nil {
		aiCfg := ai.NewConfig(
			ai.WithHost(cfg.AI.Host),
			ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
			ai.WithGenerationModel(cfg.AI.GenerationModel),
			ai.WithAPIKey(cfg.AI.APIKey),
			ai.WithRequestsPerMinute(cfg.AI.RequestsPerMinute),
			ai.WithBatchDelay(time.Duration(cfg.AI.BatchDelaySeconds*float64(time.Second))),
			ai.WithEmbedBatchSize(cfg.Chunking.BatchSize),
		)

		var err error
		provider, err = openai.NewProvider(aiCfg)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &System{
		config:    cfg,
		store:     store,
		provider:  provider,
		tokenizer: options.tokenizer,
		logger:    slog.Default(),
	}, nil
}

// Config returns the system's configuration.
func (s *System) Config() *config.Config {
	return s.config
}

// Store returns the vector store backend.
func (s *System) Store() vectorstore.Store {
	return s.store
}

// Provider returns the AI provider.
func (s *System) Provider() ai.Provider {
	return s.provider
}

// Collection returns the configured collection name.
func (s *System) Collection() string {
	return s.config.Store.Collection
}

// NewIngestionPipeline builds an ingestion pipeline over the configured
// corpus directory, chunking parameters, and collection.
func (s *System) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	sourceOpts := []docsource.Option{
		docsource.WithIncludes(s.config.Corpus.Includes...),
		docsource.WithExcludes(s.config.Corpus.Excludes...),
	}
	source, err := docsource.New(s.config.Corpus.Dir, sourceOpts...)
	if err != nil {
		return nil, err
	}

	tokenizer := s.tokenizer
	if tokenizer == nil {
		tokenizer, err = chunker.NewTiktoken()
		if err != nil {
			return nil, err
		}
	}

	chnk, err := chunker.New(tokenizer, s.config.Chunking.ChunkSize, s.config.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	opts = append([]ingestion.Option{
		ingestion.WithBatchSize(s.config.Chunking.BatchSize),
	}, opts...)
	return ingestion.NewPipeline(source, chnk, s.provider.Embedder(), s.store, s.Collection(), opts...)
}

// NewOrchestrator builds a query orchestrator bound to the configured
// collection and retrieval parameters.
func (s *System) NewOrchestrator(opts ...query.Option) (*query.Orchestrator, error) {
	opts = append([]query.Option{
		query.WithTopK(s.config.Query.TopK),
		query.WithRelevanceFloor(s.config.Query.RelevanceFloor),
		query.WithMaxContextLength(s.config.Query.MaxContextLength),
	}, opts...)
	return query.NewOrchestrator(s.provider, s.store, s.Collection(), opts...)
}

// Health reports the serving readiness of the system.
type Health struct {
	Status           string `json:"status"`
	StoreConnected   bool   `json:"store_connected"`
	AIConfigured     bool   `json:"ai_configured"`
	CollectionName   string `json:"collection_name"`
	CollectionPoints *int   `json:"collection_points"`
}

// Health checks whether the configured collection is reachable. The system
// is healthy when the store answers for the collection, degraded otherwise.
func (s *System) Health(ctx context.Context) *Health {
	h := &Health{
		Status:         "degraded",
		AIConfigured:   s.config.AI.Host != "" && s.config.AI.EmbeddingModel != "",
		CollectionName: s.Collection(),
	}

	info, err := s.store.Info(ctx, s.Collection())
	if err != nil {
		s.logger.Warn("health check: collection unreachable", "collection", s.Collection(), "err", err)
		return h
	}

	h.Status = "healthy"
	h.StoreConnected = true
	h.CollectionPoints = &info.Points
	return h
}

// Close releases the provider and the store.
func (s *System) Close() error {
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}
