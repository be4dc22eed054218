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


package query

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/calenlabs/ragbook/ai"
	"github.com/calenlabs/ragbook/core"
	"github.com/calenlabs/ragbook/vectorstore"
)

const (
	defaultTopK             = 5
	defaultMaxContextLength = 4000
	citationTextLimit       = 200
)

// Orchestrator answers queries over one collection.
type Orchestrator struct {
	embedder   ai.Embedder
	generator  ai.Generator
	store      vectorstore.Store
	collection string

	topK             int
	relevanceFloor   float32
	maxContextLength int
	logger           *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithTopK sets how many chunks retrieval requests. Default is 5.
func WithTopK(topK int) Option {
	return func(o *Orchestrator) error {
		if err := core.ValidateTopK(topK); err != nil {
			return err
		}
		o.topK = topK
		return nil
	}
}

// WithRelevanceFloor drops retrieval hits scoring below floor from both the
// prompt context and the citations. Default is 0, which keeps everything.
func WithRelevanceFloor(floor float32) Option {
	return func(o *Orchestrator) error {
		o.relevanceFloor = floor
		return nil
	}
}

// WithMaxContextLength caps the generated prompt at n runes.
// Default is 4000.
func WithMaxContextLength(n int) Option {
	return func(o *Orchestrator) error {
		o.maxContextLength = n
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a query orchestrator reading from the named
// collection.
func NewOrchestrator(provider ai.Provider, store vectorstore.Store, collection string, opts ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if collection == "" {
		return nil, ErrCollectionRequired
	}

	o := &Orchestrator{
		embedder:         provider.Embedder(),
		generator:        provider.Generator(),
		store:            store,
		collection:       collection,
		topK:             defaultTopK,
		maxContextLength: defaultMaxContextLength,
		logger:           slog.Default().With("component", "query"),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Answer processes one query and returns the structured answer.
func (o *Orchestrator) Answer(ctx context.Context, q core.Query) (*core.Answer, error) {
	return o.AnswerWithMonitor(ctx, q, nil)
}

// AnswerWithMonitor processes one query, reporting each stage to the
// monitor. Validation happens before any provider or store call, so a
// malformed request never costs an external round trip.
func (o *Orchestrator) AnswerWithMonitor(ctx context.Context, q core.Query, monitor Monitor) (*core.Answer, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	start := time.Now()

	if err := core.ValidateQuery(&q); err != nil {
		return nil, err
	}

	monitor.Start(q.Question)

	mode := SelectMode(q)
	monitor.ModeSelected(mode.Tag())

	var (
		contextText string
		sources     []core.Source
	)

	switch m := mode.(type) {
	case SelectedTextMode:
		contextText = m.Excerpt
		sources = []core.Source{}

	case NormalMode:
		hits, err := o.retrieve(ctx, m.Question)
		if err != nil {
			return nil, err
		}

		kept := keepRelevant(hits, o.relevanceFloor)
		monitor.AfterRetrieval(hits, len(kept))

		if len(kept) == 0 {
			o.logger.Info("no hits above relevance floor",
				"question", m.Question,
				"retrieved", len(hits),
				"floor", o.relevanceFloor)
			contextText = ungroundedNotice
		} else {
			contextText = buildContext(kept)
		}
		sources = citations(kept)
	}

	prompt := buildPrompt(mode.question(), contextText, mode.Tag())
	prompt = truncateRunes(prompt, o.maxContextLength)

	genStart := time.Now()
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	monitor.AfterGeneration(text, time.Since(genStart))

	answer := &core.Answer{
		Answer:         strings.TrimSpace(text),
		Mode:           mode.Tag(),
		Sources:        sources,
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
	monitor.Finish(answer)
	return answer, nil
}

// retrieve embeds the question with the query task hint and searches the
// collection.
func (o *Orchestrator) retrieve(ctx context.Context, question string) ([]core.Hit, error) {
	vectors, err := o.embedder.EmbedTexts(ctx, []string{question}, ai.TaskQuery)
	if err != nil {
		o.logger.Error("error embedding question", "err", err)
		return nil, err
	}

	hits, err := o.store.Search(ctx, o.collection, vectors[0], o.topK)
	if err != nil {
		o.logger.Error("error searching collection", "collection", o.collection, "err", err)
		return nil, err
	}
	return hits, nil
}

// keepRelevant filters hits below the floor, preserving rank order.
func keepRelevant(hits []core.Hit, floor float32) []core.Hit {
	if floor <= 0 {
		return hits
	}
	kept := make([]core.Hit, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= floor {
			kept = append(kept, hit)
		}
	}
	return kept
}

// citations maps kept hits to answer sources, truncating chunk text and
// rounding scores for the wire.
func citations(hits []core.Hit) []core.Source {
	sources := make([]core.Source, len(hits))
	for i, hit := range hits {
		sources[i] = core.Source{
			Source:    hit.Payload.Source,
			ChunkText: truncateRunes(hit.Payload.Text, citationTextLimit),
			Score:     roundScore(hit.Score),
			Section:   hit.Payload.Section,
		}
	}
	return sources
}

// roundScore rounds to three decimals, matching the wire format.
func roundScore(score float32) float32 {
	return float32(math.Round(float64(score)*1000) / 1000)
}
