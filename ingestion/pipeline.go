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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/calenlabs/ragbook/ai"
	"github.com/calenlabs/ragbook/chunker"
	"github.com/calenlabs/ragbook/core"
	"github.com/calenlabs/ragbook/docsource"
	"github.com/calenlabs/ragbook/vectorstore"
)

const defaultBatchSize = 10

// Pipeline orchestrates corpus ingestion into a vector store collection.
type Pipeline struct {
	source     *docsource.Source
	chunker    *chunker.Chunker
	embedder   ai.Embedder
	store      vectorstore.Store
	collection string

	batchSize int
	pool      *ants.Pool
	progress  func(done, total int)
	logger    *slog.Logger
}

// Stats summarizes a completed ingestion run.
type Stats struct {
	Documents int // documents read from the source
	Chunks    int // chunks produced across all documents
	Vectors   int // embeddings generated
	Records   int // records upserted into the store
	Dimension int // embedding dimension of the collection
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded and upserted per batch.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", core.ErrConfig, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithProgress installs a callback invoked after each completed batch with
// the number of chunks processed so far and the total. Calls may come from
// multiple goroutines but never concurrently.
func WithProgress(fn func(done, total int)) Option {
	return func(p *Pipeline) error {
		p.progress = fn
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline writing into the named collection.
func NewPipeline(
	source *docsource.Source,
	chnk *chunker.Chunker,
	embedder ai.Embedder,
	store vectorstore.Store,
	collection string,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if chnk == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if collection == "" {
		return nil, ErrCollectionRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:     source,
		chunker:    chnk,
		embedder:   embedder,
		store:      store,
		collection: collection,
		batchSize:  defaultBatchSize,
		pool:       pool,
		logger:     slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Run ingests the corpus. With force set, the collection is dropped and
// rebuilt from scratch; otherwise records are upserted over the existing
// collection, replacing chunks whose (source, ordinal) identity matches.
func (p *Pipeline) Run(ctx context.Context, force bool) (*Stats, error) {
	documents, err := p.source.ReadAll()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Documents: len(documents)}

	var chunks []core.Chunk
	for _, doc := range documents {
		docChunks := p.chunker.Chunk(doc)
		if len(docChunks) == 0 {
			p.logger.Warn("document produced no chunks", "source", doc.Source)
			continue
		}
		chunks = append(chunks, docChunks...)
	}
	stats.Chunks = len(chunks)

	p.logger.Info("corpus read",
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"chunk_size", p.chunker.ChunkSize(),
		"overlap", p.chunker.Overlap())

	if force {
		if err := p.store.DeleteCollection(ctx, p.collection); err != nil {
			return nil, err
		}
		p.logger.Info("dropped collection for rebuild", "collection", p.collection)
	}

	if len(chunks) == 0 {
		p.logger.Warn("nothing to ingest")
		return stats, nil
	}

	batches := splitBatches(chunks, p.batchSize)

	// The first batch runs inline to learn the embedding dimension before
	// the collection exists and any workers start.
	first, err := p.embedBatch(ctx, batches[0])
	if err != nil {
		return nil, err
	}
	stats.Dimension = len(first[0].Vector)

	if err := p.store.EnsureCollection(ctx, p.collection, stats.Dimension); err != nil {
		return nil, err
	}
	if err := p.store.Upsert(ctx, p.collection, first); err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	done := len(batches[0])
	stats.Vectors = done
	stats.Records = done
	p.report(done, len(chunks))

	for _, batch := range batches[1:] {
		batch := batch
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()

			if runCtx.Err() != nil {
				return
			}

			records, err := p.embedBatch(runCtx, batch)
			if err != nil {
				fail(err)
				return
			}
			if err := p.store.Upsert(runCtx, p.collection, records); err != nil {
				fail(err)
				return
			}

			mu.Lock()
			stats.Vectors += len(records)
			stats.Records += len(records)
			done += len(batch)
			p.report(done, len(chunks))
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	p.logger.Info("ingestion complete",
		"collection", p.collection,
		"records", stats.Records,
		"dimension", stats.Dimension)
	return stats, nil
}

// embedBatch embeds one batch of chunks and pairs the vectors with their
// chunk payloads.
func (p *Pipeline) embedBatch(ctx context.Context, batch []core.Chunk) ([]core.Record, error) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts, ai.TaskDocument)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: embedded %d vectors for %d chunks",
			core.ErrProvider, len(vectors), len(batch))
	}

	records := make([]core.Record, len(batch))
	for i, chunk := range batch {
		records[i] = core.Record{
			Id:      chunk.Id,
			Vector:  vectors[i],
			Payload: chunk.Payload(),
		}
	}
	return records, nil
}

func (p *Pipeline) report(done, total int) {
	if p.progress != nil {
		p.progress(done, total)
	}
}

// Release frees the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func splitBatches(chunks []core.Chunk, size int) [][]core.Chunk {
	var batches [][]core.Chunk
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}
	return batches
}
