package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calenlabs/ragbook/ai"
	"github.com/calenlabs/ragbook/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// All calls pass through a shared rate gate so concurrent batches still
// honor the provider's global ceiling.
type Embedder struct {
	embedder       embeddings.Embedder
	gate           *ai.Gate
	batchSize      int
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance and share the rate gate.
func newEmbedder(config *ai.Config, gate *ai.Gate) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	if gate == nil {
		gate = ai.NewGate(config.RequestsPerMinute, config.BatchDelay)
	}

	return &Embedder{
		embedder:       embedder,
		gate:           gate,
		batchSize:      config.EmbedBatchSize,
		maxRetries:     config.MaxRetries,
		retryBaseDelay: config.RetryBaseDelay,
		logger:         slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config, nil)
}

// EmbedTexts generates vector embeddings for the given texts, one vector per
// input, order-preserving. Input larger than the configured batch size is
// split into sub-batches; the shared gate delays sub-batches that would
// exceed the provider ceiling instead of failing them.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string, task ai.Task) ([][]float32, error) {
	if task != ai.TaskDocument && task != ai.TaskQuery {
		return nil, fmt.Errorf("%w: unknown embedding task %d", core.ErrConfig, task)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Debug("generating embeddings", "count", len(texts), "task", task.String())

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]

		if err := e.gate.Wait(ctx); err != nil {
			return nil, err
		}

		batchVectors, err := e.embedBatch(ctx, batch, task)
		if err != nil {
			e.logger.Error("failed to generate embeddings", "count", len(batch), "task", task.String(), "err", err)
			return nil, classify(err)
		}
		if len(batchVectors) != len(batch) {
			return nil, fmt.Errorf("%w: embedding count mismatch: expected %d, got %d",
				core.ErrProvider, len(batch), len(batchVectors))
		}

		vectors = append(vectors, batchVectors...)
	}

	return vectors, nil
}

// embedBatch issues one provider request with the bounded retry policy.
// The task hint selects document- or query-intent embedding.
func (e *Embedder) embedBatch(ctx context.Context, batch []string, task ai.Task) ([][]float32, error) {
	var vectors [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		switch task {
		case ai.TaskQuery:
			vectors = make([][]float32, 0, len(batch))
			for _, text := range batch {
				vector, qErr := e.embedder.EmbedQuery(ctx, text)
				if qErr != nil {
					return qErr
				}
				vectors = append(vectors, vector)
			}
		default:
			vectors, err = e.embedder.EmbedDocuments(ctx, batch)
		}
		return err
	}, e.maxRetries, e.retryBaseDelay)
	return vectors, err
}
