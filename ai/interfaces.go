package ai

import "context"

// Task tells the embedding provider how the text will be used. Embedding
// models may place document-intent and query-intent text in slightly
// different regions of the vector space; using the wrong hint silently
// degrades retrieval quality, so the hint is a mandatory parameter and is
// never inferred from the input.
type Task int

const (
	// TaskDocument marks text being embedded for indexing.
	TaskDocument Task = iota + 1
	// TaskQuery marks text being embedded at retrieval time.
	TaskQuery
)

// String returns the wire name of the task hint.
func (t Task) String() string {
	switch t {
	case TaskDocument:
		return "document"
	case TaskQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedTexts generates one fixed-dimension vector per input text,
	// order-preserving. The task hint is mandatory.
	// Implementations honor the provider's rate ceiling internally:
	// a batch that would exceed it is delayed, not failed.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string, task Task) ([][]float32, error)
}

// Generator produces a free-text completion for a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate invokes the generative model once with the given prompt and
	// returns the generated text. No structured output is required of the
	// provider and no retry is performed on successful-but-low-quality output.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and
// Generator instances, ensuring they share configuration and resources.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
