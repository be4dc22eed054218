package mock

import (
	"context"
	"hash/fnv"

	"github.com/calenlabs/ragbook/ai"
)

// Embedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type Embedder struct {
	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string, task ai.Task) ([][]float32, error)

	// Dimension of the generated default vectors.
	Dimension int

	callCount int
	lastTask  ai.Task
}

// NewEmbedder creates a mock embedder with default deterministic behavior.
// Note: returns the concrete type to allow test assertions.
func NewEmbedder() *Embedder {
	return &Embedder{Dimension: 384}
}

// EmbedTexts generates deterministic embeddings based on each text's hash.
// The task hint does not change the default vectors but is recorded for
// assertions via LastTask.
func (m *Embedder) EmbedTexts(ctx context.Context, texts []string, task ai.Task) ([][]float32, error) {
	m.callCount++
	m.lastTask = task

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts, task)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = DeterministicVector(text, m.Dimension)
	}
	return vectors, nil
}

// CallCount returns the number of times EmbedTexts was called.
func (m *Embedder) CallCount() int {
	return m.callCount
}

// LastTask returns the task hint of the most recent call.
func (m *Embedder) LastTask() ai.Task {
	return m.lastTask
}

// Reset clears recorded state and injected behavior.
func (m *Embedder) Reset() {
	m.callCount = 0
	m.lastTask = 0
	m.EmbedTextsFunc = nil
}

// DeterministicVector creates a deterministic embedding vector from text.
// It uses an FNV hash so the same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}

	// Normalize to unit length so dot products behave like cosine similarity.
	var sumSquares float32
	for _, v := range vector {
		sumSquares += v * v
	}
	if sumSquares > 0 {
		norm := float32(1.0) / float32(sumSquares)
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}
