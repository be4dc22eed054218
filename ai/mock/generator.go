package mock

import (
	"context"
)

// Generator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type Generator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the generator echoes the prompt with a fixed prefix, which
	// keeps the output deterministic and textually related to the input.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	callCount  int
	lastPrompt string
}

// NewGenerator creates a mock generator with default deterministic behavior.
// Note: returns the concrete type to allow test assertions.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a deterministic completion for the prompt.
func (m *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	m.lastPrompt = prompt

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}

	return "mock answer based on: " + prompt, nil
}

// CallCount returns the number of times Generate was called.
func (m *Generator) CallCount() int {
	return m.callCount
}

// LastPrompt returns the prompt of the most recent call.
func (m *Generator) LastPrompt() string {
	return m.lastPrompt
}

// Reset clears recorded state and injected behavior.
func (m *Generator) Reset() {
	m.callCount = 0
	m.lastPrompt = ""
	m.GenerateFunc = nil
}
