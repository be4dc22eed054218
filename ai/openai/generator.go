package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calenlabs/ragbook/ai"
	"github.com/calenlabs/ragbook/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client         llms.Model
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:         client,
		maxRetries:     config.MaxRetries,
		retryBaseDelay: config.RetryBaseDelay,
		logger:         slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate invokes the generative model once with the given prompt.
// Transient provider failures are retried with bounded backoff; an empty
// completion is a provider failure, not a valid answer.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generating completion", "promptLength", len(prompt))

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	var answer string
	err := ai.RetryWithBackoff(ctx, func() error {
		response, err := g.client.GenerateContent(ctx, content)
		if err != nil {
			return err
		}
		if len(response.Choices) < 1 {
			return errors.New("empty response from generation model")
		}
		answer = strings.TrimSpace(response.Choices[0].Content)
		if answer == "" {
			return errors.New("empty completion from generation model")
		}
		return nil
	}, g.maxRetries, g.retryBaseDelay)

	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", classify(err)
	}

	return answer, nil
}

// classify wraps a provider failure with the module's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if core.IsTimeout(err) {
		return fmt.Errorf("%w: %v", core.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrProvider, err)
}
