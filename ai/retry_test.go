package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calenlabs/ragbook/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"server error", errors.New("503 service unavailable"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"auth failure", errors.New("401 unauthorized"), false},
		{"malformed input", errors.New("400 invalid request body"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first attempt", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient failure", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			if calls < 3 {
				return errors.New("429 rate limit")
			}
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error after exhaustion", func(t *testing.T) {
		transient := errors.New("503 service unavailable")
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			return transient
		}, 3, time.Millisecond)
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry non-transient failure", func(t *testing.T) {
		fatal := errors.New("401 unauthorized")
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			return fatal
		}, 3, time.Millisecond)
		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("invalid max attempts", func(t *testing.T) {
		err := RetryWithBackoff(ctx, func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, core.ErrConfig)
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryWithBackoff(cancelled, func() error { return nil }, 3, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGate(t *testing.T) {
	ctx := context.Background()

	t.Run("unlimited gate does not block", func(t *testing.T) {
		g := NewGate(0, 0)
		start := time.Now()
		for i := 0; i < 10; i++ {
			require.NoError(t, g.Wait(ctx))
		}
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("spacing delays consecutive calls", func(t *testing.T) {
		g := NewGate(0, 20*time.Millisecond)
		require.NoError(t, g.Wait(ctx))
		start := time.Now()
		require.NoError(t, g.Wait(ctx))
		assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	})

	t.Run("cancelled context aborts wait", func(t *testing.T) {
		g := NewGate(0, time.Minute)
		require.NoError(t, g.Wait(ctx))

		cancelled, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := g.Wait(cancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
