package ai

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a provider's global requests-per-minute ceiling across every
// caller that shares it. It combines a token bucket with a fixed minimum
// spacing between calls, so concurrent embedding batches are delayed rather
// than failed, no matter how many are in flight.
type Gate struct {
	bucket  *rate.Limiter // nil means no proactive ceiling
	spacing time.Duration // minimum interval between consecutive calls

	mu   sync.Mutex
	next time.Time // earliest moment the next call may proceed
}

// NewGate creates a rate-limiting gate. requestsPerMinute of 0 disables the
// token bucket; spacing of 0 disables minimum call spacing.
func NewGate(requestsPerMinute int, spacing time.Duration) *Gate {
	g := &Gate{spacing: spacing}
	if requestsPerMinute > 0 {
		g.bucket = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return g
}

// Wait blocks until it is safe to issue the next provider call, or until the
// context is done.
func (g *Gate) Wait(ctx context.Context) error {
	if g.bucket != nil {
		if err := g.bucket.Wait(ctx); err != nil {
			return err
		}
	}

	if g.spacing <= 0 {
		return nil
	}

	g.mu.Lock()
	now := time.Now()
	wait := g.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	g.next = now.Add(wait + g.spacing)
	g.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
