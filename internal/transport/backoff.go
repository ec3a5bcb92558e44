package transport

import (
	"context"
	"fmt"
	"time"
)

// Backoff is the reconnection policy shared by every binding's owning layer.
// Bindings never retry on their own; whoever created the connection applies
// this policy so it exists in exactly one place.
type Backoff struct {
	Base        time.Duration // first delay
	Ceiling     time.Duration // hard cap on a single delay
	MaxAttempts int
}

// DefaultBackoff doubles from 200ms for at most 6 attempts, capped at 6.4s.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        200 * time.Millisecond,
		Ceiling:     6400 * time.Millisecond,
		MaxAttempts: 6,
	}
}

// Delay returns the wait before the given zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base << attempt
	if d > b.Ceiling || d <= 0 {
		return b.Ceiling
	}
	return d
}

// Retry runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The first attempt runs after Base; each following delay doubles.
func (b Backoff) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Delay(attempt)):
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("gave up after %d attempts: %w", b.MaxAttempts, lastErr)
}
