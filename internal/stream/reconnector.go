package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// Opener starts one stream attempt.
type Opener func(ctx context.Context) (*Stream, error)

// Reconnector republishes a continuous event feed across stream drops,
// applying the shared backoff policy between attempts. The attempt counter
// resets after every successful open, so a long-lived feed that drops once a
// day never exhausts its budget.
type Reconnector struct {
	open   Opener
	policy transport.Backoff
	logger *slog.Logger
}

// NewReconnector wraps an opener with the given policy.
func NewReconnector(open Opener, policy transport.Backoff, logger *slog.Logger) *Reconnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconnector{open: open, policy: policy, logger: logger}
}

// Run opens the stream and pipes its events to the returned channel until
// ctx is cancelled or the retry budget is exhausted after a drop. The channel
// ends with a Disconnect event either way.
func (r *Reconnector) Run(ctx context.Context) <-chan transport.SubscribableContent[json.RawMessage] {
	out := make(chan transport.SubscribableContent[json.RawMessage], 64)

	go func() {
		defer close(out)
		defer func() {
			select {
			case out <- transport.Disconnected[json.RawMessage]():
			default:
			}
		}()

		for {
			s, err := r.open(ctx)
			if err != nil {
				r.logger.Warn("stream open failed, backing off", "error", err)
				if err := r.retryOpen(ctx, &s); err != nil {
					r.logger.Warn("stream reconnect budget exhausted", "error", err)
					return
				}
			}

			if !r.pipe(ctx, s, out) {
				return
			}
			r.logger.Info("stream dropped, reconnecting")
		}
	}()

	return out
}

func (r *Reconnector) retryOpen(ctx context.Context, s **Stream) error {
	return r.policy.Retry(ctx, func(ctx context.Context) error {
		opened, err := r.open(ctx)
		if err != nil {
			return err
		}
		*s = opened
		return nil
	})
}

// pipe forwards one stream's events. It returns false when the consumer is
// done (ctx cancelled), true when the stream dropped and a reconnect should
// follow.
func (r *Reconnector) pipe(ctx context.Context, s *Stream, out chan<- transport.SubscribableContent[json.RawMessage]) bool {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-s.Events():
			if !ok {
				return true
			}
			if ev.Type == transport.EventDisconnect {
				// Swallowed: the consumer sees one continuous feed; the
				// terminal Disconnect is emitted by Run on the way out.
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return false
			}
		}
	}
}
