package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/metrics"
)

// Refresher exchanges credentials for a fresh session. Implementations must
// distinguish rejection (ErrAuthenticationFailed) from transient failure
// (ErrNetworkUnavailable); the coordinator keys credential cleanup off that.
type Refresher interface {
	Refresh(ctx context.Context, creds Credentials) (Session, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, creds Credentials) (Session, error)

func (f RefresherFunc) Refresh(ctx context.Context, creds Credentials) (Session, error) {
	return f(ctx, creds)
}

// Coordinator is process-wide shared session state. It is the only component
// in the sync core requiring cross-component mutual exclusion: the
// single-flight refresh.
type Coordinator struct {
	refresher Refresher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	ttlSlack  time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	creds   *Credentials
	session Session

	group singleflight.Group
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTTLSlack renews sessions this long before their server-side expiry.
func WithTTLSlack(d time.Duration) Option {
	return func(c *Coordinator) { c.ttlSlack = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithMetrics counts successful refreshes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates a coordinator in the anonymous state.
func NewCoordinator(refresher Refresher, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		refresher: refresher,
		logger:    logger,
		ttlSlack:  30 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidSession returns the current session, refreshing first if it is expired
// or forceRefresh is set. Concurrent callers during an in-flight refresh all
// receive the same resulting Session or the same failure.
func (c *Coordinator) ValidSession(ctx context.Context, forceRefresh bool) (Session, error) {
	if !forceRefresh {
		c.mu.RLock()
		s := c.session
		c.mu.RUnlock()
		if !s.ExpiredAt(c.now(), c.ttlSlack) {
			return s, nil
		}
	}

	v, err, shared := c.group.Do("refresh", func() (any, error) {
		// Detach from the first caller's context so its cancellation does
		// not fail the joiners attached to this flight.
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return Session{}, err
	}
	if shared {
		c.logger.Debug("joined in-flight session refresh")
	}
	return v.(Session), nil
}

func (c *Coordinator) refresh(ctx context.Context) (Session, error) {
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()

	if creds == nil {
		return Session{}, ErrNoCredentials
	}

	s, err := c.refresher.Refresh(ctx, *creds)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			c.logger.Warn("session refresh rejected, clearing credentials", "error", err)
			c.mu.Lock()
			c.creds = nil
			c.session = Session{}
			c.mu.Unlock()
		} else {
			c.logger.Warn("session refresh failed", "error", err)
		}
		return Session{}, err
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SessionRefreshes.Inc()
	}
	c.logger.Info("session refreshed", "user_id", s.UserID, "expires_at", s.ExpiresAt())
	return s, nil
}

// UpdateCredentials stores credentials for silent refresh.
func (c *Coordinator) UpdateCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = &creds
	c.mu.Unlock()
}

// UpdateSession installs a session obtained outside the coordinator
// (a fresh login).
func (c *Coordinator) UpdateSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// ClearSession drops the session and credentials, returning to anonymous.
func (c *Coordinator) ClearSession() {
	c.mu.Lock()
	c.creds = nil
	c.session = Session{}
	c.mu.Unlock()
}

// Current returns the stored session without triggering a refresh. ok is
// false in the anonymous state.
func (c *Coordinator) Current() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.session.SessionID != ""
}
