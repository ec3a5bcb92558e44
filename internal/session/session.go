// Package session owns credentials and the current backend session, and
// guarantees single-flight refresh: any number of concurrent callers asking
// for a valid token while a refresh is in flight share the one refresh and
// its result.
package session

import (
	"errors"
	"time"
)

// Errors
var (
	// ErrAuthenticationFailed means the backend rejected the stored
	// credentials. This is the canonical "requires login" signal; stored
	// credentials are cleared when it occurs.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNetworkUnavailable means the refresh could not reach the backend.
	// Credentials are kept; a later attempt may succeed.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrNoCredentials means a refresh was needed but nothing is stored to
	// refresh with.
	ErrNoCredentials = errors.New("no stored credentials")
)

// Credentials are what the coordinator holds for silent refresh.
type Credentials struct {
	Username string
	Secret   string
}

// Session is an authenticated backend session. Immutable once built; a
// refresh constructs a new Session and swaps it atomically.
type Session struct {
	SessionID string
	UserID    string
	IssuedAt  time.Time
	TTL       time.Duration
}

// ExpiresAt returns the end of the session's validity window.
func (s Session) ExpiresAt() time.Time {
	return s.IssuedAt.Add(s.TTL)
}

// ExpiredAt reports whether the session is unusable at the given instant,
// with slack subtracted so tokens are renewed before the server-side cutoff.
func (s Session) ExpiredAt(now time.Time, slack time.Duration) bool {
	if s.SessionID == "" {
		return true
	}
	return !now.Before(s.ExpiresAt().Add(-slack))
}
