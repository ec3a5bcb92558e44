package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/session"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// DefaultLoginPath is the backend's session establishment endpoint.
const DefaultLoginPath = "/v1/sessions"

// loginRequest carries operator credentials to the login endpoint.
type loginRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// loginResponse is the backend's session grant.
type loginResponse struct {
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

// SessionRefresher logs in over the request/response binding and is plugged
// into the session coordinator. The login endpoint is anonymous, so refresh
// never re-enters the coordinator it serves.
type SessionRefresher struct {
	client *Client
	path   string
}

// NewSessionRefresher creates a refresher against the given login path.
// An empty path means DefaultLoginPath.
func NewSessionRefresher(client *Client, path string) *SessionRefresher {
	if path == "" {
		path = DefaultLoginPath
	}
	return &SessionRefresher{client: client, path: path}
}

// Refresh exchanges credentials for a fresh session. Rejected credentials
// map to ErrAuthenticationFailed so the coordinator discards them; transport
// failures map to ErrNetworkUnavailable so they are kept for a later retry.
func (r *SessionRefresher) Refresh(ctx context.Context, creds session.Credentials) (session.Session, error) {
	resp, err := Do[loginResponse](ctx, r.client, Endpoint{
		Method: http.MethodPost,
		Path:   r.path,
		Body: loginRequest{
			Username: creds.Username,
			Secret:   creds.Secret,
		},
	})
	if err != nil {
		if se := transport.AsServiceError(err); se != nil {
			switch se.Kind {
			case transport.ErrUnauthorized, transport.ErrForbidden:
				return session.Session{}, fmt.Errorf("%w: %s", session.ErrAuthenticationFailed, se.Kind)
			case transport.ErrNoNetworkConnection, transport.ErrOnConnection:
				return session.Session{}, fmt.Errorf("%w: %s", session.ErrNetworkUnavailable, se.Message)
			}
		}
		return session.Session{}, err
	}

	return session.Session{
		SessionID: resp.SessionID,
		UserID:    resp.UserID,
		IssuedAt:  time.Now(),
		TTL:       time.Duration(resp.TTLSeconds) * time.Second,
	}, nil
}
