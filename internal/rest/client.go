// Package rest is the request/response connector binding. Endpoints marked as
// requiring authentication resolve a valid session first, and an
// authentication-class response triggers exactly one forced-refresh retry.
package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/session"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// DefaultSessionHeader is used when an endpoint does not name its own.
const DefaultSessionHeader = "X-SessionId"

// Client performs classified HTTP calls against the trading backend.
type Client struct {
	baseURL     string
	coordinator *session.Coordinator
	httpClient  *http.Client
	logger      *slog.Logger
	state       *transport.StateBroadcaster
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a REST client. The coordinator may be nil when no
// endpoint of this client requires authentication.
func NewClient(baseURL string, coordinator *session.Coordinator, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		coordinator: coordinator,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
		state:  transport.NewStateBroadcaster(transport.StateConnected),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the client-wide HTTP timeout. Per-endpoint timeouts
// override it per call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// ConnectionState streams reachability transitions observed by this client,
// so the UI can react to network loss independently of any in-flight call.
func (c *Client) ConnectionState() (<-chan transport.State, func()) {
	return c.state.Subscribe()
}
