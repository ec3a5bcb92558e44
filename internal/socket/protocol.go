package socket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// InboundMessage wraps raw socket bytes with the local receive timestamp.
type InboundMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// command is an RPC sent over the socket.
type command struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params,omitempty"`
}

// response is a command acknowledgement from the server.
type response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"` // "subscribed", "unsubscribed", "error", "ok"
	Msg  json.RawMessage `json:"msg"`
}

// subscribedMsg is the payload of a "subscribed" response.
type subscribedMsg struct {
	Handle int64 `json:"handle"`
}

// unsubscribeParams names the handles an unsubscribe command releases.
type unsubscribeParams struct {
	Handles []int64 `json:"handles"`
}

// errorMsg is the payload of an "error" response.
type errorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// pushMessage is a server-initiated payload on an open subscription. The
// deltas blob is left raw: the consumer owns decoding, so initial and
// updated content flow through one merge path.
type pushMessage struct {
	Type   string          `json:"type"` // "initial_content" or "updated_content"
	Handle int64           `json:"handle"`
	Seq    int64           `json:"seq,omitempty"`
	Deltas json.RawMessage `json:"deltas"`
}

const (
	pushInitialContent = "initial_content"
	pushUpdatedContent = "updated_content"
)

// ClientConfig configures the low-level socket client.
type ClientConfig struct {
	URL          string
	PingTimeout  time.Duration // max silence before the connection counts as stale
	WriteTimeout time.Duration
	BufferSize   int // inbound message channel capacity
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   4096,
	}
}

// Config configures the socket connector.
type Config struct {
	URL                string
	RequiresAuth       bool
	SessionHeader      string // defaults to the rest binding's X-SessionId
	CommandTimeout     time.Duration
	SubscriptionBuffer int // per-subscription event channel capacity
	Client             ClientConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionHeader:      "X-SessionId",
		CommandTimeout:     10 * time.Second,
		SubscriptionBuffer: 256,
		Client:             DefaultClientConfig(),
	}
}

// serviceErrorFromResponse maps a socket-level "error" response into the
// shared taxonomy.
func serviceErrorFromResponse(msg json.RawMessage) *transport.ServiceError {
	var em errorMsg
	if err := json.Unmarshal(msg, &em); err != nil {
		return transport.DecodingError(err)
	}
	switch em.Code {
	case "not_found":
		return &transport.ServiceError{Kind: transport.ErrNotFound, Message: em.Message}
	case "unauthorized":
		return &transport.ServiceError{Kind: transport.ErrUnauthorized, Message: em.Message}
	case "invalid_request":
		return &transport.ServiceError{Kind: transport.ErrInvalidRequestFormat, Message: em.Message}
	default:
		return &transport.ServiceError{Kind: transport.ErrBadRequest, Message: em.Code + ": " + em.Message}
	}
}
