// Package stream is the unidirectional connector binding: a server-sent
// event feed over HTTP. Auto-reconnection is deliberately disabled inside
// the transport; the Reconnector applies the shared transport.Backoff policy
// on behalf of whoever opened the stream, so retry behavior lives in exactly
// one place.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/session"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// Config configures the streaming connector.
type Config struct {
	URL           string // base URL
	RequiresAuth  bool
	SessionHeader string        // defaults to X-SessionId
	DialTimeout   time.Duration // covers dial + response headers
	Buffer        int           // event channel capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionHeader: "X-SessionId",
		DialTimeout:   10 * time.Second,
		Buffer:        256,
	}
}

// Connector opens event streams against the backend.
type Connector struct {
	cfg         Config
	coordinator *session.Coordinator
	httpClient  *http.Client
	logger      *slog.Logger
	state       *transport.StateBroadcaster

	nextHandle atomic.Int64
}

// NewConnector creates a streaming connector. The coordinator may be nil for
// anonymous endpoints.
func NewConnector(cfg Config, coordinator *session.Coordinator, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = 256
	}
	return &Connector{
		cfg:         cfg,
		coordinator: coordinator,
		// No client-wide timeout: the body is a long-lived stream. The dial
		// phase is bounded separately.
		httpClient: &http.Client{},
		logger:     logger,
		state:      transport.NewStateBroadcaster(transport.StateDisconnected),
	}
}

// ConnectionState streams reachability transitions.
func (c *Connector) ConnectionState() (<-chan transport.State, func()) {
	return c.state.Subscribe()
}

// Stream is one open event feed.
type Stream struct {
	handle transport.Handle
	events chan transport.SubscribableContent[json.RawMessage]
	cancel context.CancelFunc
	once   sync.Once
}

// Handle returns the client-side identifier of this stream.
func (s *Stream) Handle() transport.Handle { return s.handle }

// Events returns the event channel; it closes after Disconnect.
func (s *Stream) Events() <-chan transport.SubscribableContent[json.RawMessage] {
	return s.events
}

// Close stops reading and ends the stream. Idempotent.
func (s *Stream) Close() {
	s.once.Do(s.cancel)
}

// Open starts a stream for the given path. The first event on the returned
// stream is Connect; frames follow as initial or updated content; the stream
// ends with Disconnect when the server drops it. No reconnection happens
// here.
func (c *Connector) Open(ctx context.Context, path string, query url.Values) (*Stream, error) {
	fullURL := c.cfg.URL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancelDial()

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		cancel()
		return nil, transport.InvalidRequestError(err.Error())
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	if c.cfg.RequiresAuth {
		if c.coordinator == nil {
			cancel()
			return nil, transport.InvalidRequestError("stream endpoint requires auth but connector has no session coordinator")
		}
		sess, err := c.coordinator.ValidSession(dialCtx, false)
		if err != nil {
			cancel()
			return nil, &transport.ServiceError{Kind: transport.ErrUnauthorized, Message: err.Error()}
		}
		name := c.cfg.SessionHeader
		if name == "" {
			name = "X-SessionId"
		}
		req.Header.Set(name, sess.SessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		c.state.Publish(transport.StateDisconnected)
		return nil, transport.NetworkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		cancel()
		return nil, transport.ClassifyStatus(resp.StatusCode, nil)
	}

	c.state.Publish(transport.StateConnected)

	s := &Stream{
		handle: transport.Handle(c.nextHandle.Add(1)),
		events: make(chan transport.SubscribableContent[json.RawMessage], c.cfg.Buffer),
		cancel: cancel,
	}
	s.events <- transport.Connected[json.RawMessage](s.handle)

	go c.readLoop(streamCtx, s, resp)
	return s, nil
}

// readLoop parses SSE frames off the response body until it ends.
func (c *Connector) readLoop(ctx context.Context, s *Stream, resp *http.Response) {
	defer resp.Body.Close()
	defer func() {
		c.state.Publish(transport.StateDisconnected)
		select {
		case s.events <- transport.Disconnected[json.RawMessage]():
		default:
		}
		close(s.events)
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data bytes.Buffer

	for scanner.Scan() {
		line := scanner.Bytes()

		if len(line) == 0 {
			// Blank line ends a frame.
			if data.Len() > 0 {
				c.dispatch(s, eventName, append([]byte(nil), data.Bytes()...))
			}
			eventName = ""
			data.Reset()
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventName = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data.Write(bytes.TrimSpace(line[len("data:"):]))
		case bytes.HasPrefix(line, []byte(":")):
			// Comment / keepalive.
		case bytes.HasPrefix(line, []byte("retry:")):
			// Server retry hints are ignored: backoff policy is owned by
			// the caller, not negotiated per transport.
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("event stream read failed", "error", err)
	}
}

func (c *Connector) dispatch(s *Stream, eventName string, data []byte) {
	var event transport.SubscribableContent[json.RawMessage]
	switch eventName {
	case "initial_content":
		event = transport.Initial[json.RawMessage](data)
	case "", "updated_content", "message":
		event = transport.Updated[json.RawMessage](data)
	default:
		c.logger.Debug("unknown stream event dropped", "event", eventName)
		return
	}

	select {
	case s.events <- event:
	default:
		c.logger.Warn("stream buffer full, dropping event")
	}
}
