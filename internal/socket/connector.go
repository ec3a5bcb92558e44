package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/session"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// Stream is one active topic subscription. The first event is always Connect
// carrying the handle; payloads follow as initial or updated content, and
// Disconnect is terminal.
type Stream struct {
	handle transport.Handle
	topic  transport.Topic
	events chan transport.SubscribableContent[json.RawMessage]

	closeOnce sync.Once
}

// Handle returns the server-assigned subscription handle.
func (s *Stream) Handle() transport.Handle { return s.handle }

// Topic returns the subscribed scope.
func (s *Stream) Topic() transport.Topic { return s.topic }

// Events returns the consumer-facing event channel. It closes after the
// Disconnect event.
func (s *Stream) Events() <-chan transport.SubscribableContent[json.RawMessage] {
	return s.events
}

func (s *Stream) closeWithDisconnect() {
	s.closeOnce.Do(func() {
		select {
		case s.events <- transport.Disconnected[json.RawMessage]():
		default:
		}
		close(s.events)
	})
}

// Connector multiplexes RPC commands and topic subscriptions over one
// persistent socket. Connect, Disconnect, Subscribe and Unsubscribe all run
// through a single serial section so connection state transitions never
// interleave. Reconnection is deliberately NOT handled here: the owning layer
// applies transport.Backoff so retry policy stays in one place.
//
// Payload ordering follows transport delivery order per handle. Pushes carry
// a monotonic seq; gaps are detected and logged but not repaired, so merge
// semantics downstream are last-delivered-wins.
type Connector struct {
	cfg         Config
	coordinator *session.Coordinator
	logger      *slog.Logger
	state       *transport.StateBroadcaster

	// opMu is the serial execution context for all state transitions.
	opMu sync.Mutex

	mu        sync.RWMutex
	client    *Client
	routeStop chan struct{}

	cmdID     atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan response

	subsMu  sync.Mutex
	subs    map[transport.Handle]*Stream
	lastSeq map[transport.Handle]int64
}

// NewConnector creates a connector. The coordinator may be nil when the
// socket endpoint is anonymous.
func NewConnector(cfg Config, coordinator *session.Coordinator, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if cfg.SubscriptionBuffer == 0 {
		cfg.SubscriptionBuffer = 256
	}
	return &Connector{
		cfg:         cfg,
		coordinator: coordinator,
		logger:      logger,
		state:       transport.NewStateBroadcaster(transport.StateDisconnected),
		pending:     make(map[int64]chan response),
		subs:        make(map[transport.Handle]*Stream),
		lastSeq:     make(map[transport.Handle]int64),
	}
}

// ConnectionState streams connected/disconnected transitions.
func (c *Connector) ConnectionState() (<-chan transport.State, func()) {
	return c.state.Subscribe()
}

// IsConnected reports whether the socket is currently up.
func (c *Connector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil && c.client.IsConnected()
}

// Connect dials the socket, authenticating first when the endpoint requires
// it. Connecting while connected is a no-op.
func (c *Connector) Connect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.IsConnected() {
		return nil
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.cfg.RequiresAuth {
		if c.coordinator == nil {
			return transport.InvalidRequestError("socket endpoint requires auth but connector has no session coordinator")
		}
		sess, err := c.coordinator.ValidSession(ctx, false)
		if err != nil {
			return &transport.ServiceError{Kind: transport.ErrUnauthorized, Message: err.Error()}
		}
		name := c.cfg.SessionHeader
		if name == "" {
			name = "X-SessionId"
		}
		header.Set(name, sess.SessionID)
	}

	clientCfg := c.cfg.Client
	clientCfg.URL = c.cfg.URL
	client := NewClient(clientCfg, header, c.logger)

	if err := client.Connect(ctx); err != nil {
		return transport.NetworkError(err)
	}

	routeStop := make(chan struct{})
	c.mu.Lock()
	c.client = client
	c.routeStop = routeStop
	c.mu.Unlock()

	go c.routeLoop(client, routeStop)

	c.state.Publish(transport.StateConnected)
	return nil
}

// Disconnect closes the socket and terminates every open subscription with a
// Disconnect event. Idempotent.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	client := c.client
	routeStop := c.routeStop
	c.client = nil
	c.routeStop = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if routeStop != nil {
		close(routeStop)
	}
	client.Close()

	c.dropAllSubscriptions()
	c.state.Publish(transport.StateDisconnected)
	return nil
}

// Subscribe opens a topic subscription and returns its stream. The Connect
// event carrying the handle is already queued on the returned stream.
func (c *Connector) Subscribe(ctx context.Context, topic transport.Topic) (*Stream, error) {
	topic, err := topic.Normalize()
	if err != nil {
		return nil, transport.InvalidRequestError(err.Error())
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.IsConnected() {
		return nil, transport.NotConnectedError()
	}

	resp, err := c.roundTrip(ctx, "subscribe", topic)
	if err != nil {
		return nil, err
	}
	if resp.Type == "error" {
		return nil, serviceErrorFromResponse(resp.Msg)
	}

	var sub subscribedMsg
	if err := json.Unmarshal(resp.Msg, &sub); err != nil {
		return nil, transport.DecodingError(err)
	}

	handle := transport.Handle(sub.Handle)
	stream := &Stream{
		handle: handle,
		topic:  topic,
		events: make(chan transport.SubscribableContent[json.RawMessage], c.cfg.SubscriptionBuffer),
	}
	stream.events <- transport.Connected[json.RawMessage](handle)

	c.subsMu.Lock()
	c.subs[handle] = stream
	c.subsMu.Unlock()

	c.logger.Debug("subscribed", "topic", topic.String(), "handle", handle)
	return stream, nil
}

// Unsubscribe releases the subscription's server resources and ends its
// stream. Unknown handles are a no-op, so release paths can all call it.
func (c *Connector) Unsubscribe(ctx context.Context, handle transport.Handle) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.subsMu.Lock()
	stream, ok := c.subs[handle]
	if ok {
		delete(c.subs, handle)
		delete(c.lastSeq, handle)
	}
	c.subsMu.Unlock()

	if !ok {
		return nil
	}
	defer stream.closeWithDisconnect()

	if !c.IsConnected() {
		return nil
	}

	resp, err := c.roundTrip(ctx, "unsubscribe", unsubscribeParams{Handles: []int64{int64(handle)}})
	if err != nil {
		c.logger.Warn("unsubscribe round trip failed", "handle", handle, "error", err)
		return err
	}
	if resp.Type == "error" {
		se := serviceErrorFromResponse(resp.Msg)
		c.logger.Warn("unsubscribe rejected", "handle", handle, "error", se)
		return se
	}

	c.logger.Debug("unsubscribed", "handle", handle)
	return nil
}

// roundTrip sends a command and waits for its correlated response.
func (c *Connector) roundTrip(ctx context.Context, cmd string, params any) (response, error) {
	id := c.cmdID.Add(1)
	respCh := make(chan response, 1)

	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(command{ID: id, Cmd: cmd, Params: params})
	if err != nil {
		return response{}, transport.InvalidRequestError(err.Error())
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return response{}, transport.NotConnectedError()
	}
	if err := client.Send(data); err != nil {
		return response{}, transport.NetworkError(err)
	}

	select {
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-time.After(c.cfg.CommandTimeout):
		return response{}, &transport.ServiceError{Kind: transport.ErrNoNetworkConnection, Message: fmt.Sprintf("%s timeout", cmd)}
	case resp := <-respCh:
		return resp, nil
	}
}

// routeLoop reads frames off one client and dispatches them until the client
// dies or the connector tears it down.
func (c *Connector) routeLoop(client *Client, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case err := <-client.Errors():
			c.logger.Warn("socket connection lost", "error", err)
			c.connectionLost(client)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			c.route(msg)
		}
	}
}

// connectionLost tears down state after an unexpected drop. The owning layer
// observes the Disconnected state and decides whether to reconnect.
func (c *Connector) connectionLost(client *Client) {
	client.Close()

	c.mu.Lock()
	if c.client == client {
		c.client = nil
		c.routeStop = nil
	}
	c.mu.Unlock()

	c.dropAllSubscriptions()
	c.state.Publish(transport.StateDisconnected)
}

func (c *Connector) dropAllSubscriptions() {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = make(map[transport.Handle]*Stream)
	c.lastSeq = make(map[transport.Handle]int64)
	c.subsMu.Unlock()

	for _, s := range subs {
		s.closeWithDisconnect()
	}
}

func (c *Connector) route(msg InboundMessage) {
	if resp, ok := c.tryParseResponse(msg.Data); ok {
		c.pendingMu.Lock()
		ch, found := c.pending[resp.ID]
		if found {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
		if found {
			select {
			case ch <- resp:
			default:
			}
		}
		return
	}

	var push pushMessage
	if err := json.Unmarshal(msg.Data, &push); err != nil {
		c.logger.Warn("unparseable frame dropped", "error", err)
		return
	}

	handle := transport.Handle(push.Handle)
	c.subsMu.Lock()
	stream, ok := c.subs[handle]
	if ok && push.Seq != 0 {
		if last, seen := c.lastSeq[handle]; seen && push.Seq != last+1 {
			c.logger.Warn("sequence gap on subscription",
				"handle", handle,
				"expected", last+1,
				"got", push.Seq,
			)
		}
		c.lastSeq[handle] = push.Seq
	}
	c.subsMu.Unlock()

	if !ok {
		// Payload for a released handle; the server just has not processed
		// the unsubscribe yet.
		return
	}

	var event transport.SubscribableContent[json.RawMessage]
	switch push.Type {
	case pushInitialContent:
		event = transport.Initial[json.RawMessage](push.Deltas)
	case pushUpdatedContent:
		event = transport.Updated[json.RawMessage](push.Deltas)
	default:
		c.logger.Warn("unknown push type dropped", "type", push.Type)
		return
	}

	select {
	case stream.events <- event:
	default:
		c.logger.Warn("subscription buffer full, dropping payload", "handle", handle)
	}
}

// tryParseResponse detects command acknowledgements.
func (c *Connector) tryParseResponse(data []byte) (response, bool) {
	if !bytes.Contains(data, []byte(`"id":`)) {
		return response{}, false
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return response{}, false
	}
	switch resp.Type {
	case "subscribed", "unsubscribed", "error", "ok":
		return resp, true
	}
	return response{}, false
}
