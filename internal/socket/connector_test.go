package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// feedServer speaks the command/response protocol: it acknowledges subscribe
// with a fixed handle and lets tests push payload frames on demand.
type feedServer struct {
	srv          *httptest.Server
	push         chan []byte
	unsubscribed chan struct{}
}

func newFeedServer(t *testing.T, handle int64) *feedServer {
	fs := &feedServer{
		push:         make(chan []byte, 16),
		unsubscribed: make(chan struct{}, 4),
	}
	fs.srv = mockWSServer(t, func(conn *websocket.Conn) {
		var wmu sync.Mutex
		write := func(v any) {
			wmu.Lock()
			defer wmu.Unlock()
			conn.WriteJSON(v)
		}

		go func() {
			for data := range fs.push {
				wmu.Lock()
				conn.WriteMessage(websocket.TextMessage, data)
				wmu.Unlock()
			}
		}()

		for {
			var cmd struct {
				ID     int64           `json:"id"`
				Cmd    string          `json:"cmd"`
				Params json.RawMessage `json:"params"`
			}
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			switch cmd.Cmd {
			case "subscribe":
				write(map[string]any{
					"id": cmd.ID, "type": "subscribed",
					"msg": map[string]any{"handle": handle},
				})
			case "unsubscribe":
				write(map[string]any{
					"id": cmd.ID, "type": "unsubscribed",
					"msg": map[string]any{},
				})
				select {
				case fs.unsubscribed <- struct{}{}:
				default:
				}
			}
		}
	})
	return fs
}

func (fs *feedServer) pushFrame(t *testing.T, frame string) {
	t.Helper()
	select {
	case fs.push <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatal("push buffer stuck")
	}
}

func testConnector(t *testing.T, fs *feedServer) *Connector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = wsURL(fs.srv)
	cfg.CommandTimeout = 2 * time.Second
	return NewConnector(cfg, nil, nil)
}

func testTopic() transport.Topic {
	return transport.Topic{
		OperatorID:      "op1",
		Language:        "en",
		SportID:         "1",
		NumberOfEvents:  10,
		MarketsPerEvent: 3,
	}
}

func nextEvent(t *testing.T, s *Stream) transport.SubscribableContent[json.RawMessage] {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("stream closed while waiting for event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return transport.SubscribableContent[json.RawMessage]{}
}

func TestSubscribeDeliversConnectWithHandle(t *testing.T) {
	fs := newFeedServer(t, 42)
	defer fs.srv.Close()

	c := testConnector(t, fs)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	stream, err := c.Subscribe(ctx, testTopic())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ev := nextEvent(t, stream)
	if ev.Type != transport.EventConnect {
		t.Fatalf("first event = %s, want connect", ev.Type)
	}
	if ev.Handle != 42 {
		t.Errorf("handle = %d, want 42", ev.Handle)
	}
	if stream.Handle() != 42 {
		t.Errorf("stream handle = %d", stream.Handle())
	}
}

func TestPushRoutingToSubscription(t *testing.T) {
	fs := newFeedServer(t, 7)
	defer fs.srv.Close()

	c := testConnector(t, fs)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	stream, err := c.Subscribe(ctx, testTopic())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	nextEvent(t, stream) // connect

	fs.pushFrame(t, `{"type":"initial_content","handle":7,"seq":1,"deltas":[{"kind":"match","id":"e1","name":"A vs B"}]}`)
	ev := nextEvent(t, stream)
	if ev.Type != transport.EventInitialContent {
		t.Fatalf("event = %s, want initial_content", ev.Type)
	}
	if !strings.Contains(string(ev.Content), `"e1"`) {
		t.Errorf("payload not forwarded: %s", ev.Content)
	}

	fs.pushFrame(t, `{"type":"updated_content","handle":7,"seq":2,"deltas":[{"kind":"betting_offer","id":"bo1","odds":"2.35"}]}`)
	ev = nextEvent(t, stream)
	if ev.Type != transport.EventUpdatedContent {
		t.Fatalf("event = %s, want updated_content", ev.Type)
	}
}

func TestUnsubscribeEndsStreamAndStopsDelivery(t *testing.T) {
	fs := newFeedServer(t, 9)
	defer fs.srv.Close()

	c := testConnector(t, fs)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	stream, err := c.Subscribe(ctx, testTopic())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	nextEvent(t, stream) // connect

	if err := c.Unsubscribe(ctx, stream.Handle()); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	select {
	case <-fs.unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("server never saw the unsubscribe command")
	}

	ev := nextEvent(t, stream)
	if ev.Type != transport.EventDisconnect {
		t.Fatalf("expected disconnect, got %s", ev.Type)
	}
	if _, ok := <-stream.Events(); ok {
		t.Error("stream should be closed after disconnect")
	}

	// A late push for the released handle is dropped silently.
	fs.pushFrame(t, `{"type":"updated_content","handle":9,"seq":3,"deltas":[]}`)
	time.Sleep(50 * time.Millisecond)

	// Releasing again is a no-op.
	if err := c.Unsubscribe(ctx, stream.Handle()); err != nil {
		t.Errorf("repeat Unsubscribe errored: %v", err)
	}
}

func TestSubscribeWithoutConnection(t *testing.T) {
	fs := newFeedServer(t, 1)
	defer fs.srv.Close()

	c := testConnector(t, fs)
	_, err := c.Subscribe(context.Background(), testTopic())

	se := transport.AsServiceError(err)
	if se.Kind != transport.ErrOnConnection {
		t.Errorf("expected on_connection, got %v", err)
	}
}

func TestSubscribeRejectsInvalidTopic(t *testing.T) {
	fs := newFeedServer(t, 1)
	defer fs.srv.Close()

	c := testConnector(t, fs)
	topic := testTopic()
	topic.SportID = ""

	_, err := c.Subscribe(context.Background(), topic)
	if transport.AsServiceError(err).Kind != transport.ErrInvalidRequestFormat {
		t.Errorf("expected invalid_request_format, got %v", err)
	}
}

func TestSubscribeErrorResponse(t *testing.T) {
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			var cmd struct {
				ID  int64  `json:"id"`
				Cmd string `json:"cmd"`
			}
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			conn.WriteJSON(map[string]any{
				"id": cmd.ID, "type": "error",
				"msg": map[string]any{"code": "not_found", "message": "unknown sport"},
			})
		}
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	c := NewConnector(cfg, nil, nil)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect(ctx)

	_, err := c.Subscribe(ctx, testTopic())
	se := transport.AsServiceError(err)
	if se.Kind != transport.ErrNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
	if se.Message != "unknown sport" {
		t.Errorf("message = %q", se.Message)
	}
}

func TestDisconnectClosesAllStreams(t *testing.T) {
	fs := newFeedServer(t, 11)
	defer fs.srv.Close()

	c := testConnector(t, fs)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	stream, err := c.Subscribe(ctx, testTopic())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	nextEvent(t, stream) // connect

	stateCh, cancel := c.ConnectionState()
	defer cancel()
	<-stateCh // current state

	if err := c.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	ev := nextEvent(t, stream)
	if ev.Type != transport.EventDisconnect {
		t.Fatalf("expected disconnect, got %s", ev.Type)
	}

	select {
	case s := <-stateCh:
		if s != transport.StateDisconnected {
			t.Errorf("state = %s", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no state transition observed")
	}

	if c.IsConnected() {
		t.Error("IsConnected after Disconnect")
	}

	// Disconnecting again is a no-op.
	if err := c.Disconnect(ctx); err != nil {
		t.Errorf("repeat Disconnect errored: %v", err)
	}
}

func TestServerDropTerminatesStreams(t *testing.T) {
	drop := make(chan struct{})
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		var cmd struct {
			ID  int64  `json:"id"`
			Cmd string `json:"cmd"`
		}
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{
			"id": cmd.ID, "type": "subscribed",
			"msg": map[string]any{"handle": 5},
		})
		<-drop
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	c := NewConnector(cfg, nil, nil)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	stream, err := c.Subscribe(ctx, testTopic())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	nextEvent(t, stream) // connect

	close(drop) // server closes the connection

	ev := nextEvent(t, stream)
	if ev.Type != transport.EventDisconnect {
		t.Fatalf("expected disconnect after drop, got %s", ev.Type)
	}
}
