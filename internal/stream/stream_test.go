package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/session"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// sseServer serves scripted SSE frames and then blocks until the request
// context ends or done is closed.
func sseServer(t *testing.T, frames []string, done <-chan struct{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
}

func testStreamConnector(url string) *Connector {
	cfg := DefaultConfig()
	cfg.URL = url
	return NewConnector(cfg, nil, nil)
}

func nextEvent(t *testing.T, ch <-chan transport.SubscribableContent[json.RawMessage]) transport.SubscribableContent[json.RawMessage] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("stream closed while waiting for event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return transport.SubscribableContent[json.RawMessage]{}
}

func TestOpenParsesFrames(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	server := sseServer(t, []string{
		"event: initial_content\ndata: [{\"kind\":\"match\",\"id\":\"e1\"}]\n\n",
		": keepalive\n\n",
		"retry: 5000\n\n",
		"event: updated_content\ndata: [{\"kind\":\"betting_offer\",\"id\":\"bo1\",\"odds\":\"2.35\"}]\n\n",
		"data: [{\"kind\":\"market\",\"id\":\"m1\"}]\n\n",
	}, done)
	defer server.Close()

	c := testStreamConnector(server.URL)
	s, err := c.Open(context.Background(), "/v1/feed", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	ev := nextEvent(t, s.Events())
	if ev.Type != transport.EventConnect {
		t.Fatalf("first event = %s, want connect", ev.Type)
	}
	if ev.Handle == 0 {
		t.Error("connect event missing handle")
	}

	ev = nextEvent(t, s.Events())
	if ev.Type != transport.EventInitialContent {
		t.Fatalf("event = %s, want initial_content", ev.Type)
	}
	if !strings.Contains(string(ev.Content), `"e1"`) {
		t.Errorf("payload = %s", ev.Content)
	}

	ev = nextEvent(t, s.Events())
	if ev.Type != transport.EventUpdatedContent {
		t.Fatalf("event = %s, want updated_content", ev.Type)
	}

	// Frames with no event name default to updated content.
	ev = nextEvent(t, s.Events())
	if ev.Type != transport.EventUpdatedContent {
		t.Fatalf("unnamed frame = %s, want updated_content", ev.Type)
	}
}

func TestOpenClassifiesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testStreamConnector(server.URL)
	_, err := c.Open(context.Background(), "/v1/feed", nil)
	if transport.AsServiceError(err).Kind != transport.ErrNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestOpenNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := testStreamConnector(server.URL)
	_, err := c.Open(context.Background(), "/v1/feed", nil)
	if transport.AsServiceError(err).Kind != transport.ErrNoNetworkConnection {
		t.Errorf("expected no_network_connection, got %v", err)
	}
}

func TestStreamEndsWithDisconnectAndNoAutoReconnect(t *testing.T) {
	var opens atomic.Int64
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opens.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [{\"kind\":\"match\",\"id\":\"e1\"}]\n\n")
		w.(http.Flusher).Flush()
		<-done
	}))
	defer server.Close()

	c := testStreamConnector(server.URL)
	s, err := c.Open(context.Background(), "/v1/feed", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	nextEvent(t, s.Events()) // connect
	nextEvent(t, s.Events()) // data

	close(done) // server ends the stream

	ev := nextEvent(t, s.Events())
	if ev.Type != transport.EventDisconnect {
		t.Fatalf("expected disconnect, got %s", ev.Type)
	}
	if _, ok := <-s.Events(); ok {
		t.Error("channel should close after disconnect")
	}

	time.Sleep(50 * time.Millisecond)
	if got := opens.Load(); got != 1 {
		t.Errorf("binding reconnected on its own: %d opens", got)
	}
}

func TestCloseStopsStream(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	server := sseServer(t, []string{"data: [{\"kind\":\"match\",\"id\":\"e1\"}]\n\n"}, done)
	defer server.Close()

	c := testStreamConnector(server.URL)
	s, err := c.Open(context.Background(), "/v1/feed", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	nextEvent(t, s.Events()) // connect
	nextEvent(t, s.Events()) // data

	s.Close()
	s.Close() // idempotent

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return
			}
			if ev.Type != transport.EventDisconnect {
				t.Errorf("unexpected trailing event %s", ev.Type)
			}
		case <-deadline:
			t.Fatal("stream never terminated after Close")
		}
	}
}

func TestOpenAttachesSessionHeader(t *testing.T) {
	var gotSession atomic.Value
	done := make(chan struct{})
	defer close(done)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession.Store(r.Header.Get("X-SessionId"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = server.URL
	cfg.RequiresAuth = true
	c := NewConnector(cfg, staticCoordinator(t, "sess-123"), nil)

	stream, err := c.Open(context.Background(), "/v1/feed", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	if ev := nextEvent(t, stream.Events()); ev.Type != transport.EventConnect {
		t.Fatalf("first event = %s, want connect", ev.Type)
	}
	if got := gotSession.Load(); got != "sess-123" {
		t.Errorf("session header = %q, want %q", got, "sess-123")
	}
}

func TestOpenCustomSessionHeader(t *testing.T) {
	var gotSession atomic.Value
	done := make(chan struct{})
	defer close(done)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession.Store(r.Header.Get("X-Feed-Session"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.URL = server.URL
	cfg.RequiresAuth = true
	cfg.SessionHeader = "X-Feed-Session"
	c := NewConnector(cfg, staticCoordinator(t, "sess-456"), nil)

	stream, err := c.Open(context.Background(), "/v1/feed", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	nextEvent(t, stream.Events())
	if got := gotSession.Load(); got != "sess-456" {
		t.Errorf("session header = %q, want %q", got, "sess-456")
	}
}

func TestOpenAuthWithoutCoordinator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "http://127.0.0.1:1"
	cfg.RequiresAuth = true
	c := NewConnector(cfg, nil, nil)

	_, err := c.Open(context.Background(), "/v1/feed", nil)
	if transport.AsServiceError(err).Kind != transport.ErrInvalidRequestFormat {
		t.Errorf("expected invalid_request_format, got %v", err)
	}
}

func staticCoordinator(t *testing.T, sessionID string) *session.Coordinator {
	t.Helper()
	c := session.NewCoordinator(session.RefresherFunc(
		func(ctx context.Context, creds session.Credentials) (session.Session, error) {
			return session.Session{SessionID: sessionID, UserID: "u1", IssuedAt: time.Now(), TTL: time.Hour}, nil
		}), nil)
	c.UpdateCredentials(session.Credentials{Username: "u", Secret: "p"})
	return c
}
