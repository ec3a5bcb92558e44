// Package paginator orchestrates one active socket subscription: it feeds
// inbound payloads to its entity store, asks the builder for fresh
// hierarchical collections, and republishes them plus pagination controls to
// its consumer. Every paginator exclusively owns its store; merges are
// serialized on the run loop.
package paginator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/metrics"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/socket"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/store"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// State is the paginator lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateSubscribing  State = "subscribing"
	StateStreaming    State = "streaming"
	StateRefreshing   State = "refreshing"
	StateUnsubscribed State = "unsubscribed"
)

// Config tunes one paginator.
type Config struct {
	// Topic is the initial subscription scope. Its event and market counts
	// are the paginator's only server-side knobs.
	Topic transport.Topic

	// PageStep is how many events LoadNextPage adds. 0 means "double the
	// current count".
	PageStep int

	// Buffer is the consumer channel capacity.
	Buffer int

	// Backoff drives reconnection after a socket drop.
	Backoff transport.Backoff

	// Tap observes every decoded merge batch before it hits the store, e.g.
	// for archival. It runs on the merge path and must not block.
	Tap func(topic string, handle int64, deltas []model.Delta)
}

// Paginator runs one sport-scoped feed. Use NewPreLive or NewLive.
type Paginator struct {
	cfg     Config
	conn    *socket.Connector
	logger  *slog.Logger
	metrics *metrics.Metrics

	st *store.Store

	mu       sync.Mutex
	state    State
	topic    transport.Topic
	out      chan transport.SubscribableContent[[]model.EventsGroup]
	streamCh chan *socket.Stream
	cancel   context.CancelFunc
	runDone  chan struct{}

	observers *observerRegistry
}

// NewPreLive creates a paginator for the pre-match feed of cfg.Topic's sport.
func NewPreLive(cfg Config, conn *socket.Connector, logger *slog.Logger, m *metrics.Metrics) *Paginator {
	cfg.Topic.InPlayOnly = false
	return newPaginator(cfg, conn, logger, m)
}

// NewLive creates a paginator scoped to in-play matches only.
func NewLive(cfg Config, conn *socket.Connector, logger *slog.Logger, m *metrics.Metrics) *Paginator {
	cfg.Topic.InPlayOnly = true
	return newPaginator(cfg, conn, logger, m)
}

func newPaginator(cfg Config, conn *socket.Connector, logger *slog.Logger, m *metrics.Metrics) *Paginator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = 64
	}
	if cfg.Backoff == (transport.Backoff{}) {
		cfg.Backoff = transport.DefaultBackoff()
	}
	return &Paginator{
		cfg:       cfg,
		conn:      conn,
		logger:    logger.With("topic", cfg.Topic.String()),
		metrics:   m,
		st:        store.New(),
		state:     StateIdle,
		topic:     cfg.Topic,
		observers: newObserverRegistry(),
	}
}

// State returns the current lifecycle state.
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe starts the feed, tearing down any previous subscription first and
// clearing the store so nothing leaks across lifecycles. The returned channel
// delivers Connect, then grouped collections on every inbound payload, and
// closes after the terminal Disconnect.
func (p *Paginator) Subscribe(ctx context.Context) (<-chan transport.SubscribableContent[[]model.EventsGroup], error) {
	p.Unsubscribe()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateSubscribing
	p.topic = p.cfg.Topic
	p.st.Clear()

	if !p.conn.IsConnected() {
		if err := p.conn.Connect(ctx); err != nil {
			p.state = StateIdle
			return nil, err
		}
	}

	stream, err := p.conn.Subscribe(ctx, p.topic)
	if err != nil {
		p.state = StateIdle
		return nil, err
	}

	out := make(chan transport.SubscribableContent[[]model.EventsGroup], p.cfg.Buffer)
	streamCh := make(chan *socket.Stream, 1)
	runCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})

	p.out = out
	p.streamCh = streamCh
	p.cancel = cancel
	p.runDone = runDone
	p.state = StateStreaming

	if p.metrics != nil {
		p.metrics.ActiveSubscriptions.Inc()
	}

	go p.run(runCtx, stream, out, streamCh, runDone)
	return out, nil
}

// LoadNextPage widens the feed by re-subscribing with a larger event count.
// Merge idempotence guarantees already-delivered entities are not duplicated.
func (p *Paginator) LoadNextPage(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStreaming {
		return transport.NotConnectedError()
	}

	step := p.cfg.PageStep
	if step <= 0 {
		step = p.topic.NumberOfEvents
	}
	next := p.topic.WithEventCount(p.topic.NumberOfEvents + step)

	stream, err := p.conn.Subscribe(ctx, next)
	if err != nil {
		return err
	}

	p.topic = next
	select {
	case p.streamCh <- stream:
	default:
		// The run loop has not consumed the previous swap yet; release the
		// orphaned stream rather than leaking its handle.
		go p.conn.Unsubscribe(context.Background(), stream.Handle())
		return transport.NotConnectedError()
	}

	p.logger.Info("page extended", "number_of_events", next.NumberOfEvents)
	return nil
}

// Unsubscribe releases the socket handle and stops all delivery. Idempotent
// and safe on teardown paths.
func (p *Paginator) Unsubscribe() {
	p.mu.Lock()
	cancel := p.cancel
	runDone := p.runDone
	p.cancel = nil
	p.runDone = nil
	p.out = nil
	p.streamCh = nil
	if p.state != StateIdle {
		p.state = StateUnsubscribed
	}
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if runDone != nil {
		select {
		case <-runDone:
		case <-time.After(5 * time.Second):
			p.logger.Warn("run loop did not stop in time")
		}
	}

	p.observers.closeAll()
	if p.metrics != nil {
		p.metrics.ActiveSubscriptions.Dec()
	}
}

// decodeDeltas turns a raw payload into typed deltas. A decoding failure is
// fatal to that one payload, never to the paginator.
func (p *Paginator) decodeDeltas(raw json.RawMessage) ([]model.Delta, bool) {
	var deltas []model.Delta
	if err := json.Unmarshal(raw, &deltas); err != nil {
		p.logger.Warn("payload dropped, deltas failed to decode", "error", err)
		if p.metrics != nil {
			p.metrics.DecodeFailures.Inc()
		}
		return nil, false
	}
	return deltas, true
}
