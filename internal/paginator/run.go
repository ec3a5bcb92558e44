package paginator

import (
	"context"
	"encoding/json"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/builder"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/socket"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// run is the paginator's single serial execution context: every merge into
// the store happens here, in transport delivery order.
func (p *Paginator) run(
	ctx context.Context,
	stream *socket.Stream,
	out chan transport.SubscribableContent[[]model.EventsGroup],
	streamCh chan *socket.Stream,
	done chan struct{},
) {
	defer close(done)
	defer close(out)

	current := stream
	for {
		select {
		case <-ctx.Done():
			// Consumer cancelled: release the transport handle exactly once
			// on the way out.
			p.conn.Unsubscribe(context.Background(), current.Handle())
			p.emit(out, transport.Disconnected[[]model.EventsGroup]())
			return

		case next := <-streamCh:
			// Page extension swapped the subscription underneath us.
			old := current
			current = next
			go p.conn.Unsubscribe(context.Background(), old.Handle())

		case ev, ok := <-current.Events():
			if !ok {
				current = p.afterDrop(ctx, out)
				if current == nil {
					return
				}
				continue
			}

			switch ev.Type {
			case transport.EventConnect:
				p.emit(out, transport.Connected[[]model.EventsGroup](ev.Handle))

			case transport.EventInitialContent:
				p.apply(ev.Content, true, current.Handle(), out)

			case transport.EventUpdatedContent:
				p.apply(ev.Content, false, current.Handle(), out)

			case transport.EventDisconnect:
				current = p.afterDrop(ctx, out)
				if current == nil {
					return
				}
			}
		}
	}
}

// apply runs the merge → rebuild → emit pipeline for one payload. Initial
// snapshots and increments go through the same path.
func (p *Paginator) apply(raw json.RawMessage, initial bool, handle transport.Handle, out chan transport.SubscribableContent[[]model.EventsGroup]) {
	deltas, ok := p.decodeDeltas(raw)
	if !ok {
		return
	}

	if p.cfg.Tap != nil {
		p.mu.Lock()
		topic := p.topic.String()
		p.mu.Unlock()
		p.cfg.Tap(topic, int64(handle), deltas)
	}

	if p.metrics != nil {
		label := "updated_content"
		if initial {
			label = "initial_content"
		}
		p.metrics.PayloadsReceived.WithLabelValues(label).Inc()
	}

	touched := p.st.Merge(deltas)
	if len(touched) == 0 {
		return
	}

	groups := builder.EventsGroups(p.st)
	if p.metrics != nil {
		p.metrics.DeltasMerged.Add(float64(len(touched)))
		p.metrics.GroupsRebuilt.Inc()
	}

	if initial {
		p.emit(out, transport.Initial(groups))
	} else {
		p.emit(out, transport.Updated(groups))
	}

	p.observers.notify(p.st, touched)
}

// emit delivers to the consumer without ever blocking the merge path. A
// consumer that stopped draining loses intermediate collections, never the
// latest one: when the buffer is full the oldest event is collapsed away so
// a resuming consumer converges on current data.
func (p *Paginator) emit(out chan transport.SubscribableContent[[]model.EventsGroup], ev transport.SubscribableContent[[]model.EventsGroup]) {
	select {
	case out <- ev:
	default:
		// Collapse to latest if the consumer has not drained yet. The run
		// loop is the only producer, so the freed slot cannot be taken.
		p.logger.Warn("consumer behind, collapsing to latest", "type", ev.Type)
		select {
		case <-out:
		default:
		}
		out <- ev
	}
	if p.metrics != nil {
		p.metrics.EmissionsDelivered.Inc()
	}
}

// afterDrop handles a transport drop: surface Disconnect to the consumer,
// then reconnect and re-subscribe under the shared backoff policy. Returns
// the replacement stream, or nil when the paginator is done.
func (p *Paginator) afterDrop(ctx context.Context, out chan transport.SubscribableContent[[]model.EventsGroup]) *socket.Stream {
	p.emit(out, transport.Disconnected[[]model.EventsGroup]())

	if ctx.Err() != nil {
		return nil
	}

	p.mu.Lock()
	p.state = StateRefreshing
	topic := p.topic
	p.mu.Unlock()

	p.logger.Warn("feed dropped, refreshing subscription")

	var stream *socket.Stream
	err := p.cfg.Backoff.Retry(ctx, func(ctx context.Context) error {
		if p.metrics != nil {
			p.metrics.ReconnectAttempts.Inc()
		}
		if err := p.conn.Connect(ctx); err != nil {
			return err
		}
		s, err := p.conn.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		p.logger.Error("could not refresh subscription", "error", err)
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
		return nil
	}

	// Fresh server snapshot incoming; drop everything from the previous
	// subscription lifecycle.
	p.st.Clear()

	p.mu.Lock()
	p.state = StateStreaming
	p.mu.Unlock()

	p.logger.Info("subscription refreshed", "handle", stream.Handle())
	return stream
}
