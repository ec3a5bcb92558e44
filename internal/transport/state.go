package transport

import "sync"

// State is the connection state of a binding.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// StateBroadcaster fans the connection state out to any number of listeners.
// Listeners get the current state immediately on subscribe, then every
// transition. Slow listeners never block the publisher: intermediate states
// are collapsed to the latest one.
type StateBroadcaster struct {
	mu        sync.Mutex
	current   State
	listeners map[int]chan State
	nextID    int
	closed    bool
}

// NewStateBroadcaster starts in the given state.
func NewStateBroadcaster(initial State) *StateBroadcaster {
	return &StateBroadcaster{
		current:   initial,
		listeners: make(map[int]chan State),
	}
}

// Current returns the last published state.
func (b *StateBroadcaster) Current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe registers a listener. The returned cancel func releases it and is
// safe to call more than once.
func (b *StateBroadcaster) Subscribe() (<-chan State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan State, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.listeners[id] = ch
	ch <- b.current

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if ch, ok := b.listeners[id]; ok {
				delete(b.listeners, id)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish records a transition and notifies listeners. Publishing the current
// state is a no-op.
func (b *StateBroadcaster) Publish(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || s == b.current {
		return
	}
	b.current = s

	for _, ch := range b.listeners {
		// Collapse to latest if the listener has not drained yet.
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Close releases all listeners.
func (b *StateBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.listeners {
		delete(b.listeners, id)
		close(ch)
	}
}
