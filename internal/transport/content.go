// Package transport defines the contract shared by every connector binding:
// the connection-state stream, the SubscribableContent event type consumers
// receive, the closed service error taxonomy, and the one reconnection backoff
// policy. Bindings implement the contract; policy lives here so it is never
// duplicated per transport.
package transport

import "fmt"

// Handle identifies one active subscription. It is opaque to callers: the only
// valid use is passing it back to Unsubscribe.
type Handle int64

func (h Handle) String() string { return fmt.Sprintf("sub-%d", int64(h)) }

// ContentEventType discriminates SubscribableContent variants.
type ContentEventType string

const (
	EventConnect        ContentEventType = "connect"
	EventInitialContent ContentEventType = "initial_content"
	EventUpdatedContent ContentEventType = "updated_content"
	EventDisconnect     ContentEventType = "disconnect"
)

// SubscribableContent is the single event shape every consumer sees,
// regardless of binding. The first event on any subscription is always
// Connect carrying the handle; payloads follow as InitialContent (full
// snapshot) or UpdatedContent (increment), and both must go through the same
// merge path downstream.
type SubscribableContent[T any] struct {
	Type    ContentEventType
	Handle  Handle
	Content T
}

// Connected builds the handle-carrying first event.
func Connected[T any](h Handle) SubscribableContent[T] {
	return SubscribableContent[T]{Type: EventConnect, Handle: h}
}

// Initial builds a full-snapshot event.
func Initial[T any](content T) SubscribableContent[T] {
	return SubscribableContent[T]{Type: EventInitialContent, Content: content}
}

// Updated builds an incremental event.
func Updated[T any](content T) SubscribableContent[T] {
	return SubscribableContent[T]{Type: EventUpdatedContent, Content: content}
}

// Disconnected builds the terminal event.
func Disconnected[T any]() SubscribableContent[T] {
	return SubscribableContent[T]{Type: EventDisconnect}
}
