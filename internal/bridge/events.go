// Package bridge models the extension's two content-script realms: the
// injected provider that page code calls, and the isolated bridge that is
// the only realm allowed to talk to the background router. The two share a
// DOM-event-like bus and nothing else; message passing is the sole crossing
// mechanism between privilege zones, never shared state.
package bridge

import (
	"encoding/json"
	"sync"
)

// Event names exchanged on the page's event bus.
const (
	EventRequest         = "NILLION_REQUEST"
	EventResponse        = "NILLION_RESPONSE"
	EventForceDisconnect = "NILLION_FORCE_DISCONNECT"
)

// Event mirrors a custom DOM event: a name plus an opaque JSON detail.
type Event struct {
	Name   string
	Detail json.RawMessage
}

// Bus is the in-page event channel both realms listen on. Handlers run on
// their own goroutine, like DOM event dispatch: Dispatch never blocks the
// caller on a slow listener.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]func(Event))}
}

// Listen registers a handler for the named event.
func (b *Bus) Listen(name string, fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], fn)
}

// Dispatch delivers the event to every registered handler asynchronously.
func (b *Bus) Dispatch(e Event) {
	b.mu.RLock()
	handlers := make([]func(Event), len(b.handlers[e.Name]))
	copy(handlers, b.handlers[e.Name])
	b.mu.RUnlock()

	for _, fn := range handlers {
		go fn(e)
	}
}

// requestDetail is the provider→bridge event payload. The correlation id is
// page-local; it never reaches the background.
type requestDetail struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// responseDetail is the bridge→provider event payload, keyed by the same id.
type responseDetail struct {
	ID       int64           `json:"id"`
	Response json.RawMessage `json:"response"`
}

// disconnectDetail carries the origin of a force-disconnect broadcast.
type disconnectDetail struct {
	Origin string `json:"origin,omitempty"`
	Reason string `json:"reason,omitempty"`
}
