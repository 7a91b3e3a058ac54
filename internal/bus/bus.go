// Package bus fans session events out to in-process subscribers such as
// WebSocket connections and the webhook dispatcher.
package bus

import (
	"log/slog"
	"sync"
)

// Event is a named payload published to every subscriber.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// EventHandler receives broadcast events. Handlers must not block.
type EventHandler func(Event)

// Broadcaster delivers events to registered subscribers.
type Broadcaster struct {
	subscribers map[string]EventHandler
	subMu       sync.RWMutex
}

func New() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]EventHandler)}
}

// Subscribe registers handler under id, replacing any previous handler with the same id.
func (b *Broadcaster) Subscribe(id string, handler EventHandler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes a subscriber.
func (b *Broadcaster) Unsubscribe(id string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	delete(b.subscribers, id)
}

// Count returns the number of subscribers.
func (b *Broadcaster) Count() int {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	return len(b.subscribers)
}

// Broadcast sends event to all subscribers. A panicking handler is logged and skipped.
func (b *Broadcaster) Broadcast(event Event) {
	b.subMu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.subMu.RUnlock()

	for _, h := range handlers {
		deliver(h, event)
	}
}

func deliver(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus: subscriber panicked", "event", event.Name, "panic", r)
		}
	}()
	h(event)
}
