// Package eventbus is the in-process notification dispatcher that decouples
// the session, transport and game-flow layers from their collaborators
// (UI, audio, analytics). The bus is an owned instance, not a global:
// construct one at startup, pass it to each component, and Shutdown it to
// drop every subscription between matches.
package eventbus

import "sync"

// Topic identifies one notification stream.
type Topic string

// Handler receives one published event. Handlers run synchronously on the
// publisher's goroutine in subscription order and must not block.
type Handler func(data any)

type subscription struct {
	id      int
	handler Handler
}

// Bus dispatches published events to topic subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID int
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers a handler for a topic and returns its unsubscribe func.
// Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers data to every subscriber of the topic.
// Publishing to a topic with no subscribers is a no-op.
func (b *Bus) Publish(topic Topic, data any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	// Copy the list so handlers may subscribe/unsubscribe reentrantly.
	list := append([]subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range list {
		s.handler(data)
	}
}

// Shutdown drops all subscriptions. Further Publish and Subscribe calls are
// no-ops. A fresh bus is required for a new match.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[Topic][]subscription)
}
