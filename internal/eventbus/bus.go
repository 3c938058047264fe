// Package eventbus implements a typed publish/subscribe bus with a
// wildcard-all subscriber, used by the kernel to fan lifecycle and
// hook-observability events out to interested plugins (spec.md §4.1,
// §4.2 "Observability").
package eventbus

import (
	"sync"
	"time"
)

// Envelope is the canonical on-wire event unit (spec.md §3).
type Envelope struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Subscriber receives envelopes. It is invoked synchronously from
// Publish (spec.md §5): a slow subscriber delays other subscribers on
// the same Publish call but never blocks unrelated tasks.
type Subscriber func(Envelope)

// wildcard is the event type a subscriber uses to receive every event.
const wildcard = "*"

// Bus is a typed publish/subscribe event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription
	seq         uint64
}

type subscription struct {
	id uint64
	fn Subscriber
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]subscription)}
}

// Subscribe registers fn for eventType. Pass "*" to receive every event
// regardless of type. Returns a disposer that removes the subscription.
func (b *Bus) Subscribe(eventType string, fn Subscriber) (dispose func()) {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an envelope to every subscriber registered for
// envelope's type plus every wildcard subscriber, in subscription order.
func (b *Bus) Publish(eventType string, payload any) {
	env := Envelope{Type: eventType, Payload: payload, At: time.Now()}

	b.mu.RLock()
	typed := append([]subscription(nil), b.subscribers[eventType]...)
	all := append([]subscription(nil), b.subscribers[wildcard]...)
	b.mu.RUnlock()

	for _, s := range typed {
		s.fn(env)
	}
	for _, s := range all {
		s.fn(env)
	}
}
