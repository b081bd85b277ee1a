// Package pubsub is a small synchronous topic bus. Publishers hand it
// (topic, timestamp, value) events; subscribers registered on that exact
// topic, or on the wildcard, receive them in subscription order.
package pubsub

import (
	"sync"
)

// Wildcard subscribes to every topic.
const Wildcard = "*"

// Handler receives one published event.
type Handler func(topic string, ts float64, value any)

type subscription struct {
	id uint64
	h  Handler
}

// Bus is safe for concurrent use. Handlers run on the publisher's goroutine
// without the bus lock held, so a handler may publish or subscribe.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers h on topic and returns a function removing it.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			// copy so in-flight publishes keep their snapshot
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, topic)
			} else {
				b.subs[topic] = next
			}
			return
		}
	}
}

// Publish delivers the event to the topic's subscribers, then to wildcard
// subscribers.
func (b *Bus) Publish(topic string, ts float64, value any) {
	b.mu.RLock()
	exact := b.subs[topic]
	var wild []subscription
	if topic != Wildcard {
		wild = b.subs[Wildcard]
	}
	b.mu.RUnlock()

	for _, s := range exact {
		s.h(topic, ts, value)
	}
	for _, s := range wild {
		s.h(topic, ts, value)
	}
}
