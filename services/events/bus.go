package events

import (
	"sync"

	"vendra/models"
)

// Publisher is what the settlement engine publishes domain events
// through. Passing a NoopPublisher disables fan-out, which tests use.
type Publisher interface {
	Publish(evt models.DomainEvent)
}

// Subscriber consumes domain events.
type Subscriber interface {
	Handle(evt models.DomainEvent)
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(models.DomainEvent) {}

// Bus is a small in-process event bus. Publish never blocks the engine:
// each subscriber is invoked on its own goroutine and failures stay on
// the subscriber's side.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber for all events.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish delivers the event to every subscriber asynchronously.
func (b *Bus) Publish(evt models.DomainEvent) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		go s.Handle(evt)
	}
}
