package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a change to the reservations collection.
type Type string

const (
	ReservationCreated Type = "reservation.created"
	ReservationUpdated Type = "reservation.updated"
	ReservationDeleted Type = "reservation.deleted"
)

// Event is one committed change to a reservation document.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	ReservationID string    `json:"reservation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewEvent(t Type, reservationID uuid.UUID) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          t,
		ReservationID: reservationID.String(),
		Timestamp:     time.Now().UTC(),
	}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Bus fans committed changes out to every subscriber.
type Bus interface {
	Publish(ctx context.Context, event *Event) error
	Subscribe(buffer int) Subscriber
	Unsubscribe(sub Subscriber)
	Close() error
}

// MemoryBus is an in-process Bus. Delivery to a subscriber whose buffer is
// full is skipped, so consumers that must see every event keep a generous
// buffer and reconcile on their own.
type MemoryBus struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func NewMemoryBus() *MemoryBus {
	b := &MemoryBus{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *MemoryBus) Close() error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	return nil
}

func (b *MemoryBus) Subscribe(buffer int) Subscriber {
	if buffer <= 0 {
		buffer = 50
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, buffer)
	b.subscribers[sub] = true
	return sub
}

func (b *MemoryBus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

func (b *MemoryBus) Publish(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case b.eventCh <- event:
		return nil
	case <-b.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBus) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *MemoryBus) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			slog.Warn("event dropped, subscriber buffer full", "component", "events", "type", string(event.Type), "reservation_id", event.ReservationID)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *MemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Open builds the bus named by kind: "memory" (default) or "redis".
func Open(kind, redisURL string) (Bus, error) {
	switch kind {
	case "", "memory":
		return NewMemoryBus(), nil
	case "redis":
		bus, err := NewRedisBus(redisURL)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown event bus: %s", kind)
	}
}
