package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler receives published events. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(event *Event)

// SubscriptionID identifies a subscription for Unsubscribe
type SubscriptionID string

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is an in-process publish/subscribe hub
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscription
	now         func() time.Time
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType][]subscription),
		now:         time.Now,
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) SubscriptionID {
	id := SubscriptionID(uuid.NewString())

	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return id
}

// SubscribeMany registers the same handler for several event types
func (b *Bus) SubscribeMany(eventTypes []EventType, handler Handler) []SubscriptionID {
	ids := make([]SubscriptionID, 0, len(eventTypes))
	for _, t := range eventTypes {
		ids = append(ids, b.Subscribe(t, handler))
	}
	return ids
}

// Unsubscribe removes subscriptions by id. Unknown ids are ignored.
func (b *Bus) Unsubscribe(ids ...SubscriptionID) {
	if len(ids) == 0 {
		return
	}
	remove := make(map[SubscriptionID]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		kept := subs[:0]
		for _, s := range subs {
			if _, drop := remove[s.id]; !drop {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.subscribers, eventType)
		} else {
			b.subscribers[eventType] = kept
		}
	}
}

// Emit publishes an event to every subscriber of its type and returns it
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) *Event {
	event := &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: b.now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[eventType]))
	copy(subs, b.subscribers[eventType])
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(s, event)
	}
	return event
}

// SubscriberCount returns the number of handlers registered for a type
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

func (b *Bus) dispatch(s subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Str("subscription", string(s.id)).
				Msg("Event handler panicked")
		}
	}()
	s.handler(event)
}
