// Package eventbus provides an in-process notification bus for client-side
// events: request start and finish around every server round trip, and cache
// changes after a delta batch has been applied.
//
// Dispatch is synchronous and in subscription order, so a subscriber sees
// LoadingStarted before the matching LoadingFinished. Subscriptions are
// explicit handles that callers release when their view goes away.
package eventbus

import (
	"context"
	"log"
	"sync"
	"time"
)

// EventType names a notification.
type EventType string

const (
	LoadingStarted  EventType = "server-loading"
	LoadingFinished EventType = "server-loaded"
	CacheUpdated    EventType = "cache-updated"
)

// Event carries the details of one notification. Fields that do not apply to
// the event type are left zero.
type Event struct {
	Type      EventType
	Action    string
	RequestID string
	Elapsed   time.Duration
	Failed    bool

	// CacheUpdated only.
	Types      []string
	Applied    int
	LastUpdate int64
}

// Handler processes an event. Implementations must be safe for concurrent
// calls: round trips finish on their own goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Bus fans events out to its subscribers.
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers []namedHandler
}

type namedHandler struct {
	id      int
	name    string
	types   []EventType
	handler Handler
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus  *Bus
	id   int
	once sync.Once
}

// Unsubscribe removes the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.id) })
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a named handler for the given event types, or for
// every event when no types are given.
func (b *Bus) Subscribe(name string, h Handler, types ...EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subscribers = append(b.subscribers, namedHandler{id: b.nextID, name: name, types: types, handler: h})
	return &Subscription{bus: b, id: b.nextID}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every matching subscriber before returning.
// A nil Bus drops the event.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.wants(evt.Type) {
			continue
		}
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			log.Printf("eventbus: %s handler error for %s: %v", s.name, evt.Type, err)
		}
	}
}

func (h namedHandler) wants(t EventType) bool {
	if len(h.types) == 0 {
		return true
	}
	for _, x := range h.types {
		if x == t {
			return true
		}
	}
	return false
}
