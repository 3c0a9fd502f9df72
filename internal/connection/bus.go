// internal/connection/bus.go

package connection

import (
	"encoding/json"
	"sync"
)

// Handler processes the raw payload of one named event.
type Handler func(data json.RawMessage)

// Bus fans inbound events out to subscribers. It replaces per-screen
// on/off callback pairs with typed subscription handles that are
// released deterministically when a view is torn down.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string]map[int]Handler),
	}
}

// Subscription is a handle to one registered handler.
type Subscription struct {
	bus   *Bus
	event string
	id    int
	once  sync.Once
}

// Close unregisters the handler. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		if hs, ok := s.bus.handlers[s.event]; ok {
			delete(hs, s.id)
			if len(hs) == 0 {
				delete(s.bus.handlers, s.event)
			}
		}
	})
}

// Subscribe registers a handler for the named event.
func (b *Bus) Subscribe(event string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	b.handlers[event][b.nextID] = h

	return &Subscription{bus: b, event: event, id: b.nextID}
}

// Publish invokes every handler registered for the event. Handlers run
// synchronously so a single connection's events are processed in
// arrival order.
func (b *Bus) Publish(event string, data json.RawMessage) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
}
