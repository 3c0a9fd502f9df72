// internal/outbound/registry.go

package outbound

import (
	"sync"
	"time"
)

// PendingSend is one optimistic message awaiting its server echo.
type PendingSend struct {
	TempID         string
	ConversationID string
	Group          bool
	SentAt         time.Time
}

// PendingSendRegistry maps temp ids to in-flight sends. The inbound
// dispatcher consults it to collapse temp/canonical pairs
// deterministically instead of inferring membership from id prefixes.
type PendingSendRegistry struct {
	mu      sync.Mutex
	pending map[string]PendingSend
}

func NewPendingSendRegistry() *PendingSendRegistry {
	return &PendingSendRegistry{
		pending: make(map[string]PendingSend),
	}
}

// Register records a newly sent optimistic message.
func (r *PendingSendRegistry) Register(p PendingSend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.TempID] = p
}

// Resolve removes and returns the pending send for tempID, if any.
// Each temp id resolves at most once.
func (r *PendingSendRegistry) Resolve(tempID string) (PendingSend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[tempID]
	if ok {
		delete(r.pending, tempID)
	}
	return p, ok
}

// Remove drops a pending send whose emit failed.
func (r *PendingSendRegistry) Remove(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, tempID)
}

// Len returns the number of in-flight sends.
func (r *PendingSendRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Clear drops every pending send, used on conversation switch.
func (r *PendingSendRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = make(map[string]PendingSend)
}
