// internal/presence/tracker.go

package presence

import (
	"sort"
	"sync"
)

// Status is one user's presence record.
type Status struct {
	UserID string
	Online bool
}

// Tracker maintains the set of currently-online peers. A snapshot
// replaces the set wholesale; deltas toggle single users. The transport
// delivers events in arrival order on a single connection, so last
// write wins without any further ordering logic.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		online: make(map[string]struct{}),
	}
}

// ApplySnapshot replaces the online set with the users marked online in
// the snapshot.
func (t *Tracker) ApplySnapshot(users []Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.online = make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.Online {
			t.online[u.UserID] = struct{}{}
		}
	}
}

// ApplyDelta adds or removes a single user.
func (t *Tracker) ApplyDelta(userID string, online bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if online {
		t.online[userID] = struct{}{}
	} else {
		delete(t.online, userID)
	}
}

// IsOnline reports whether the user is currently online.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.online[userID]
	return ok
}

// Online returns the online user ids, sorted for stable iteration.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.online))
	for id := range t.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset clears the set, typically on connection loss when presence can
// no longer be trusted.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online = make(map[string]struct{})
}
