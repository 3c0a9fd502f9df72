// internal/store/store.go

package store

import (
	"sort"
	"sync"
	"time"
)

// Store holds the ordered, deduplicated message list for the active
// conversation. Mutations arrive from the compose path, the inbound
// dispatcher and the read tracker in arbitrary interleavings, so every
// method is either idempotent or guarded by monotonic checks rather
// than relying on call ordering.
type Store struct {
	mu       sync.RWMutex
	messages []*Message
	byID     map[string]*Message
}

func NewStore() *Store {
	return &Store{
		byID: make(map[string]*Message),
	}
}

// Append inserts a message keeping timestamp order. Messages sharing a
// timestamp keep arrival order. If a message with the same id already
// exists this is a no-op and Append reports false.
func (s *Store) Append(msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[msg.ID]; exists {
		return false
	}

	s.insertLocked(msg)
	return true
}

// ReplaceTemporary collapses the optimistic entry under tempID into the
// server-confirmed message. Zero-valued fields on canonical keep the
// local value, so a bare acknowledgement (id only) still works. When
// the temp entry is missing, for instance when the echo outran the
// optimistic insert, it falls back to an idempotent Append.
func (s *Store) ReplaceTemporary(tempID string, canonical *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp, ok := s.byID[tempID]
	if !ok {
		if _, exists := s.byID[canonical.ID]; exists {
			return false
		}
		s.insertLocked(canonical)
		return true
	}

	// Both the echo and a direct append may race in; the canonical id
	// wins and the temp entry is dropped so no message shows twice.
	if _, exists := s.byID[canonical.ID]; exists {
		s.removeLocked(tempID)
		return true
	}

	delete(s.byID, tempID)
	temp.ID = canonical.ID
	s.byID[temp.ID] = temp

	if canonical.Text != "" {
		temp.Text = canonical.Text
	}
	if canonical.Attachment != nil {
		temp.Attachment = canonical.Attachment
	}
	if canonical.Status > temp.Status {
		temp.Status = canonical.Status
	}
	if canonical.ReadAt != nil && temp.ReadAt == nil {
		temp.ReadAt = canonical.ReadAt
	}
	for _, e := range canonical.ReadBy {
		if !temp.ReadByUser(e.UserID) {
			temp.ReadBy = append(temp.ReadBy, e)
		}
	}
	if !canonical.Timestamp.IsZero() {
		temp.Timestamp = canonical.Timestamp
		// The confirmed timestamp may only move the entry forward;
		// a visible jump backward would reorder messages under the
		// reader.
		s.bubbleForwardLocked(temp)
	}

	return true
}

// UpdateStatus applies a delivery-state transition to a direct message.
// Only forward transitions take effect; an unknown id is a no-op since
// the update may target a conversation that is no longer active.
// It reports whether the status actually advanced.
func (s *Store) UpdateStatus(id string, status Status, readAt *time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return false
	}
	if status <= msg.Status {
		return false
	}

	msg.Status = status
	if readAt != nil && msg.ReadAt == nil {
		msg.ReadAt = readAt
	}
	return true
}

// MarkMemberRead records that a group member read a message. The first
// recorded timestamp for a member wins; repeated calls are no-ops. It
// reports whether a new entry was added.
func (s *Store) MarkMemberRead(id, userID string, readAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return false
	}
	if msg.ReadByUser(userID) {
		return false
	}

	msg.ReadBy = append(msg.ReadBy, ReadEntry{UserID: userID, ReadAt: readAt})
	return true
}

// Remove deletes a message by id. Used to roll back an optimistic entry
// whose emit failed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return msg.Clone(), true
}

// Messages returns a copy of the ordered message list.
func (s *Store) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear empties the store. Called when the active conversation changes.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.byID = make(map[string]*Message)
}

func (s *Store) insertLocked(msg *Message) {
	// Upper bound keeps arrival order among equal timestamps.
	i := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].Timestamp.After(msg.Timestamp)
	})

	s.messages = append(s.messages, nil)
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
	s.byID[msg.ID] = msg
}

func (s *Store) removeLocked(id string) bool {
	msg, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)

	for i, m := range s.messages {
		if m == msg {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) bubbleForwardLocked(msg *Message) {
	i := -1
	for j, m := range s.messages {
		if m == msg {
			i = j
			break
		}
	}
	if i < 0 {
		return
	}
	for i+1 < len(s.messages) && s.messages[i+1].Timestamp.Before(msg.Timestamp) {
		s.messages[i], s.messages[i+1] = s.messages[i+1], s.messages[i]
		i++
	}

	// An adopted timestamp earlier than the preceding entry would leave
	// the slice unsorted and break the binary search in insertLocked.
	// The entry keeps its display position, so clamp the timestamp to
	// the predecessor's.
	if i > 0 && msg.Timestamp.Before(s.messages[i-1].Timestamp) {
		msg.Timestamp = s.messages[i-1].Timestamp
	}
}
