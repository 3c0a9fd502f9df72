// internal/readtrack/tracker.go

package readtrack

import (
	"log"
	"time"

	"github.com/openwave/chatsync/internal/protocol"
	"github.com/openwave/chatsync/internal/session"
	"github.com/openwave/chatsync/internal/store"
)

// Emitter is the slice of the connection manager the tracker needs.
type Emitter interface {
	Connected() bool
	Emit(event string, payload interface{}) error
}

// Tracker turns visibility of unread messages into read receipts and
// applies remote delivery/read updates. Local read marking is
// optimistic and never rolled back: reads are monotonic, so
// over-applying locally is harmless even if the server drops the event.
type Tracker struct {
	sess    session.Session
	emitter Emitter
	store   *store.Store

	now func() time.Time
}

func NewTracker(sess session.Session, emitter Emitter, st *store.Store) *Tracker {
	return &Tracker{
		sess:    sess,
		emitter: emitter,
		store:   st,
		now:     time.Now,
	}
}

// ObserveVisible scans messages currently visible to the viewer and
// emits one read receipt per direct message the viewer received but has
// not yet read. The store's monotonicity guard is the only dedupe: a
// message whose status already advanced to Read never re-emits, so
// there is no second source of truth to drift.
func (t *Tracker) ObserveVisible(messages []*store.Message) {
	for _, msg := range messages {
		if msg.IsGroup() {
			continue
		}
		if msg.RecipientID != t.sess.UserID || msg.SenderID == t.sess.UserID {
			continue
		}
		if msg.Status == store.StatusRead {
			continue
		}

		readAt := t.now()
		if !t.store.UpdateStatus(msg.ID, store.StatusRead, &readAt) {
			continue
		}

		err := t.emitter.Emit(protocol.EventMessageRead, protocol.MessageReadPayload{
			MessageID: msg.ID,
			ReadBy:    t.sess.UserID,
			SenderID:  msg.SenderID,
		})
		if err != nil {
			// Best effort: the receipt is retried naturally the next
			// time history is fetched; local state stays read.
			log.Printf("Failed to emit read receipt for %s: %v", msg.ID, err)
		}
	}
}

// ObserveVisibleGroup is the group analogue, keyed on ReadBy membership
// instead of status.
func (t *Tracker) ObserveVisibleGroup(groupID string, messages []*store.Message) {
	for _, msg := range messages {
		if !msg.IsGroup() || msg.GroupID != groupID {
			continue
		}
		if msg.SenderID == t.sess.UserID {
			continue
		}
		if msg.ReadByUser(t.sess.UserID) {
			continue
		}

		if !t.store.MarkMemberRead(msg.ID, t.sess.UserID, t.now()) {
			continue
		}

		err := t.emitter.Emit(protocol.EventGroupMessageRead, protocol.GroupMessageReadPayload{
			MessageID: msg.ID,
			UserID:    t.sess.UserID,
			GroupID:   groupID,
		})
		if err != nil {
			log.Printf("Failed to emit group read receipt for %s: %v", msg.ID, err)
		}
	}
}

// ApplyStatusUpdate applies a remote delivery/read transition. Unknown
// ids and backward transitions are silently dropped per the store's
// contracts.
func (t *Tracker) ApplyStatusUpdate(messageID string, status store.Status, readAt *time.Time) {
	t.store.UpdateStatus(messageID, status, readAt)
}

// ApplyGroupReadSet merges the server's reader list for a group
// message. Existing entries keep their original timestamps.
func (t *Tracker) ApplyGroupReadSet(messageID string, readers []store.ReadEntry) {
	for _, r := range readers {
		t.store.MarkMemberRead(messageID, r.UserID, r.ReadAt)
	}
}
