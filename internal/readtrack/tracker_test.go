package readtrack

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openwave/chatsync/internal/protocol"
	"github.com/openwave/chatsync/internal/session"
	"github.com/openwave/chatsync/internal/store"
)

type emitted struct {
	event   string
	payload interface{}
}

type fakeEmitter struct {
	connected bool
	emitErr   error
	events    []emitted
}

func (f *fakeEmitter) Connected() bool { return f.connected }

func (f *fakeEmitter) Emit(event string, payload interface{}) error {
	if f.emitErr != nil {
		return f.emitErr
	}
	f.events = append(f.events, emitted{event, payload})
	return nil
}

func at(sec int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC)
}

func newTestTracker(emitter *fakeEmitter) (*Tracker, *store.Store) {
	st := store.NewStore()
	tr := NewTracker(session.New("bob", "tok"), emitter, st)
	tr.now = func() time.Time { return at(50) }
	return tr, st
}

func TestObserveVisibleEmitsOncePerMessage(t *testing.T) {
	emitter := &fakeEmitter{connected: true}
	tr, st := newTestTracker(emitter)

	st.Append(&store.Message{ID: "m1", SenderID: "alice", RecipientID: "bob", Status: store.StatusDelivered, Timestamp: at(1)})
	st.Append(&store.Message{ID: "m2", SenderID: "alice", RecipientID: "bob", Status: store.StatusSent, Timestamp: at(2)})

	tr.ObserveVisible(st.Messages())
	require.Len(t, emitter.events, 2)

	for _, id := range []string{"m1", "m2"} {
		got, _ := st.Get(id)
		require.Equal(t, store.StatusRead, got.Status, id)
	}

	// Second scan: the store guard suppresses every re-emit.
	tr.ObserveVisible(st.Messages())
	require.Len(t, emitter.events, 2)

	payload := emitter.events[0].payload.(protocol.MessageReadPayload)
	require.Equal(t, "m1", payload.MessageID)
	require.Equal(t, "bob", payload.ReadBy)
	require.Equal(t, "alice", payload.SenderID)
}

func TestObserveVisibleSkipsOwnAndForeignMessages(t *testing.T) {
	emitter := &fakeEmitter{connected: true}
	tr, st := newTestTracker(emitter)

	// Sent by the viewer: reading your own message emits nothing.
	st.Append(&store.Message{ID: "m1", SenderID: "bob", RecipientID: "alice", Status: store.StatusSent, Timestamp: at(1)})
	// Already read.
	st.Append(&store.Message{ID: "m2", SenderID: "alice", RecipientID: "bob", Status: store.StatusRead, Timestamp: at(2)})

	tr.ObserveVisible(st.Messages())
	require.Empty(t, emitter.events)
}

func TestObserveVisibleEmitFailureKeepsLocalRead(t *testing.T) {
	emitter := &fakeEmitter{connected: false, emitErr: errors.New("offline")}
	tr, st := newTestTracker(emitter)

	st.Append(&store.Message{ID: "m1", SenderID: "alice", RecipientID: "bob", Status: store.StatusSent, Timestamp: at(1)})

	tr.ObserveVisible(st.Messages())

	// Local read state is optimistic and never rolled back.
	got, _ := st.Get("m1")
	require.Equal(t, store.StatusRead, got.Status)
}

func TestObserveVisibleGroup(t *testing.T) {
	emitter := &fakeEmitter{connected: true}
	tr, st := newTestTracker(emitter)

	st.Append(&store.Message{ID: "m1", GroupID: "g1", SenderID: "alice", Timestamp: at(1)})
	st.Append(&store.Message{ID: "m2", GroupID: "g1", SenderID: "bob", Timestamp: at(2)})
	st.Append(&store.Message{ID: "m3", GroupID: "g1", SenderID: "carol",
		ReadBy: []store.ReadEntry{{UserID: "bob", ReadAt: at(3)}}, Timestamp: at(3)})

	tr.ObserveVisibleGroup("g1", st.Messages())

	// Only m1 qualifies: m2 is the viewer's own, m3 already read.
	require.Len(t, emitter.events, 1)
	require.Equal(t, protocol.EventGroupMessageRead, emitter.events[0].event)
	payload := emitter.events[0].payload.(protocol.GroupMessageReadPayload)
	require.Equal(t, "m1", payload.MessageID)
	require.Equal(t, "bob", payload.UserID)
	require.Equal(t, "g1", payload.GroupID)

	got, _ := st.Get("m1")
	require.True(t, got.ReadByUser("bob"))

	tr.ObserveVisibleGroup("g1", st.Messages())
	require.Len(t, emitter.events, 1, "membership check suppresses re-emit")
}

func TestApplyStatusUpdate(t *testing.T) {
	emitter := &fakeEmitter{connected: true}
	tr, st := newTestTracker(emitter)

	st.Append(&store.Message{ID: "m1", SenderID: "bob", RecipientID: "alice", Status: store.StatusSent, Timestamp: at(1)})

	readAt := at(10)
	tr.ApplyStatusUpdate("m1", store.StatusRead, &readAt)

	got, _ := st.Get("m1")
	require.Equal(t, store.StatusRead, got.Status)
	require.Equal(t, readAt, *got.ReadAt)

	// Backward transition from a late delivery event is dropped.
	tr.ApplyStatusUpdate("m1", store.StatusDelivered, nil)
	got, _ = st.Get("m1")
	require.Equal(t, store.StatusRead, got.Status)

	// Unknown id never errors.
	tr.ApplyStatusUpdate("missing", store.StatusRead, nil)
}

func TestApplyGroupReadSetMergesFirstWins(t *testing.T) {
	emitter := &fakeEmitter{connected: true}
	tr, st := newTestTracker(emitter)

	st.Append(&store.Message{ID: "m1", GroupID: "g1", SenderID: "alice",
		ReadBy: []store.ReadEntry{{UserID: "bob", ReadAt: at(5)}}, Timestamp: at(1)})

	tr.ApplyGroupReadSet("m1", []store.ReadEntry{
		{UserID: "bob", ReadAt: at(9)},
		{UserID: "carol", ReadAt: at(7)},
	})

	got, _ := st.Get("m1")
	require.Len(t, got.ReadBy, 2)
	require.Equal(t, at(5), got.ReadBy[0].ReadAt, "existing entry keeps its timestamp")
	require.True(t, got.ReadByUser("carol"))
}
