package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotKeepsOnlyOnlineUsers(t *testing.T) {
	tr := NewTracker()

	tr.ApplySnapshot([]Status{
		{UserID: "a", Online: true},
		{UserID: "b", Online: false},
		{UserID: "c", Online: true},
	})

	require.Equal(t, []string{"a", "c"}, tr.Online())
	require.True(t, tr.IsOnline("a"))
	require.False(t, tr.IsOnline("b"))
}

// Snapshot [{A,true},{B,false}] then delta {B,true} yields {A,B}.
func TestSnapshotThenDelta(t *testing.T) {
	tr := NewTracker()

	tr.ApplySnapshot([]Status{
		{UserID: "a", Online: true},
		{UserID: "b", Online: false},
	})
	tr.ApplyDelta("b", true)

	require.Equal(t, []string{"a", "b"}, tr.Online())
}

func TestDeltaLastWriteWins(t *testing.T) {
	tr := NewTracker()

	tr.ApplyDelta("a", true)
	tr.ApplyDelta("a", false)
	tr.ApplyDelta("a", true)

	require.True(t, tr.IsOnline("a"))
}

func TestSnapshotReplacesPriorDeltas(t *testing.T) {
	tr := NewTracker()

	tr.ApplyDelta("a", true)
	tr.ApplyDelta("b", true)
	tr.ApplySnapshot([]Status{{UserID: "c", Online: true}})

	require.Equal(t, []string{"c"}, tr.Online())
}

func TestReset(t *testing.T) {
	tr := NewTracker()

	tr.ApplyDelta("a", true)
	tr.Reset()

	require.Empty(t, tr.Online())
}
