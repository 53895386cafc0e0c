package presence

import (
	"log/slog"
	"testing"
	"time"

	"collab-lab/domain"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var (
	roomID = domain.RoomID("room-1")
	alice  = domain.Participant{ID: "u1", DisplayName: "Alice"}
	bob    = domain.Participant{ID: "u2", DisplayName: "Bob"}
)

func newTestAggregator(now *time.Time) *Aggregator {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	agg := NewAggregator(log, 3*time.Second, 0)
	return agg.WithClock(func() time.Time { return *now })
}

func TestAggregator_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	agg := newTestAggregator(&now)

	// When the same participant joins twice
	req.True(agg.Join(roomID, alice))
	req.False(agg.Join(roomID, alice))

	// Then the snapshot holds a single entry
	snap := agg.Snapshot(roomID)
	req.Len(snap.Present, 1)
	req.Equal(alice, snap.Present[0])
}

func TestAggregator_Leave_When_Absent_Is_NoOp(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	agg := newTestAggregator(&now)

	req.False(agg.Leave(roomID, alice.ID))
	req.Empty(agg.Snapshot(roomID).Present)
}

func TestAggregator_Typing_Expires_After_Timeout(t *testing.T) {
	req := require.New(t)
	now := time.Unix(0, 0)
	agg := newTestAggregator(&now)
	agg.Join(roomID, alice)

	// Given typing activity at t=0 with a 3000ms timeout
	req.True(agg.MarkTyping(roomID, alice.ID))
	req.Len(agg.Snapshot(roomID).Typing, 1)

	// When 3001ms elapse with no further activity
	now = now.Add(3001 * time.Millisecond)

	// Then the user is no longer typing
	req.Empty(agg.Snapshot(roomID).Typing)
	// And presence is unaffected
	req.Len(agg.Snapshot(roomID).Present, 1)
}

func TestAggregator_Typing_Refreshed_By_Activity(t *testing.T) {
	req := require.New(t)
	now := time.Unix(0, 0)
	agg := newTestAggregator(&now)
	agg.Join(roomID, alice)

	// Given continuous typing every two seconds
	agg.MarkTyping(roomID, alice.ID)
	now = now.Add(2 * time.Second)
	req.False(agg.MarkTyping(roomID, alice.ID))
	now = now.Add(2 * time.Second)

	// Then four seconds after the first signal the state is still TYPING
	req.Len(agg.Snapshot(roomID).Typing, 1)
}

func TestAggregator_StopTyping_While_Idle_Is_NoOp(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	agg := newTestAggregator(&now)
	agg.Join(roomID, alice)

	req.False(agg.StopTyping(roomID, alice.ID))

	agg.MarkTyping(roomID, alice.ID)
	req.True(agg.StopTyping(roomID, alice.ID))
	req.False(agg.StopTyping(roomID, alice.ID))
}

func TestAggregator_MarkTyping_Requires_Presence(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	agg := newTestAggregator(&now)

	req.False(agg.MarkTyping(roomID, alice.ID))
	req.Empty(agg.Snapshot(roomID).Typing)
}

func TestAggregator_Disconnect_Implies_Leave_And_StopTyping(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	agg := newTestAggregator(&now)
	otherRoom := domain.RoomID("room-2")

	// Given one connection joined to two rooms and typing in one
	agg.OnJoin("conn-1", roomID, alice)
	agg.OnJoin("conn-1", otherRoom, alice)
	agg.OnJoin("conn-2", roomID, bob)
	agg.MarkTyping(roomID, alice.ID)
	req.True(agg.Online(alice.ID))

	// When the transport drops the connection without an explicit leave
	changed := agg.OnDisconnect("conn-1")

	// Then both rooms report a change
	req.ElementsMatch([]domain.RoomID{roomID, otherRoom}, changed)
	// And neither presence nor typing outlives the connection
	snap := agg.Snapshot(roomID)
	req.Equal([]domain.Participant{bob}, snap.Present)
	req.Empty(snap.Typing)
	req.Empty(agg.Snapshot(otherRoom).Present)
	req.False(agg.Online(alice.ID))
	req.True(agg.Online(bob.ID))
}

func TestAggregator_Disconnect_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	agg := newTestAggregator(&now)

	req.Nil(agg.OnDisconnect("ghost"))
}

func TestAggregator_Sweep_Reports_Changed_Rooms(t *testing.T) {
	req := require.New(t)
	now := time.Unix(0, 0)
	agg := newTestAggregator(&now)
	agg.Join(roomID, alice)
	agg.Join(roomID, bob)
	agg.MarkTyping(roomID, alice.ID)

	// When nothing expired yet
	req.Empty(agg.Sweep())

	// When the typing deadline passes
	now = now.Add(4 * time.Second)
	changed := agg.Sweep()

	// Then only the affected room is reported, once
	req.Equal([]domain.RoomID{roomID}, changed)
	req.Empty(agg.Sweep())
}

func TestAggregator_Snapshot_Sorted_By_DisplayName(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	agg := newTestAggregator(&now)

	agg.Join(roomID, bob)
	agg.Join(roomID, alice)

	snap := agg.Snapshot(roomID)
	req.Equal([]domain.Participant{alice, bob}, snap.Present)
}
