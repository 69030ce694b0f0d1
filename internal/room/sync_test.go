package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripmate/internal/activity"
	"github.com/mmynk/tripmate/internal/models"
)

const syncWait = 2 * time.Second

func watchedPair(t *testing.T, env *testEnv) (a *Session, da *Dispatcher, b *Session, db *Dispatcher) {
	t.Helper()
	ctx := context.Background()

	a, da = env.loggedIn(t, "a")
	b = env.session(t, "b")
	require.NoError(t, b.Login(ctx, "trip1", ""))
	db = NewDispatcher(b)

	require.NoError(t, Watch(ctx, env.broker, a))
	require.NoError(t, Watch(ctx, env.broker, b))
	return a, da, b, db
}

func TestWatch_ReloadsForeignWrites(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, da, b, _ := watchedPair(t, env)

	require.NoError(t, da.UpdateNotes(ctx, Append(models.NoteItem{ID: "from-a"})))

	require.Eventually(t, func() bool {
		return len(b.Snapshot().Doc.MainNotes) == 1
	}, syncWait, 5*time.Millisecond)
	assert.Equal(t, "from-a", b.Snapshot().Doc.MainNotes[0].ID)
}

func TestWatch_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, da, b, db := watchedPair(t, env)

	require.NoError(t, da.UpdateMembers(ctx, []string{"me", "Alice"}, "", ""))
	require.Eventually(t, func() bool {
		return len(b.Snapshot().Doc.Members) == 2
	}, syncWait, 5*time.Millisecond)

	require.NoError(t, db.UpdateMembers(ctx, []string{"me", "Bob"}, "", ""))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"me", "Bob"}, a.Snapshot().Doc.Members)
	}, syncWait, 5*time.Millisecond)
}

func TestWatch_IgnoresOwnAndUnrelatedWrites(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, da, _, _ := watchedPair(t, env)

	require.NoError(t, da.UpdateNotes(ctx, Append(models.NoteItem{ID: "n1"})))
	other := env.session(t, "c")
	require.NoError(t, other.CreateRoom(ctx, "trip2", ""))

	// Give stray deliveries time to arrive.
	time.Sleep(50 * time.Millisecond)
	for _, e := range env.capture.Events() {
		if e.Verb == activity.VerbRoomReloaded {
			assert.NotEqual(t, a.ID(), e.ActorID, "session reloaded on its own write or another room")
		}
	}
}

func TestWatch_DeletedActiveSubRoomResetsScope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, da, b, _ := watchedPair(t, env)

	subID, err := da.CreateSubRoom(ctx, "Kids")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := b.Snapshot().Doc.SubRooms[subID]
		return ok
	}, syncWait, 5*time.Millisecond)

	require.NoError(t, b.SwitchSubRoom(ctx, subID))
	require.NoError(t, a.SwitchSubRoom(ctx, ""))
	require.NoError(t, NewDispatcher(a).DeleteSubRoom(ctx, subID))

	require.Eventually(t, func() bool {
		return b.Snapshot().SubRoomID == ""
	}, syncWait, 5*time.Millisecond)
	assert.NotContains(t, b.View().SubRoomNames, subID)
}

func TestWatch_CorruptWriteKeepsLastGoodState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, _, b, _ := watchedPair(t, env)
	before := b.Snapshot().Doc

	require.NoError(t, env.backend.Set(ctx, RoomKey("trip1"), []byte("{not json")))

	assert.Never(t, func() bool {
		for _, e := range env.capture.Events() {
			if e.Verb == activity.VerbRoomReloaded && e.ActorID == b.ID() {
				return true
			}
		}
		return false
	}, 100*time.Millisecond, 5*time.Millisecond, "a failed reload must not emit")
	assert.Same(t, before, b.Snapshot().Doc)
}

func TestWatch_TeardownStops(t *testing.T) {
	env := newTestEnv(t)
	a, _, _, _ := watchedPair(t, env)

	assert.Equal(t, 2, env.broker.Subscribers())
	a.Teardown()
	assert.Equal(t, 1, env.broker.Subscribers())
}
