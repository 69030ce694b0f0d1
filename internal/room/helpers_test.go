package room

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripmate/internal/activity"
	"github.com/mmynk/tripmate/internal/storage"
	"github.com/mmynk/tripmate/internal/storage/memory"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	backend storage.Backend
	broker  *storage.Broker
	store   *Store
	capture *activity.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	broker := storage.NewBroker()
	backend := storage.Watched(memory.New(), broker)
	return &testEnv{
		backend: backend,
		broker:  broker,
		store:   NewStore(backend, nil, nil),
		capture: &activity.Recorder{},
	}
}

func (e *testEnv) session(t *testing.T, profile string) *Session {
	t.Helper()
	var n atomic.Int64
	s := NewSession(e.store, Config{
		Profile:  profile,
		ID:       "session-" + profile,
		Clock:    func() time.Time { return testNow },
		IDs:      func() string { return fmt.Sprintf("sub-%s-%03d", profile, n.Add(1)) },
		Activity: activity.NewEmitter(e.capture),
	})
	t.Cleanup(s.Teardown)
	return s
}

// loggedIn returns a session with a freshly created room "trip1".
func (e *testEnv) loggedIn(t *testing.T, profile string) (*Session, *Dispatcher) {
	t.Helper()
	s := e.session(t, profile)
	require.NoError(t, s.CreateRoom(context.Background(), "trip1", ""))
	return s, NewDispatcher(s)
}
