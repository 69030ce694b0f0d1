package room

import (
	"context"
	"fmt"

	"github.com/mmynk/tripmate/internal/storage"
)

// Watch subscribes s to storage changes. When another writer changes the
// document of the session's active room, the session reloads it and replaces
// its in-memory state (last writer wins). The subscription ends on ctx
// cancellation or s.Teardown.
func Watch(ctx context.Context, notifier storage.Notifier, s *Session) error {
	cancel, err := notifier.Subscribe(ctx, func(c storage.Change) {
		if c.Origin != "" && c.Origin == s.ID() {
			return
		}
		roomID, ok := RoomIDFromKey(c.Key)
		if !ok || roomID != s.activeRoomID() {
			return
		}
		s.logger.Debug("Room changed elsewhere, reloading", "room_id", roomID, "origin", c.Origin)
		s.reload(context.WithoutCancel(ctx))
	})
	if err != nil {
		return fmt.Errorf("failed to watch storage: %w", err)
	}
	s.setStopWatch(cancel)
	return nil
}
