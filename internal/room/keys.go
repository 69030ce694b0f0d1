package room

import "strings"

const (
	keyPrefix     = "tm:"
	roomKeyPrefix = keyPrefix + "room:"

	// DefaultProfile is used when a session is opened without a profile name.
	DefaultProfile = "default"

	pointerRoom    = "activeRoomId"
	pointerSubRoom = "activeSubRoomId"
)

// RoomKey returns the storage key of a room document.
func RoomKey(roomID string) string {
	return roomKeyPrefix + roomID
}

// RoomIDFromKey reverses RoomKey.
func RoomIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, roomKeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, roomKeyPrefix), true
}

func pointerKey(profile, name string) string {
	return keyPrefix + "session:" + profile + ":" + name
}

// normalizeRoomID trims the id and rejects empty or control-character ids.
func normalizeRoomID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidRoomID
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidRoomID
		}
	}
	return id, nil
}
