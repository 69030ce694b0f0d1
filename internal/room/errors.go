package room

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrBadPassword     = errors.New("incorrect password")
	ErrRoomExists      = errors.New("room already exists")
	ErrStorageFull     = errors.New("storage full")
	ErrInvalidRoomID   = errors.New("invalid room id")
	ErrInvalidName     = errors.New("name must not be empty")
	ErrSubRoomNotFound = errors.New("sub-room not found")
	ErrNoActiveRoom    = errors.New("no active room")
)

// DecodeError reports a stored room document that could not be parsed.
type DecodeError struct {
	RoomID string
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode room %q: field %s: %v", e.RoomID, e.Field, e.Err)
	}
	return fmt.Sprintf("decode room %q: %v", e.RoomID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PersistError reports a change that was applied to the session's in-memory
// state but could not be saved. Callers should surface it as a warning.
type PersistError struct {
	RoomID string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("room %q changed but not saved: %v", e.RoomID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
