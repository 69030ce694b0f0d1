package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tripmate/internal/room"
)

// toConnectError maps domain errors to connect codes.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrSubRoomNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, room.ErrBadPassword):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, room.ErrRoomExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, room.ErrStorageFull):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, room.ErrInvalidRoomID), errors.Is(err, room.ErrInvalidName), errors.Is(err, ErrInvalidProfile):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, room.ErrNoActiveRoom):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// splitWarning separates a change that was applied but not saved from a
// failed call. It returns the warning text for the former and the error for
// the latter.
func splitWarning(logger *slog.Logger, procedure string, err error) (string, error) {
	if err == nil {
		return "", nil
	}
	var persistErr *room.PersistError
	if !errors.As(err, &persistErr) {
		return "", err
	}
	logger.Warn("Change applied but not saved", "procedure", procedure, "room_id", persistErr.RoomID, "error", persistErr.Err)
	if errors.Is(err, room.ErrStorageFull) {
		return "Storage is full. The change is visible in this session but was not saved.", nil
	}
	return "The change is visible in this session but could not be saved.", nil
}
