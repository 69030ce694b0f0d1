// Package room implements the room document store, per-client sessions with
// scoped views, the mutation dispatcher and cross-session synchronization.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/tripmate/internal/models"
	"github.com/mmynk/tripmate/internal/storage"
)

// Store persists room documents and session pointers on a storage.Backend.
type Store struct {
	backend storage.Backend
	codec   Codec
	logger  *slog.Logger

	// createMu serializes Create on this Store.
	createMu sync.Mutex
}

// NewStore creates a Store. A nil codec means JSON; a nil logger means slog.Default().
func NewStore(backend storage.Backend, codec Codec, logger *slog.Logger) *Store {
	if codec == nil {
		codec = JSONCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, codec: codec, logger: logger}
}

// Backend returns the underlying storage backend.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// Save serializes doc and writes it under its room key, replacing any prior value.
// When the backend is out of space the returned error matches both ErrStorageFull
// and storage.ErrQuotaExceeded.
func (s *Store) Save(ctx context.Context, doc *models.RoomData) error {
	data, err := s.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("failed to encode room %s: %w", doc.ID, err)
	}

	if err := s.backend.Set(ctx, RoomKey(doc.ID), data); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			return fmt.Errorf("failed to save room %s: %w: %w", doc.ID, ErrStorageFull, err)
		}
		return fmt.Errorf("failed to save room %s: %w", doc.ID, err)
	}
	return nil
}

// Create saves doc only if no room is stored under its id, and returns
// ErrRoomExists otherwise. Creates through the same Store are atomic. Two
// processes sharing a backend can still both create the same id; the last
// write wins, as it does for concurrent edits.
func (s *Store) Create(ctx context.Context, doc *models.RoomData) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	exists, err := s.Exists(ctx, doc.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrRoomExists
	}
	return s.Save(ctx, doc)
}

// LoadRaw returns the stored payload of a room without decoding it.
func (s *Store) LoadRaw(ctx context.Context, roomID string) ([]byte, error) {
	data, err := s.backend.Get(ctx, RoomKey(roomID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read room %s: %w", roomID, err)
	}
	return data, nil
}

// Load reads and decodes a room. Missing and corrupt documents both yield
// ErrRoomNotFound; corruption is logged.
func (s *Store) Load(ctx context.Context, roomID string) (*models.RoomData, error) {
	data, err := s.LoadRaw(ctx, roomID)
	if err != nil {
		return nil, err
	}

	doc, err := Decode(data, roomID)
	if err != nil {
		s.logger.Error("Corrupt room document", "room_id", roomID, "bytes", len(data), "error", err)
		return nil, ErrRoomNotFound
	}
	return doc, nil
}

// Exists reports whether anything is stored under the room key, corrupt or not.
func (s *Store) Exists(ctx context.Context, roomID string) (bool, error) {
	_, err := s.LoadRaw(ctx, roomID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRoomNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Rooms lists the ids of every stored room.
func (s *Store) Rooms(ctx context.Context) ([]string, error) {
	keys, err := s.backend.Keys(ctx, roomKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := RoomIDFromKey(k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// pointer reads a session pointer; absent pointers read as "".
func (s *Store) pointer(ctx context.Context, profile, name string) (string, error) {
	data, err := s.backend.Get(ctx, pointerKey(profile, name))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s pointer: %w", name, err)
	}
	return string(data), nil
}

// setPointer writes a session pointer; an empty value removes it.
func (s *Store) setPointer(ctx context.Context, profile, name, value string) error {
	key := pointerKey(profile, name)
	if value == "" {
		return s.backend.Delete(ctx, key)
	}
	return s.backend.Set(ctx, key, []byte(value))
}
