package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripmate/internal/activity"
	"github.com/mmynk/tripmate/internal/models"
	"github.com/mmynk/tripmate/internal/storage"
)

// Config configures a Session. Zero values get defaults.
type Config struct {
	// Profile names the client whose pointers the session persists.
	Profile string

	// ID identifies the session as a writer; other sessions use it to tell
	// foreign changes from their own.
	ID string

	Clock func() time.Time

	// IDs generates sub-room identifiers. They must be unique and time-ordered.
	IDs func() string

	Logger   *slog.Logger
	Activity *activity.Emitter
}

// Snapshot is an immutable capture of session state.
type Snapshot struct {
	RoomID string

	// SubRoomID is the effective scope; empty means the main room.
	SubRoomID string

	Doc *models.RoomData
}

// Session is one client's view of one room at a time: the active room, the
// active sub-room and the in-memory document. It is safe for concurrent use.
type Session struct {
	store  *Store
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	roomID    string
	subRoomID string
	doc       *models.RoomData

	observers    map[int]func(Snapshot)
	nextObserver int
	stopWatch    func()
}

// NewSession creates a logged-out session. Call Init to restore persisted state.
func NewSession(store *Store, cfg Config) *Session {
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDs == nil {
		cfg.IDs = newSubRoomID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		store:     store,
		cfg:       cfg,
		logger:    cfg.Logger.With("session", cfg.ID, "profile", cfg.Profile),
		observers: make(map[int]func(Snapshot)),
	}
}

func newSubRoomID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ID returns the session's writer id.
func (s *Session) ID() string { return s.cfg.ID }

// Profile returns the profile whose pointers this session persists.
func (s *Session) Profile() string { return s.cfg.Profile }

// Init restores the last active room and sub-room of the profile. A pointer to
// a missing or corrupt room is cleared and leaves the session logged out; a
// pointer to a missing sub-room is reset to the main room.
func (s *Session) Init(ctx context.Context) error {
	roomID, err := s.store.pointer(ctx, s.cfg.Profile, pointerRoom)
	if err != nil {
		return err
	}
	subRoomID, err := s.store.pointer(ctx, s.cfg.Profile, pointerSubRoom)
	if err != nil {
		return err
	}
	if roomID == "" {
		return nil
	}

	doc, err := s.store.Load(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		s.logger.Warn("Active room no longer available, logging out", "room_id", roomID)
		s.persistPointer(ctx, pointerRoom, "")
		s.persistPointer(ctx, pointerSubRoom, "")
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.roomID = roomID
	s.doc = doc
	s.subRoomID = effectiveScope(doc, subRoomID)
	if s.subRoomID != subRoomID {
		s.logger.Warn("Active sub-room no longer exists, returning to main room", "room_id", roomID, "sub_room_id", subRoomID)
		s.persistPointer(ctx, pointerSubRoom, "")
	}
	snap := s.snapshotLocked()
	observers := s.observerList()
	s.mu.Unlock()

	s.logger.Info("Session restored", "room_id", roomID, "sub_room_id", snap.SubRoomID)
	notify(observers, snap)
	return nil
}

// Teardown stops synchronization, drops observers and the in-memory document.
// Persisted pointers are kept so a later Init restores the same state.
func (s *Session) Teardown() {
	s.mu.Lock()
	stop := s.stopWatch
	s.stopWatch = nil
	s.doc = nil
	s.roomID = ""
	s.subRoomID = ""
	s.observers = make(map[int]func(Snapshot))
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Login joins an existing room. A set password must match exactly. On failure
// the session state is unchanged.
func (s *Session) Login(ctx context.Context, roomID, password string) error {
	id, err := normalizeRoomID(roomID)
	if err != nil {
		return err
	}

	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if doc.HasPassword() && doc.Password != password {
		return ErrBadPassword
	}

	s.activate(ctx, doc, activity.VerbRoomJoined)
	return nil
}

// CreateRoom stores a seeded room under a new id and activates it. Nothing is
// activated when the write fails.
func (s *Session) CreateRoom(ctx context.Context, roomID, password string) error {
	id, err := normalizeRoomID(roomID)
	if err != nil {
		return err
	}

	doc := models.Seed(id, password, s.cfg.Clock())
	if err := s.store.Create(storage.WithOrigin(ctx, s.cfg.ID), doc); err != nil {
		return err
	}

	s.activate(ctx, doc, activity.VerbRoomCreated)
	return nil
}

func (s *Session) activate(ctx context.Context, doc *models.RoomData, verb string) {
	s.mu.Lock()
	s.roomID = doc.ID
	s.subRoomID = ""
	s.doc = doc
	s.persistPointer(ctx, pointerRoom, doc.ID)
	s.persistPointer(ctx, pointerSubRoom, "")
	snap := s.snapshotLocked()
	observers := s.observerList()
	s.mu.Unlock()

	s.logger.Info("Room activated", "room_id", doc.ID, "verb", verb)
	s.emit(ctx, verb, snap, nil)
	notify(observers, snap)
}

// Logout clears both pointers and the in-memory document. Stored rooms are kept.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	prev := s.snapshotLocked()
	s.roomID = ""
	s.subRoomID = ""
	s.doc = nil
	s.persistPointer(ctx, pointerRoom, "")
	s.persistPointer(ctx, pointerSubRoom, "")
	snap := s.snapshotLocked()
	observers := s.observerList()
	s.mu.Unlock()

	if prev.RoomID != "" {
		s.emit(ctx, activity.VerbRoomLeft, prev, nil)
	}
	notify(observers, snap)
}

// SwitchSubRoom sets the active scope. An empty id returns to the main room.
func (s *Session) SwitchSubRoom(ctx context.Context, subRoomID string) error {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return ErrNoActiveRoom
	}
	if subRoomID != "" {
		if _, ok := s.doc.SubRooms[subRoomID]; !ok {
			s.mu.Unlock()
			return ErrSubRoomNotFound
		}
	}
	s.subRoomID = subRoomID
	s.persistPointer(ctx, pointerSubRoom, subRoomID)
	snap := s.snapshotLocked()
	observers := s.observerList()
	s.mu.Unlock()

	s.emit(ctx, activity.VerbSubRoomSwitched, snap, nil)
	notify(observers, snap)
	return nil
}

// Snapshot returns the current state. The document must not be modified.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// View returns the projection of the current state.
func (s *Session) View() View {
	snap := s.Snapshot()
	return Project(snap.Doc, snap.SubRoomID)
}

// OnChange registers fn to run after every commit, reload, scope switch, login
// and logout. fn runs outside the session lock. The returned func unregisters it.
func (s *Session) OnChange(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// change is the outcome of one mutation.
type change struct {
	doc       *models.RoomData
	subRoomID string
	verb      string
	meta      map[string]any
}

// commit applies fn to the current document under the session lock, replaces
// the in-memory state and persists it. If persistence fails the new state is
// kept and a *PersistError is returned.
func (s *Session) commit(ctx context.Context, fn func(doc *models.RoomData, scope string) (change, error)) error {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return ErrNoActiveRoom
	}

	ch, err := fn(s.doc, effectiveScope(s.doc, s.subRoomID))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.doc = ch.doc
	scopeChanged := ch.subRoomID != s.subRoomID
	s.subRoomID = ch.subRoomID

	// Persistence completes even if the caller goes away.
	wctx := storage.WithOrigin(context.WithoutCancel(ctx), s.cfg.ID)
	saveErr := s.store.Save(wctx, s.doc)
	if scopeChanged {
		s.persistPointer(wctx, pointerSubRoom, s.subRoomID)
	}
	snap := s.snapshotLocked()
	observers := s.observerList()
	s.mu.Unlock()

	s.emit(ctx, ch.verb, snap, ch.meta)
	if saveErr != nil {
		s.logger.Warn("Change kept in memory but not persisted", "room_id", snap.RoomID, "verb", ch.verb, "error", saveErr)
		s.emit(ctx, activity.VerbPersistenceFailed, snap, map[string]any{"verb": ch.verb, "storage_full": errors.Is(saveErr, ErrStorageFull)})
	}
	notify(observers, snap)
	if saveErr != nil {
		return &PersistError{RoomID: snap.RoomID, Err: saveErr}
	}
	return nil
}

// reload replaces the in-memory document with the stored one. A missing or
// corrupt stored document is logged and leaves the current state untouched.
func (s *Session) reload(ctx context.Context) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return
	}
	roomID := s.roomID

	doc, err := s.store.Load(ctx, roomID)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("Reload failed, keeping last good state", "room_id", roomID, "error", err)
		return
	}

	s.doc = doc
	if scope := effectiveScope(doc, s.subRoomID); scope != s.subRoomID {
		s.logger.Info("Active sub-room was deleted elsewhere, returning to main room", "room_id", roomID, "sub_room_id", s.subRoomID)
		s.subRoomID = scope
		s.persistPointer(ctx, pointerSubRoom, scope)
	}
	snap := s.snapshotLocked()
	observers := s.observerList()
	s.mu.Unlock()

	s.emit(ctx, activity.VerbRoomReloaded, snap, nil)
	notify(observers, snap)
}

// activeRoomID returns the room currently loaded, or "".
func (s *Session) activeRoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ""
	}
	return s.roomID
}

func (s *Session) setStopWatch(stop func()) {
	s.mu.Lock()
	prev := s.stopWatch
	s.stopWatch = stop
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		RoomID:    s.roomID,
		SubRoomID: effectiveScope(s.doc, s.subRoomID),
		Doc:       s.doc,
	}
}

func (s *Session) observerList() []func(Snapshot) {
	list := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		list = append(list, fn)
	}
	return list
}

// persistPointer writes a pointer on behalf of this session. Pointer writes
// are small and failures only cost the restore on next Init, so they are logged.
func (s *Session) persistPointer(ctx context.Context, name, value string) {
	wctx := storage.WithOrigin(ctx, s.cfg.ID)
	if err := s.store.setPointer(wctx, s.cfg.Profile, name, value); err != nil {
		s.logger.Warn("Failed to persist session pointer", "pointer", name, "error", err)
	}
}

// emit delivers an activity event. Hook failures never fail the transition.
func (s *Session) emit(ctx context.Context, verb string, snap Snapshot, meta map[string]any) {
	event := activity.RoomEvent(verb, s.cfg.ID, snap.RoomID, snap.SubRoomID, meta)
	if err := s.cfg.Activity.Emit(ctx, event); err != nil {
		s.logger.Warn("Activity hook failed", "verb", verb, "room_id", snap.RoomID, "error", err)
	}
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
