package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripmate/internal/activity"
	"github.com/mmynk/tripmate/internal/room"
	"github.com/mmynk/tripmate/internal/storage"
)

var ErrInvalidProfile = errors.New("invalid profile name")

// Registry owns the live sessions of the server, one per open client tab.
// Sessions are created by Open and recreated on demand by Resolve, so a
// client keeps its session handle across server restarts and evictions.
type Registry struct {
	ctx      context.Context
	store    *room.Store
	notifier storage.Notifier
	activity *activity.Emitter
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	d        *room.Dispatcher
	lastUsed time.Time

	// pins counts open sync subscribers; a pinned session is never idle.
	pins int
}

// NewRegistry creates a Registry. Sessions watch notifier for changes made by
// other sessions until ctx is canceled or they are closed. A nil notifier
// disables cross-session sync.
func NewRegistry(ctx context.Context, store *room.Store, notifier storage.Notifier, emitter *activity.Emitter, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ctx:      ctx,
		store:    store,
		notifier: notifier,
		activity: emitter,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*liveSession),
	}
}

// Store returns the room store shared by all sessions.
func (r *Registry) Store() *room.Store {
	return r.store
}

// Open starts a new session for profile and restores the profile's last
// active room.
func (r *Registry) Open(ctx context.Context, profile string) (*room.Dispatcher, error) {
	profile, err := normalizeProfile(profile)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(ctx, uuid.NewString(), profile)
}

// Resolve returns the live session with the given id, restoring it from the
// profile's pointers if the server no longer holds it. It marks the session
// as used.
func (r *Registry) Resolve(ctx context.Context, sessionID, profile string) (*room.Dispatcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ls, ok := r.sessions[sessionID]; ok {
		if ls.d.Session().Profile() != profile {
			return nil, fmt.Errorf("session %s belongs to another profile", sessionID)
		}
		ls.lastUsed = r.now()
		return ls.d, nil
	}

	profile, err := normalizeProfile(profile)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Restoring session", "session_id", sessionID, "profile", profile)
	return r.startLocked(ctx, sessionID, profile)
}

func (r *Registry) startLocked(ctx context.Context, sessionID, profile string) (*room.Dispatcher, error) {
	s := room.NewSession(r.store, room.Config{
		Profile:  profile,
		ID:       sessionID,
		Logger:   r.logger,
		Activity: r.activity,
	})
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if r.notifier != nil {
		if err := room.Watch(r.ctx, r.notifier, s); err != nil {
			s.Teardown()
			return nil, err
		}
	}

	d := room.NewDispatcher(s)
	r.sessions[sessionID] = &liveSession{d: d, lastUsed: r.now()}
	return d, nil
}

// Pin keeps a live session from being evicted until the returned release
// function is called. It reports false if the session is not live.
func (r *Registry) Pin(sessionID string) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ls, ok := r.sessions[sessionID]
	if !ok {
		return func() {}, false
	}
	ls.pins++

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			ls.pins--
			ls.lastUsed = r.now()
		})
	}, true
}

// Close tears a session down. Its persisted pointers are kept.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	ls, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		ls.d.Session().Teardown()
	}
}

// CloseAll tears down every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*liveSession)
	r.mu.Unlock()

	for _, ls := range sessions {
		ls.d.Session().Teardown()
	}
}

// EvictIdle tears down unpinned sessions not used for longer than idle and
// returns how many were evicted. An evicted session is restored by the next
// Resolve with its token.
func (r *Registry) EvictIdle(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var evicted []*liveSession
	for id, ls := range r.sessions {
		if ls.pins == 0 && ls.lastUsed.Before(cutoff) {
			evicted = append(evicted, ls)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, ls := range evicted {
		ls.d.Session().Teardown()
	}
	if len(evicted) > 0 {
		r.logger.Info("Evicted idle sessions", "count", len(evicted), "idle", idle)
	}
	return len(evicted)
}

// RunJanitor evicts sessions idle for longer than idle, checking every
// quarter of idle, until the registry context is canceled.
func (r *Registry) RunJanitor(idle time.Duration) {
	interval := max(idle/4, time.Second)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.EvictIdle(idle)
			}
		}
	}()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// normalizeProfile maps "" to the default profile and rejects names that
// cannot be embedded in a storage key.
func normalizeProfile(profile string) (string, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return room.DefaultProfile, nil
	}
	if len(profile) > 64 || strings.ContainsAny(profile, ":*?[]\\") {
		return "", ErrInvalidProfile
	}
	for _, r := range profile {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidProfile
		}
	}
	return profile, nil
}
