// Package activity names the room events delivered to go-options activity
// hooks (structured logs, metrics).
package activity

import (
	"context"
	"log/slog"
	"sync"

	goactivity "github.com/goliatone/go-options/pkg/activity"
)

// Verbs emitted by the room package.
const (
	VerbRoomCreated       = "room.created"
	VerbRoomJoined        = "room.joined"
	VerbRoomLeft          = "room.left"
	VerbRoomReloaded      = "room.reloaded"
	VerbItineraryUpdated  = "itinerary.updated"
	VerbNotesUpdated      = "notes.updated"
	VerbExpensesUpdated   = "expenses.updated"
	VerbMembersUpdated    = "members.updated"
	VerbSubRoomCreated    = "subroom.created"
	VerbSubRoomDeleted    = "subroom.deleted"
	VerbSubRoomRenamed    = "subroom.renamed"
	VerbSubRoomSwitched   = "subroom.switched"
	VerbPersistenceFailed = "room.persist_failed"
)

const (
	// ObjectTypeRoom is the object type of every room event.
	ObjectTypeRoom = "room"

	// Channel is stamped on events that do not name one.
	Channel = "tripmate"

	// MetaSubRoomID is the metadata key holding the scope of an event.
	MetaSubRoomID = "sub_room_id"
)

type (
	Event    = goactivity.Event
	Hook     = goactivity.ActivityHook
	HookFunc = goactivity.HookFunc
	Hooks    = goactivity.Hooks
	Emitter  = goactivity.Emitter
)

// NewEmitter returns an enabled Emitter over the non-nil hooks.
func NewEmitter(hooks ...Hook) *Emitter {
	return goactivity.NewEmitter(Hooks(hooks), goactivity.Config{Enabled: true, Channel: Channel})
}

// RoomEvent builds the event for verb performed by actorID on roomID. An
// empty subRoomID means the main room.
func RoomEvent(verb, actorID, roomID, subRoomID string, meta map[string]any) Event {
	md := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		md[k] = v
	}
	md[MetaSubRoomID] = subRoomID
	return Event{
		Verb:       verb,
		ActorID:    actorID,
		ObjectType: ObjectTypeRoom,
		ObjectID:   roomID,
		Metadata:   md,
	}
}

// SubRoomID returns the scope recorded on event.
func SubRoomID(event Event) string {
	id, _ := event.Metadata[MetaSubRoomID].(string)
	return id
}

// LogHook writes every event to logger at debug level.
func LogHook(logger *slog.Logger) Hook {
	return HookFunc(func(ctx context.Context, event Event) error {
		logger.DebugContext(ctx, "Room activity",
			"verb", event.Verb,
			"room_id", event.ObjectID,
			"sub_room_id", SubRoomID(event),
			"actor", event.ActorID,
		)
		return nil
	})
}

// Recorder keeps delivered events in memory. Unlike goactivity.CaptureHook it
// can be read while hooks are still firing.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Verbs returns the recorded verbs in order.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	verbs := make([]string, len(r.events))
	for i, e := range r.events {
		verbs[i] = e.Verb
	}
	return verbs
}
