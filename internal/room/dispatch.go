package room

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/mmynk/tripmate/internal/activity"
	"github.com/mmynk/tripmate/internal/models"
)

// Transform computes a new list from the current one. The input is a private
// copy, so a transform may reuse it.
type Transform[T any] func(current []T) []T

// Set replaces the list with items.
func Set[T any](items []T) Transform[T] {
	return func([]T) []T {
		return slices.Clone(items)
	}
}

// Append adds items to the end of the list.
func Append[T any](items ...T) Transform[T] {
	return func(current []T) []T {
		return append(current, items...)
	}
}

// RemoveWhere drops every element matching pred.
func RemoveWhere[T any](pred func(T) bool) Transform[T] {
	return func(current []T) []T {
		return slices.DeleteFunc(current, pred)
	}
}

// ReplaceWhere applies fn to every element matching pred.
func ReplaceWhere[T any](pred func(T) bool, fn func(T) T) Transform[T] {
	return func(current []T) []T {
		for i, v := range current {
			if pred(v) {
				current[i] = fn(v)
			}
		}
		return current
	}
}

// Dispatcher applies copy-on-write mutations to a session's document. Itinerary
// and notes updates target the active scope; expenses and members always
// target the room root. Every mutation is persisted before it returns; an
// error matching ErrStorageFull means the change is live in memory only.
type Dispatcher struct {
	session *Session
}

// NewDispatcher returns a Dispatcher for s.
func NewDispatcher(s *Session) *Dispatcher {
	return &Dispatcher{session: s}
}

// Session returns the session the dispatcher mutates.
func (d *Dispatcher) Session() *Session {
	return d.session
}

// UpdateItinerary transforms the active scope's itinerary.
func (d *Dispatcher) UpdateItinerary(ctx context.Context, fn Transform[models.ItineraryItem]) error {
	return d.session.commit(ctx, func(doc *models.RoomData, scope string) (change, error) {
		next := doc.Clone()
		if scope != "" {
			sub := doc.SubRooms[scope]
			sub.Itinerary = stripOwners(apply(fn, sub.Itinerary))
			next.SubRooms = withSubRoom(doc.SubRooms, sub)
		} else {
			next.MainItinerary = stripOwners(apply(fn, doc.MainItinerary))
		}
		return change{doc: next, subRoomID: scope, verb: activity.VerbItineraryUpdated}, nil
	})
}

// UpdateNotes transforms the active scope's notes.
func (d *Dispatcher) UpdateNotes(ctx context.Context, fn Transform[models.NoteItem]) error {
	return d.session.commit(ctx, func(doc *models.RoomData, scope string) (change, error) {
		next := doc.Clone()
		if scope != "" {
			sub := doc.SubRooms[scope]
			sub.Notes = apply(fn, sub.Notes)
			next.SubRooms = withSubRoom(doc.SubRooms, sub)
		} else {
			next.MainNotes = apply(fn, doc.MainNotes)
		}
		return change{doc: next, subRoomID: scope, verb: activity.VerbNotesUpdated}, nil
	})
}

// UpdateExpenses transforms the room-wide ledger.
func (d *Dispatcher) UpdateExpenses(ctx context.Context, fn Transform[models.Expense]) error {
	return d.session.commit(ctx, func(doc *models.RoomData, scope string) (change, error) {
		next := doc.Clone()
		next.Expenses = apply(fn, doc.Expenses)
		return change{doc: next, subRoomID: scope, verb: activity.VerbExpensesUpdated}, nil
	})
}

// UpdateMembers replaces the member list. When oldName and newName are both
// set and differ, every expense payer and split entry naming oldName is renamed
// in the same commit.
func (d *Dispatcher) UpdateMembers(ctx context.Context, members []string, oldName, newName string) error {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	return d.session.commit(ctx, func(doc *models.RoomData, scope string) (change, error) {
		next := doc.Clone()
		next.Members = normalizeMembers(members)
		meta := map[string]any{"members": len(next.Members)}
		if oldName != "" && newName != "" && oldName != newName {
			next.Expenses = renameInExpenses(doc.Expenses, oldName, newName)
			meta["renamed_from"] = oldName
			meta["renamed_to"] = newName
		}
		return change{doc: next, subRoomID: scope, verb: activity.VerbMembersUpdated, meta: meta}, nil
	})
}

// CreateSubRoom adds an empty sub-room and makes it the active scope. The new
// id is returned even when persistence failed.
func (d *Dispatcher) CreateSubRoom(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}

	var id string
	err := d.session.commit(ctx, func(doc *models.RoomData, scope string) (change, error) {
		id = d.session.cfg.IDs()
		for _, taken := doc.SubRooms[id]; taken; _, taken = doc.SubRooms[id] {
			id = d.session.cfg.IDs()
		}

		next := doc.Clone()
		next.SubRooms = withSubRoom(doc.SubRooms, models.SubRoom{
			ID:        id,
			Name:      name,
			Itinerary: []models.ItineraryItem{},
			Notes:     []models.NoteItem{},
		})
		return change{doc: next, subRoomID: id, verb: activity.VerbSubRoomCreated, meta: map[string]any{"name": name}}, nil
	})
	if id == "" {
		return "", err
	}
	return id, err
}

// DeleteSubRoom removes a sub-room. If it was the active scope, the main room
// becomes active.
func (d *Dispatcher) DeleteSubRoom(ctx context.Context, id string) error {
	return d.session.commit(ctx, func(doc *models.RoomData, scope string) (change, error) {
		sub, ok := doc.SubRooms[id]
		if !ok {
			return change{}, ErrSubRoomNotFound
		}

		next := doc.Clone()
		next.SubRooms = maps.Clone(doc.SubRooms)
		delete(next.SubRooms, id)
		if scope == id {
			scope = ""
		}
		return change{doc: next, subRoomID: scope, verb: activity.VerbSubRoomDeleted, meta: map[string]any{"sub_room": id, "name": sub.Name}}, nil
	})
}

// RenameSubRoom changes a sub-room's display name.
func (d *Dispatcher) RenameSubRoom(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	return d.session.commit(ctx, func(doc *models.RoomData, scope string) (change, error) {
		sub, ok := doc.SubRooms[id]
		if !ok {
			return change{}, ErrSubRoomNotFound
		}

		sub.Name = name
		next := doc.Clone()
		next.SubRooms = withSubRoom(doc.SubRooms, sub)
		return change{doc: next, subRoomID: scope, verb: activity.VerbSubRoomRenamed, meta: map[string]any{"sub_room": id, "name": name}}, nil
	})
}

// apply runs fn on a private copy of current and never returns nil.
func apply[T any](fn Transform[T], current []T) []T {
	out := fn(slices.Clone(current))
	if out == nil {
		return []T{}
	}
	return out
}

// withSubRoom returns a copy of subRooms with sub stored under its id.
// Sibling sub-rooms keep sharing their lists.
func withSubRoom(subRooms map[string]models.SubRoom, sub models.SubRoom) map[string]models.SubRoom {
	out := make(map[string]models.SubRoom, len(subRooms)+1)
	maps.Copy(out, subRooms)
	out[sub.ID] = sub
	return out
}

// stripOwners removes projection annotations, copying only when needed.
func stripOwners(items []models.ItineraryItem) []models.ItineraryItem {
	for i, item := range items {
		if item.OwnerID == "" && item.OwnerName == "" {
			continue
		}
		out := slices.Clone(items)
		for j := i; j < len(out); j++ {
			out[j] = out[j].Unowned()
		}
		return out
	}
	return items
}

// normalizeMembers trims names, drops blanks and duplicates (first wins) and
// falls back to the default member.
func normalizeMembers(members []string) []string {
	out := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return []string{models.DefaultMember}
	}
	return out
}

// renameInExpenses rewrites payer and split entries. Expenses that do not
// mention oldName are carried over unchanged.
func renameInExpenses(expenses []models.Expense, oldName, newName string) []models.Expense {
	out := expenses
	copied := false
	for i, e := range expenses {
		if e.Payer != oldName && !slices.Contains(e.SplitWith, oldName) {
			continue
		}
		if !copied {
			out = slices.Clone(expenses)
			copied = true
		}
		if e.Payer == oldName {
			e.Payer = newName
		}
		e.SplitWith = renameInList(e.SplitWith, oldName, newName)
		out[i] = e
	}
	return out
}

func renameInList(names []string, oldName, newName string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == oldName {
			n = newName
		}
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
