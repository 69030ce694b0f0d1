package room

import (
	"sort"

	"github.com/mmynk/tripmate/internal/models"
)

// MainRoomOwnerName annotates main-room items seen from inside a sub-room.
const MainRoomOwnerName = "main room"

// SubRoomRef names one sub-room.
type SubRoomRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// View is the scoped projection of a room for one active scope.
type View struct {
	RoomID string `json:"roomId"`

	// SubRoomID is the effective scope; empty means the main room.
	SubRoomID string `json:"subRoomId,omitempty"`

	CurrentItinerary []models.ItineraryItem `json:"currentItinerary"`
	CurrentNotes     []models.NoteItem      `json:"currentNotes"`
	CurrentExpenses  []models.Expense       `json:"currentExpenses"`
	CurrentMembers   []string               `json:"currentMembers"`

	// SharedItineraryItems are read-only items owned by other scopes.
	SharedItineraryItems []models.ItineraryItem `json:"sharedItineraryItems"`

	SubRoomNames map[string]string `json:"subRoomNames"`

	// SubRooms lists sub-rooms in creation order.
	SubRooms []SubRoomRef `json:"subRooms"`
}

// Project derives the view of doc for the given active sub-room. An id that
// does not name an existing sub-room projects the main room. A nil doc yields
// an empty view.
func Project(doc *models.RoomData, subRoomID string) View {
	if doc == nil {
		return View{
			CurrentItinerary:     []models.ItineraryItem{},
			CurrentNotes:         []models.NoteItem{},
			CurrentExpenses:      []models.Expense{},
			CurrentMembers:       []string{},
			SharedItineraryItems: []models.ItineraryItem{},
			SubRoomNames:         map[string]string{},
			SubRooms:             []SubRoomRef{},
		}
	}

	ids := orderedSubRoomIDs(doc)
	v := View{
		RoomID:          doc.ID,
		CurrentExpenses: orEmpty(doc.Expenses),
		CurrentMembers:  orEmpty(doc.Members),
		SubRoomNames:    make(map[string]string, len(ids)),
		SubRooms:        make([]SubRoomRef, 0, len(ids)),
	}
	for _, id := range ids {
		name := doc.SubRooms[id].Name
		v.SubRoomNames[id] = name
		v.SubRooms = append(v.SubRooms, SubRoomRef{ID: id, Name: name})
	}

	if sub, ok := doc.SubRooms[subRoomID]; ok && subRoomID != "" {
		v.SubRoomID = subRoomID
		v.CurrentItinerary = orEmpty(sub.Itinerary)
		v.CurrentNotes = orEmpty(sub.Notes)
		v.SharedItineraryItems = make([]models.ItineraryItem, 0, len(doc.MainItinerary))
		for _, item := range doc.MainItinerary {
			v.SharedItineraryItems = append(v.SharedItineraryItems, item.Owned("", MainRoomOwnerName))
		}
		return v
	}

	v.CurrentItinerary = orEmpty(doc.MainItinerary)
	v.CurrentNotes = orEmpty(doc.MainNotes)
	v.SharedItineraryItems = []models.ItineraryItem{}
	for _, id := range ids {
		sub := doc.SubRooms[id]
		for _, item := range sub.Itinerary {
			v.SharedItineraryItems = append(v.SharedItineraryItems, item.Owned(id, sub.Name))
		}
	}
	return v
}

// effectiveScope returns subRoomID if it names an existing sub-room, else "".
func effectiveScope(doc *models.RoomData, subRoomID string) string {
	if doc == nil || subRoomID == "" {
		return ""
	}
	if _, ok := doc.SubRooms[subRoomID]; !ok {
		return ""
	}
	return subRoomID
}

// orderedSubRoomIDs returns sub-room ids in creation order. Ids are
// time-ordered: legacy millisecond ids sort numerically ahead of UUIDv7 ids,
// which sort lexically.
func orderedSubRoomIDs(doc *models.RoomData) []string {
	ids := make([]string, 0, len(doc.SubRooms))
	for id := range doc.SubRooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		da, db := isDigits(a), isDigits(b)
		if da != db {
			return da
		}
		if da && len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return ids
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
