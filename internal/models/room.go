package models

// DefaultMember is the self identifier every new room starts with.
const DefaultMember = "me"

// RoomData is the root document of a room.
// It is created with seed content, loaded on join and replaced wholesale on every
// committed mutation.
type RoomData struct {
	// ID is the user-chosen room identifier. Immutable once created.
	ID string `json:"id"`

	// Password is compared verbatim on join attempts. Empty means no password.
	Password string `json:"password,omitempty"`

	// MainItinerary is the itinerary owned by the main room.
	MainItinerary []ItineraryItem `json:"mainItinerary"`

	// MainNotes are the notes owned by the main room.
	MainNotes []NoteItem `json:"mainNotes"`

	// Expenses is the room-wide ledger. It is never scoped by sub-room.
	Expenses []Expense `json:"expenses"`

	// Members is the ordered list of participant display names.
	// Uniqueness is enforced by the mutation layer, not by storage.
	Members []string `json:"members"`

	// SubRooms maps sub-room ID to sub-room. Keys are never reused after deletion.
	SubRooms map[string]SubRoom `json:"subRooms"`
}

// SubRoom is a splinter-group workspace inside a room.
// Its itinerary and notes are owned exclusively by the sub-room.
type SubRoom struct {
	// ID is generated at creation time (time-ordered, unique within the room).
	ID string `json:"id"`

	// Name is the display name. Mutable.
	Name string `json:"name"`

	Itinerary []ItineraryItem `json:"itinerary"`
	Notes     []NoteItem      `json:"notes"`
}

// NewRoom returns an empty room with the default member list.
func NewRoom(id, password string) *RoomData {
	return &RoomData{
		ID:            id,
		Password:      password,
		MainItinerary: []ItineraryItem{},
		MainNotes:     []NoteItem{},
		Expenses:      []Expense{},
		Members:       []string{DefaultMember},
		SubRooms:      map[string]SubRoom{},
	}
}

// Clone returns a shallow copy of the document. Lists and the sub-room map are
// shared with the receiver; callers replace them instead of mutating in place.
func (r *RoomData) Clone() *RoomData {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// HasPassword reports whether joining the room requires a password.
func (r *RoomData) HasPassword() bool {
	return r.Password != ""
}
