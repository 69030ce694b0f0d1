package models

// NoteCategory is the top-level note kind.
type NoteCategory string

const (
	NoteShopping NoteCategory = "shopping"
	NotePlace    NoteCategory = "place"
)

// Sub-categories offered for each note kind.
var (
	ShoppingSubCategories = []string{"cosmetics", "souvenirs", "food", "sundries", "other"}
	PlaceSubCategories    = []string{"sightseeing", "food", "shopping", "hotel", "other"}
)

// NoteItem is a checklist entry.
type NoteItem struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	IsChecked bool         `json:"isChecked"`
	Category  NoteCategory `json:"category"`

	// SubCategory is one of ShoppingSubCategories or PlaceSubCategories.
	SubCategory string `json:"subCategory"`

	// Image is an optional base64 payload.
	Image string `json:"image,omitempty"`
}
