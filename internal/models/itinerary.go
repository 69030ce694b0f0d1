package models

// Category classifies itinerary stops and expenses.
// Expenses may carry free-form categories, so any string is accepted.
type Category string

const (
	CategorySightseeing Category = "sightseeing"
	CategoryFood        Category = "food"
	CategoryShopping    Category = "shopping"
	CategoryHotel       Category = "hotel"
	CategoryTransport   Category = "transport"
	CategoryPrep        Category = "prep"
	CategoryOther       Category = "other"
)

// Categories lists the built-in categories in display order.
var Categories = []Category{
	CategorySightseeing,
	CategoryFood,
	CategoryShopping,
	CategoryHotel,
	CategoryTransport,
	CategoryPrep,
	CategoryOther,
}

// Valid reports whether c is one of the built-in categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ItineraryItem is one scheduled stop.
type ItineraryItem struct {
	ID string `json:"id"`

	// Time is a time-of-day string such as "09:30".
	Time string `json:"time"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// LocationName is free text; it is also the forecast lookup key.
	LocationName string `json:"locationName"`

	Category Category `json:"category"`

	// Date is the calendar day in YYYY-MM-DD form.
	Date string `json:"date"`

	// TicketImage is an optional base64 payload (tickets, QR codes).
	TicketImage string `json:"ticketImage,omitempty"`

	// TimeZone is an optional IANA zone tag such as "Asia/Tokyo".
	TimeZone string `json:"timeZone,omitempty"`

	// OwnerID and OwnerName are set only on projected read-only copies and
	// identify the room that owns the item. They are never persisted.
	OwnerID   string `json:"ownerId,omitempty"`
	OwnerName string `json:"ownerName,omitempty"`
}

// Owned returns a copy of the item annotated with its owning room.
func (i ItineraryItem) Owned(ownerID, ownerName string) ItineraryItem {
	i.OwnerID = ownerID
	i.OwnerName = ownerName
	return i
}

// Unowned returns a copy of the item with the ownership annotation removed.
func (i ItineraryItem) Unowned() ItineraryItem {
	i.OwnerID = ""
	i.OwnerName = ""
	return i
}
