package models

// Currency is an ISO currency code supported by the ledger.
type Currency string

const (
	CurrencyJPY Currency = "JPY"
	CurrencyTWD Currency = "TWD"
	CurrencyUSD Currency = "USD"
)

// Expense is one ledger entry. Expenses belong to the room root regardless of
// which sub-room is active.
type Expense struct {
	ID          string   `json:"id"`
	Amount      float64  `json:"amount"`
	Currency    Currency `json:"currency"`
	Description string   `json:"description"`

	// Payer is a member display name. It need not exist in RoomData.Members.
	Payer string `json:"payer"`

	// SplitWith lists the member names sharing the cost.
	// An empty list means the payer alone.
	SplitWith []string `json:"splitWith"`

	// Date is the calendar day in YYYY-MM-DD form.
	Date string `json:"date"`

	// Category is usually a built-in Category but may be free-form.
	Category Category `json:"category"`

	// Image is an optional base64 receipt payload.
	Image string `json:"image,omitempty"`
}

// Participants returns the names the expense is split across.
func (e Expense) Participants() []string {
	if len(e.SplitWith) == 0 {
		return []string{e.Payer}
	}
	return e.SplitWith
}
