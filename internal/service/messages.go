package service

import (
	"github.com/mmynk/tripmate/internal/calculator"
	"github.com/mmynk/tripmate/internal/models"
	"github.com/mmynk/tripmate/internal/room"
)

// ViewResponse is returned by every procedure that changes session state.
// Warning is set when the change was applied but could not be saved.
type ViewResponse struct {
	View    room.View `json:"view"`
	Warning string    `json:"warning,omitempty"`
}

type OpenSessionRequest struct {
	Profile string `json:"profile"`
}

type OpenSessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	View      room.View `json:"view"`
}

type CloseSessionRequest struct{}

type CloseSessionResponse struct{}

type LoginRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

type CreateRoomRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

type LogoutRequest struct{}

type SwitchSubRoomRequest struct {
	// SubRoomID selects the scope; empty returns to the main room.
	SubRoomID string `json:"subRoomId"`
}

type CreateSubRoomRequest struct {
	Name string `json:"name"`
}

type CreateSubRoomResponse struct {
	SubRoomID string    `json:"subRoomId"`
	View      room.View `json:"view"`
	Warning   string    `json:"warning,omitempty"`
}

type DeleteSubRoomRequest struct {
	SubRoomID string `json:"subRoomId"`
}

type RenameSubRoomRequest struct {
	SubRoomID string `json:"subRoomId"`
	Name      string `json:"name"`
}

type SetItineraryRequest struct {
	Items []models.ItineraryItem `json:"items"`
}

type SetNotesRequest struct {
	Items []models.NoteItem `json:"items"`
}

type SetExpensesRequest struct {
	Expenses []models.Expense `json:"expenses"`
}

type AddExpenseRequest struct {
	Expense models.Expense `json:"expense"`
}

type AddExpenseResponse struct {
	Expense models.Expense `json:"expense"`
	View    room.View      `json:"view"`
	Warning string         `json:"warning,omitempty"`
}

type UpdateMembersRequest struct {
	Members []string `json:"members"`

	// OldName and NewName rename a member across all expenses.
	OldName string `json:"oldName,omitempty"`
	NewName string `json:"newName,omitempty"`
}

type GetViewRequest struct{}

type GetSettlementRequest struct{}

type GetSettlementResponse struct {
	Balances  []calculator.MemberBalance  `json:"balances"`
	Debts     []calculator.DebtEdge       `json:"debts"`
	Totals    map[models.Currency]float64 `json:"totals"`
	Breakdown []calculator.CategoryTotal  `json:"breakdown"`
	People    []string                    `json:"people"`
	Skipped   []string                    `json:"skipped,omitempty"`
}

type GetUsageRequest struct{}

type GetUsageResponse struct {
	Used       int64   `json:"used"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percentage"`
}

type SuggestCategoryRequest struct {
	Description string          `json:"description"`
	Category    models.Category `json:"category,omitempty"`
}

type SuggestCategoryResponse struct {
	Category models.Category `json:"category"`
}

type GetForecastRequest struct {
	Location string `json:"location"`

	// Date is YYYY-MM-DD; empty means today.
	Date string `json:"date,omitempty"`
}

type GetForecastResponse struct {
	// Weather is nil when no forecast is available.
	Weather *models.WeatherInfo `json:"weather"`
}
