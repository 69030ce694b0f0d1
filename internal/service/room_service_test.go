package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tripmate/internal/forecast"
	"github.com/mmynk/tripmate/internal/models"
	"github.com/mmynk/tripmate/internal/room"
	"github.com/mmynk/tripmate/internal/storage"
	"github.com/mmynk/tripmate/internal/storage/memory"
	"github.com/mmynk/tripmate/internal/token"
)

var testNow = time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)

type testServer struct {
	server   *httptest.Server
	registry *Registry
	backend  storage.Backend
	tokens   *token.Manager
}

// setupTestServer serves RoomService and the sync feed over an in-memory
// backend limited to quota bytes.
func setupTestServer(t *testing.T, quota int64) *testServer {
	t.Helper()

	broker := storage.NewBroker()
	backend := storage.Watched(storage.WithQuota(memory.New(), quota), broker)
	store := room.NewStore(backend, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry(ctx, store, broker, nil, nil)
	tokens := token.NewManager("test-secret", time.Hour)
	clock := func() time.Time { return testNow }

	svc := NewRoomService(registry, tokens, Options{
		QuotaBytes: quota,
		Clock:      clock,
		Forecaster: forecast.Mock{Now: clock},
	})

	mux := http.NewServeMux()
	path, handler := svc.Handler()
	mux.Handle(path, handler)
	mux.Handle("/sync", NewSyncHandler(registry, tokens, nil))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		registry.CloseAll()
		cancel()
	})

	return &testServer{server: server, registry: registry, backend: backend, tokens: tokens}
}

func (ts *testServer) client(t *testing.T, profile string) *RoomServiceClient {
	t.Helper()
	c := NewRoomServiceClient(http.DefaultClient, ts.server.URL)
	if _, err := c.OpenSession(context.Background(), profile); err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	return c
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Fatalf("expected code %v, got %v (%v)", code, got, err)
	}
}

func TestCreateRoom(t *testing.T) {
	ts := setupTestServer(t, 0)
	c := ts.client(t, "laptop")
	ctx := context.Background()

	resp, err := c.CreateRoom(ctx, "osaka-2024", "")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	v := resp.View
	if v.RoomID != "osaka-2024" {
		t.Errorf("RoomID = %q, want osaka-2024", v.RoomID)
	}
	if len(v.CurrentItinerary) != 5 {
		t.Errorf("expected 5 seed itinerary items, got %d", len(v.CurrentItinerary))
	}
	if len(v.CurrentExpenses) != 1 || v.CurrentExpenses[0].Amount != 8400 {
		t.Errorf("expected seed expense, got %+v", v.CurrentExpenses)
	}
	if len(v.CurrentMembers) != 1 || v.CurrentMembers[0] != models.DefaultMember {
		t.Errorf("members = %v, want [me]", v.CurrentMembers)
	}
	if resp.Warning != "" {
		t.Errorf("unexpected warning: %q", resp.Warning)
	}

	_, err = c.CreateRoom(ctx, "osaka-2024", "")
	wantCode(t, err, connect.CodeAlreadyExists)
}

func TestRequiresSession(t *testing.T) {
	ts := setupTestServer(t, 0)
	ctx := context.Background()

	c := NewRoomServiceClient(http.DefaultClient, ts.server.URL)
	_, err := c.GetView(ctx)
	wantCode(t, err, connect.CodeUnauthenticated)

	c.SetToken("forged")
	_, err = c.GetView(ctx)
	wantCode(t, err, connect.CodeUnauthenticated)
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t, 0)
	ctx := context.Background()

	owner := ts.client(t, "owner")
	if _, err := owner.CreateRoom(ctx, "locked", "hunter2"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	guest := ts.client(t, "guest")

	tests := []struct {
		name     string
		roomID   string
		password string
		code     connect.Code
	}{
		{name: "unknown room", roomID: "nope", code: connect.CodeNotFound},
		{name: "wrong password", roomID: "locked", password: "hunter3", code: connect.CodeUnauthenticated},
		{name: "blank id", roomID: "   ", code: connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guest.Login(ctx, tt.roomID, tt.password)
			wantCode(t, err, tt.code)
		})
	}

	resp, err := guest.Login(ctx, " locked ", "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.View.RoomID != "locked" {
		t.Errorf("RoomID = %q, want locked", resp.View.RoomID)
	}

	out, err := guest.Logout(ctx)
	if err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if out.View.RoomID != "" {
		t.Errorf("expected empty view after logout, got room %q", out.View.RoomID)
	}

	_, err = guest.SetNotes(ctx, &SetNotesRequest{Items: []models.NoteItem{{ID: "n1", Text: "x"}}})
	wantCode(t, err, connect.CodeFailedPrecondition)
}

func TestSubRooms(t *testing.T) {
	ts := setupTestServer(t, 0)
	c := ts.client(t, "laptop")
	ctx := context.Background()

	if _, err := c.CreateRoom(ctx, "trip", ""); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	created, err := c.CreateSubRoom(ctx, "  Kyoto day  ")
	if err != nil {
		t.Fatalf("CreateSubRoom failed: %v", err)
	}
	if created.View.SubRoomID != created.SubRoomID {
		t.Fatalf("new sub-room should be active, got scope %q", created.View.SubRoomID)
	}
	if len(created.View.CurrentItinerary) != 0 {
		t.Errorf("new sub-room should start empty")
	}
	if len(created.View.SharedItineraryItems) != 5 {
		t.Errorf("expected main room items in shared feed, got %d", len(created.View.SharedItineraryItems))
	}
	for _, item := range created.View.SharedItineraryItems {
		if item.OwnerName != room.MainRoomOwnerName {
			t.Errorf("shared item %s owner = %q", item.ID, item.OwnerName)
		}
	}

	_, err = c.SetItinerary(ctx, &SetItineraryRequest{Items: []models.ItineraryItem{
		{ID: "k1", Time: "10:00", Title: "Fushimi Inari", Category: models.CategorySightseeing, Date: "2024-03-11"},
	}})
	if err != nil {
		t.Fatalf("SetItinerary failed: %v", err)
	}

	if _, err := c.RenameSubRoom(ctx, created.SubRoomID, "Kyoto"); err != nil {
		t.Fatalf("RenameSubRoom failed: %v", err)
	}
	_, err = c.RenameSubRoom(ctx, created.SubRoomID, " ")
	wantCode(t, err, connect.CodeInvalidArgument)
	_, err = c.SwitchSubRoom(ctx, "missing")
	wantCode(t, err, connect.CodeNotFound)

	main, err := c.SwitchSubRoom(ctx, "")
	if err != nil {
		t.Fatalf("SwitchSubRoom failed: %v", err)
	}
	if len(main.View.CurrentItinerary) != 5 {
		t.Errorf("main itinerary should be untouched, got %d items", len(main.View.CurrentItinerary))
	}
	if len(main.View.SharedItineraryItems) != 1 {
		t.Fatalf("expected 1 shared item, got %d", len(main.View.SharedItineraryItems))
	}
	shared := main.View.SharedItineraryItems[0]
	if shared.OwnerID != created.SubRoomID || shared.OwnerName != "Kyoto" {
		t.Errorf("shared item owner = (%q, %q)", shared.OwnerID, shared.OwnerName)
	}
	if main.View.SubRoomNames[created.SubRoomID] != "Kyoto" {
		t.Errorf("SubRoomNames = %v", main.View.SubRoomNames)
	}

	if _, err := c.SwitchSubRoom(ctx, created.SubRoomID); err != nil {
		t.Fatalf("SwitchSubRoom failed: %v", err)
	}
	deleted, err := c.DeleteSubRoom(ctx, created.SubRoomID)
	if err != nil {
		t.Fatalf("DeleteSubRoom failed: %v", err)
	}
	if deleted.View.SubRoomID != "" || len(deleted.View.SubRooms) != 0 {
		t.Errorf("expected main room after deleting active sub-room, got %+v", deleted.View.SubRooms)
	}
}

func TestAddExpense(t *testing.T) {
	ts := setupTestServer(t, 0)
	c := ts.client(t, "laptop")
	ctx := context.Background()

	if _, err := c.CreateRoom(ctx, "trip", ""); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := c.UpdateMembers(ctx, &UpdateMembersRequest{Members: []string{"me", "Ken"}}); err != nil {
		t.Fatalf("UpdateMembers failed: %v", err)
	}

	resp, err := c.AddExpense(ctx, &AddExpenseRequest{Expense: models.Expense{
		Amount:      3000,
		Description: "Train to Kyoto",
		SplitWith:   []string{"me", "Ken"},
	}})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	e := resp.Expense
	if e.ID == "" || e.Payer != "me" || e.Currency != models.CurrencyJPY || e.Date != "2024-03-10" {
		t.Errorf("defaults not applied: %+v", e)
	}
	if e.Category != models.CategoryTransport {
		t.Errorf("Category = %q, want transport", e.Category)
	}
	if len(resp.View.CurrentExpenses) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(resp.View.CurrentExpenses))
	}

	solo, err := c.AddExpense(ctx, &AddExpenseRequest{Expense: models.Expense{
		Amount: 500, Description: "Coin locker", Payer: "Ken", Category: models.CategoryPrep,
	}})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if len(solo.Expense.SplitWith) != 1 || solo.Expense.SplitWith[0] != "Ken" {
		t.Errorf("empty split should default to the payer, got %v", solo.Expense.SplitWith)
	}

	edited := e
	edited.Amount = 4000
	updated, err := c.AddExpense(ctx, &AddExpenseRequest{Expense: edited})
	if err != nil {
		t.Fatalf("AddExpense (edit) failed: %v", err)
	}
	if len(updated.View.CurrentExpenses) != 3 {
		t.Errorf("editing must not add an expense, got %d", len(updated.View.CurrentExpenses))
	}

	settlement, err := c.GetSettlement(ctx)
	if err != nil {
		t.Fatalf("GetSettlement failed: %v", err)
	}
	if settlement.Totals[models.CurrencyJPY] != 8400+4000+500 {
		t.Errorf("JPY total = %v", settlement.Totals[models.CurrencyJPY])
	}
	if len(settlement.Debts) != 1 {
		t.Fatalf("expected one debt, got %+v", settlement.Debts)
	}
	if d := settlement.Debts[0]; d.From != "Ken" || d.To != "me" || d.Amount != 2000 {
		t.Errorf("unexpected debt: %+v", d)
	}

	tests := []struct {
		name    string
		expense models.Expense
	}{
		{name: "no amount", expense: models.Expense{Description: "x"}},
		{name: "no description", expense: models.Expense{Amount: 10}},
		{name: "bad currency", expense: models.Expense{Amount: 10, Description: "x", Currency: "EUR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.AddExpense(ctx, &AddExpenseRequest{Expense: tt.expense})
			wantCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestGetSettlement_RefundLine(t *testing.T) {
	ts := setupTestServer(t, 0)
	c := ts.client(t, "laptop")
	ctx := context.Background()

	if _, err := c.CreateRoom(ctx, "trip", ""); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := c.UpdateMembers(ctx, &UpdateMembersRequest{Members: []string{"me", "Bob"}}); err != nil {
		t.Fatalf("UpdateMembers failed: %v", err)
	}
	_, err := c.SetExpenses(ctx, &SetExpensesRequest{Expenses: []models.Expense{
		{ID: "dinner", Amount: 1000, Currency: models.CurrencyJPY, Payer: "me", SplitWith: []string{"me", "Bob"}},
		{ID: "refund", Amount: -200, Currency: models.CurrencyJPY, Payer: "Bob", SplitWith: []string{"me", "Bob"}},
	}})
	if err != nil {
		t.Fatalf("SetExpenses failed: %v", err)
	}

	settlement, err := c.GetSettlement(ctx)
	if err != nil {
		t.Fatalf("GetSettlement failed: %v", err)
	}
	if len(settlement.Skipped) != 0 {
		t.Errorf("refund should settle, skipped %v", settlement.Skipped)
	}
	if len(settlement.Debts) != 1 {
		t.Fatalf("expected one debt, got %+v", settlement.Debts)
	}
	if d := settlement.Debts[0]; d.From != "Bob" || d.To != "me" || d.Amount != 600 {
		t.Errorf("unexpected debt: %+v", d)
	}
}

func TestStorageFullWarning(t *testing.T) {
	seed, err := room.JSONCodec{}.Encode(models.Seed("trip", "", testNow))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Room for one seeded room and its pointers, but not two.
	quota := int64(len(seed))*3/2 + 200

	ts := setupTestServer(t, quota)
	c := ts.client(t, "laptop")
	ctx := context.Background()

	if _, err := c.CreateRoom(ctx, "trip", ""); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	big := models.NoteItem{ID: "n1", Text: "receipt", Category: models.NoteShopping, Image: strings.Repeat("x", int(quota))}
	resp, err := c.SetNotes(ctx, &SetNotesRequest{Items: []models.NoteItem{big}})
	if err != nil {
		t.Fatalf("a failed save must not fail the call: %v", err)
	}
	if resp.Warning == "" {
		t.Error("expected a storage warning")
	}
	if len(resp.View.CurrentNotes) != 1 {
		t.Errorf("the change must stay visible in the session")
	}

	usage, err := c.GetUsage(ctx)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.Total != quota || usage.Used <= 0 || usage.Used > quota {
		t.Errorf("unexpected usage: %+v", usage)
	}
	if usage.Percentage <= 0 || usage.Percentage > 100 {
		t.Errorf("percentage out of range: %v", usage.Percentage)
	}

	other := ts.client(t, "phone")
	_, err = other.CreateRoom(ctx, "second-trip", "")
	wantCode(t, err, connect.CodeResourceExhausted)
}

func TestCrossSessionSync(t *testing.T) {
	ts := setupTestServer(t, 0)
	ctx := context.Background()

	a := ts.client(t, "laptop")
	b := ts.client(t, "phone")
	if _, err := a.CreateRoom(ctx, "shared", ""); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := b.Login(ctx, "shared", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	note := models.NoteItem{ID: "n1", Text: "Buy Pocky", Category: models.NoteShopping}
	if _, err := a.SetNotes(ctx, &SetNotesRequest{Items: []models.NoteItem{note}}); err != nil {
		t.Fatalf("SetNotes failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := b.GetView(ctx)
		if err != nil {
			t.Fatalf("GetView failed: %v", err)
		}
		if len(resp.View.CurrentNotes) == 1 && resp.View.CurrentNotes[0].Text == "Buy Pocky" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("change did not reach the other session: %+v", resp.View.CurrentNotes)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionRestore(t *testing.T) {
	ts := setupTestServer(t, 0)
	ctx := context.Background()

	c := ts.client(t, "laptop")
	if _, err := c.CreateRoom(ctx, "trip", ""); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	created, err := c.CreateSubRoom(ctx, "Nara")
	if err != nil {
		t.Fatalf("CreateSubRoom failed: %v", err)
	}

	if err := c.CloseSession(ctx); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	if n := ts.registry.Len(); n != 0 {
		t.Fatalf("expected no live sessions, got %d", n)
	}

	resp, err := c.GetView(ctx)
	if err != nil {
		t.Fatalf("GetView after close failed: %v", err)
	}
	if resp.View.RoomID != "trip" || resp.View.SubRoomID != created.SubRoomID {
		t.Errorf("session not restored: room %q scope %q", resp.View.RoomID, resp.View.SubRoomID)
	}

	fresh := ts.client(t, "laptop")
	view, err := fresh.GetView(ctx)
	if err != nil {
		t.Fatalf("GetView failed: %v", err)
	}
	if view.View.RoomID != "trip" {
		t.Errorf("a new session of the same profile should restore the room, got %q", view.View.RoomID)
	}
}

func TestOpenSession_InvalidProfile(t *testing.T) {
	ts := setupTestServer(t, 0)
	c := NewRoomServiceClient(http.DefaultClient, ts.server.URL)

	_, err := c.OpenSession(context.Background(), "bad:profile")
	wantCode(t, err, connect.CodeInvalidArgument)
}

func TestSuggestCategory(t *testing.T) {
	ts := setupTestServer(t, 0)
	c := ts.client(t, "laptop")

	resp, err := c.SuggestCategory(context.Background(), &SuggestCategoryRequest{Description: "Hotel Nikko", Category: models.CategoryOther})
	if err != nil {
		t.Fatalf("SuggestCategory failed: %v", err)
	}
	if resp.Category != models.CategoryHotel {
		t.Errorf("Category = %q, want hotel", resp.Category)
	}
}

func TestGetForecast(t *testing.T) {
	ts := setupTestServer(t, 0)
	c := ts.client(t, "laptop")
	ctx := context.Background()

	resp, err := c.GetForecast(ctx, &GetForecastRequest{Location: "Osaka"})
	if err != nil {
		t.Fatalf("GetForecast failed: %v", err)
	}
	if resp.Weather == nil || resp.Weather.CityName != "Osaka" || len(resp.Weather.Hourly) != 12 {
		t.Errorf("unexpected forecast: %+v", resp.Weather)
	}

	_, err = c.GetForecast(ctx, &GetForecastRequest{Location: " "})
	wantCode(t, err, connect.CodeInvalidArgument)
	_, err = c.GetForecast(ctx, &GetForecastRequest{Location: "Osaka", Date: "March 10"})
	wantCode(t, err, connect.CodeInvalidArgument)
}
