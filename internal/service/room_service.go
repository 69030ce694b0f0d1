package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/tripmate/internal/calculator"
	"github.com/mmynk/tripmate/internal/categorize"
	"github.com/mmynk/tripmate/internal/forecast"
	"github.com/mmynk/tripmate/internal/middleware"
	"github.com/mmynk/tripmate/internal/models"
	"github.com/mmynk/tripmate/internal/room"
	"github.com/mmynk/tripmate/internal/storage"
	"github.com/mmynk/tripmate/internal/token"
)

// RoomServiceName is the fully-qualified name of the room service.
const RoomServiceName = "tripmate.v1.RoomService"

// Procedure paths of RoomService.
const (
	ProcedureOpenSession     = "/" + RoomServiceName + "/OpenSession"
	ProcedureCloseSession    = "/" + RoomServiceName + "/CloseSession"
	ProcedureLogin           = "/" + RoomServiceName + "/Login"
	ProcedureCreateRoom      = "/" + RoomServiceName + "/CreateRoom"
	ProcedureLogout          = "/" + RoomServiceName + "/Logout"
	ProcedureSwitchSubRoom   = "/" + RoomServiceName + "/SwitchSubRoom"
	ProcedureCreateSubRoom   = "/" + RoomServiceName + "/CreateSubRoom"
	ProcedureDeleteSubRoom   = "/" + RoomServiceName + "/DeleteSubRoom"
	ProcedureRenameSubRoom   = "/" + RoomServiceName + "/RenameSubRoom"
	ProcedureSetItinerary    = "/" + RoomServiceName + "/SetItinerary"
	ProcedureSetNotes        = "/" + RoomServiceName + "/SetNotes"
	ProcedureSetExpenses     = "/" + RoomServiceName + "/SetExpenses"
	ProcedureAddExpense      = "/" + RoomServiceName + "/AddExpense"
	ProcedureUpdateMembers   = "/" + RoomServiceName + "/UpdateMembers"
	ProcedureGetView         = "/" + RoomServiceName + "/GetView"
	ProcedureGetSettlement   = "/" + RoomServiceName + "/GetSettlement"
	ProcedureGetUsage        = "/" + RoomServiceName + "/GetUsage"
	ProcedureSuggestCategory = "/" + RoomServiceName + "/SuggestCategory"
	ProcedureGetForecast     = "/" + RoomServiceName + "/GetForecast"
)

// Options configures the optional collaborators of RoomService.
type Options struct {
	Categorizer *categorize.Categorizer
	Forecaster  forecast.Forecaster

	// QuotaBytes is the capacity GetUsage reports against.
	QuotaBytes int64

	Clock  func() time.Time
	Logger *slog.Logger
}

// RoomService exposes session actions over Connect.
type RoomService struct {
	sessions    *Registry
	tokens      *token.Manager
	categorizer *categorize.Categorizer
	forecaster  forecast.Forecaster
	quota       int64
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService creates a RoomService over the given session registry.
func NewRoomService(sessions *Registry, tokens *token.Manager, opts Options) *RoomService {
	if opts.Categorizer == nil {
		opts.Categorizer = categorize.Default()
	}
	if opts.Forecaster == nil {
		opts.Forecaster = forecast.Mock{}
	}
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = storage.DefaultQuota
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RoomService{
		sessions:    sessions,
		tokens:      tokens,
		categorizer: opts.Categorizer,
		forecaster:  opts.Forecaster,
		quota:       opts.QuotaBytes,
		now:         opts.Clock,
		logger:      opts.Logger,
	}
}

// Handler returns the path prefix and handler serving every procedure. All
// procedures except OpenSession require a session token.
func (s *RoomService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(Codec{}),
		connect.WithInterceptors(middleware.RequireSession(s.tokens, ProcedureOpenSession)),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ProcedureOpenSession, connect.NewUnaryHandler(ProcedureOpenSession, s.OpenSession, opts...))
	mux.Handle(ProcedureCloseSession, connect.NewUnaryHandler(ProcedureCloseSession, s.CloseSession, opts...))
	mux.Handle(ProcedureLogin, connect.NewUnaryHandler(ProcedureLogin, s.Login, opts...))
	mux.Handle(ProcedureCreateRoom, connect.NewUnaryHandler(ProcedureCreateRoom, s.CreateRoom, opts...))
	mux.Handle(ProcedureLogout, connect.NewUnaryHandler(ProcedureLogout, s.Logout, opts...))
	mux.Handle(ProcedureSwitchSubRoom, connect.NewUnaryHandler(ProcedureSwitchSubRoom, s.SwitchSubRoom, opts...))
	mux.Handle(ProcedureCreateSubRoom, connect.NewUnaryHandler(ProcedureCreateSubRoom, s.CreateSubRoom, opts...))
	mux.Handle(ProcedureDeleteSubRoom, connect.NewUnaryHandler(ProcedureDeleteSubRoom, s.DeleteSubRoom, opts...))
	mux.Handle(ProcedureRenameSubRoom, connect.NewUnaryHandler(ProcedureRenameSubRoom, s.RenameSubRoom, opts...))
	mux.Handle(ProcedureSetItinerary, connect.NewUnaryHandler(ProcedureSetItinerary, s.SetItinerary, opts...))
	mux.Handle(ProcedureSetNotes, connect.NewUnaryHandler(ProcedureSetNotes, s.SetNotes, opts...))
	mux.Handle(ProcedureSetExpenses, connect.NewUnaryHandler(ProcedureSetExpenses, s.SetExpenses, opts...))
	mux.Handle(ProcedureAddExpense, connect.NewUnaryHandler(ProcedureAddExpense, s.AddExpense, opts...))
	mux.Handle(ProcedureUpdateMembers, connect.NewUnaryHandler(ProcedureUpdateMembers, s.UpdateMembers, opts...))
	mux.Handle(ProcedureGetView, connect.NewUnaryHandler(ProcedureGetView, s.GetView, opts...))
	mux.Handle(ProcedureGetSettlement, connect.NewUnaryHandler(ProcedureGetSettlement, s.GetSettlement, opts...))
	mux.Handle(ProcedureGetUsage, connect.NewUnaryHandler(ProcedureGetUsage, s.GetUsage, opts...))
	mux.Handle(ProcedureSuggestCategory, connect.NewUnaryHandler(ProcedureSuggestCategory, s.SuggestCategory, opts...))
	mux.Handle(ProcedureGetForecast, connect.NewUnaryHandler(ProcedureGetForecast, s.GetForecast, opts...))
	return "/" + RoomServiceName + "/", mux
}

// OpenSession starts a session for a profile and returns its token. The
// profile's last active room is restored.
func (s *RoomService) OpenSession(ctx context.Context, req *connect.Request[OpenSessionRequest]) (*connect.Response[OpenSessionResponse], error) {
	d, err := s.sessions.Open(ctx, req.Msg.Profile)
	if err != nil {
		s.logger.Error("OpenSession failed", "profile", req.Msg.Profile, "error", err)
		return nil, toConnectError(err)
	}

	sess := d.Session()
	signed, err := s.tokens.Issue(sess.ID(), sess.Profile())
	if err != nil {
		s.sessions.Close(sess.ID())
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Session opened", "session_id", sess.ID(), "profile", sess.Profile())
	return connect.NewResponse(&OpenSessionResponse{
		Token:     signed,
		SessionID: sess.ID(),
		View:      sess.View(),
	}), nil
}

// CloseSession tears the caller's session down. The next call with the same
// token restores it.
func (s *RoomService) CloseSession(ctx context.Context, _ *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error) {
	s.sessions.Close(middleware.GetSessionID(ctx))
	return connect.NewResponse(&CloseSessionResponse{}), nil
}

// Login joins an existing room.
func (s *RoomService) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.Session().Login(ctx, req.Msg.RoomID, req.Msg.Password)
	})
}

// CreateRoom creates a seeded room and joins it.
func (s *RoomService) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.Session().CreateRoom(ctx, req.Msg.RoomID, req.Msg.Password)
	})
}

// Logout leaves the active room.
func (s *RoomService) Logout(ctx context.Context, req *connect.Request[LogoutRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		d.Session().Logout(ctx)
		return nil
	})
}

// SwitchSubRoom changes the active scope.
func (s *RoomService) SwitchSubRoom(ctx context.Context, req *connect.Request[SwitchSubRoomRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.Session().SwitchSubRoom(ctx, req.Msg.SubRoomID)
	})
}

// CreateSubRoom adds a sub-room and switches to it.
func (s *RoomService) CreateSubRoom(ctx context.Context, req *connect.Request[CreateSubRoomRequest]) (*connect.Response[CreateSubRoomResponse], error) {
	d, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	id, err := d.CreateSubRoom(ctx, req.Msg.Name)
	warning, err := splitWarning(s.logger, req.Spec().Procedure, err)
	if err != nil {
		return nil, toConnectError(err)
	}

	s.logger.Info("Sub-room created", "session_id", d.Session().ID(), "sub_room_id", id)
	return connect.NewResponse(&CreateSubRoomResponse{
		SubRoomID: id,
		View:      d.Session().View(),
		Warning:   warning,
	}), nil
}

// DeleteSubRoom removes a sub-room.
func (s *RoomService) DeleteSubRoom(ctx context.Context, req *connect.Request[DeleteSubRoomRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.DeleteSubRoom(ctx, req.Msg.SubRoomID)
	})
}

// RenameSubRoom renames a sub-room.
func (s *RoomService) RenameSubRoom(ctx context.Context, req *connect.Request[RenameSubRoomRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.RenameSubRoom(ctx, req.Msg.SubRoomID, req.Msg.Name)
	})
}

// SetItinerary replaces the itinerary of the active scope.
func (s *RoomService) SetItinerary(ctx context.Context, req *connect.Request[SetItineraryRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.UpdateItinerary(ctx, room.Set(req.Msg.Items))
	})
}

// SetNotes replaces the notes of the active scope.
func (s *RoomService) SetNotes(ctx context.Context, req *connect.Request[SetNotesRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.UpdateNotes(ctx, room.Set(req.Msg.Items))
	})
}

// SetExpenses replaces the room's expenses.
func (s *RoomService) SetExpenses(ctx context.Context, req *connect.Request[SetExpensesRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.UpdateExpenses(ctx, room.Set(req.Msg.Expenses))
	})
}

// AddExpense records an expense, filling in defaults: the payer is "me", the
// split is the payer alone, the currency is JPY, the date is today and the
// category is suggested from the description. An expense whose id already
// exists replaces it.
func (s *RoomService) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	d, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.completeExpense(req.Msg.Expense)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	err = d.UpdateExpenses(ctx, upsertExpense(e))
	warning, err := splitWarning(s.logger, req.Spec().Procedure, err)
	if err != nil {
		return nil, toConnectError(err)
	}

	s.logger.Info("Expense recorded", "session_id", d.Session().ID(), "expense_id", e.ID, "category", e.Category)
	return connect.NewResponse(&AddExpenseResponse{
		Expense: e,
		View:    d.Session().View(),
		Warning: warning,
	}), nil
}

var (
	errMissingAmount      = errors.New("amount is required")
	errMissingDescription = errors.New("description is required")
)

func (s *RoomService) completeExpense(e models.Expense) (models.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	if e.Amount == 0 {
		return e, errMissingAmount
	}
	if e.Description == "" {
		return e, errMissingDescription
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Payer = strings.TrimSpace(e.Payer)
	if e.Payer == "" {
		e.Payer = models.DefaultMember
	}
	if len(e.SplitWith) == 0 {
		e.SplitWith = []string{e.Payer}
	}
	if e.Currency == "" {
		e.Currency = models.CurrencyJPY
	}
	if _, err := calculator.Convert(e.Amount, e.Currency, models.CurrencyTWD); err != nil {
		return e, err
	}
	if e.Date == "" {
		e.Date = s.now().Format(models.DateLayout)
	}
	if e.Category == "" {
		e.Category = s.categorizer.SuggestExpense(e)
	}
	if e.Category == "" {
		e.Category = models.CategoryOther
	}
	if _, err := calculator.SplitExpense(e); err != nil {
		return e, err
	}
	return e, nil
}

func upsertExpense(e models.Expense) room.Transform[models.Expense] {
	return func(current []models.Expense) []models.Expense {
		for i := range current {
			if current[i].ID == e.ID {
				current[i] = e
				return current
			}
		}
		return append(current, e)
	}
}

// UpdateMembers replaces the member list, optionally renaming one member
// across all expenses.
func (s *RoomService) UpdateMembers(ctx context.Context, req *connect.Request[UpdateMembersRequest]) (*connect.Response[ViewResponse], error) {
	return s.mutate(ctx, req.Spec().Procedure, func(d *room.Dispatcher) error {
		return d.UpdateMembers(ctx, req.Msg.Members, req.Msg.OldName, req.Msg.NewName)
	})
}

// GetView returns the current scoped view.
func (s *RoomService) GetView(ctx context.Context, _ *connect.Request[GetViewRequest]) (*connect.Response[ViewResponse], error) {
	d, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ViewResponse{View: d.Session().View()}), nil
}

// GetSettlement computes balances, simplified debts and totals for the room.
func (s *RoomService) GetSettlement(ctx context.Context, _ *connect.Request[GetSettlementRequest]) (*connect.Response[GetSettlementResponse], error) {
	d, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	doc := d.Session().Snapshot().Doc
	if doc == nil {
		return nil, toConnectError(room.ErrNoActiveRoom)
	}

	settlement := calculator.Settle(doc.Expenses, doc.Members)
	if len(settlement.Skipped) > 0 {
		s.logger.Warn("Settlement left out unsplittable expenses", "room_id", doc.ID, "expense_ids", settlement.Skipped)
	}

	return connect.NewResponse(&GetSettlementResponse{
		Balances:  settlement.Balances,
		Debts:     settlement.Debts,
		Skipped:   settlement.Skipped,
		Totals:    calculator.Totals(doc.Expenses),
		Breakdown: calculator.CategoryBreakdown(doc.Expenses),
		People:    calculator.People(doc.Expenses, doc.Members),
	}), nil
}

// GetUsage reports storage usage against the configured quota.
func (s *RoomService) GetUsage(ctx context.Context, _ *connect.Request[GetUsageRequest]) (*connect.Response[GetUsageResponse], error) {
	if _, err := s.session(ctx); err != nil {
		return nil, err
	}

	used, err := s.sessions.Store().Backend().Usage(ctx)
	if err != nil {
		s.logger.Error("GetUsage failed", "error", err)
		return nil, toConnectError(err)
	}

	percentage := float64(used) / float64(s.quota) * 100
	if percentage > 100 {
		percentage = 100
	}
	return connect.NewResponse(&GetUsageResponse{
		Used:       used,
		Total:      s.quota,
		Percentage: percentage,
	}), nil
}

// SuggestCategory returns the category suggested for a description.
func (s *RoomService) SuggestCategory(_ context.Context, req *connect.Request[SuggestCategoryRequest]) (*connect.Response[SuggestCategoryResponse], error) {
	return connect.NewResponse(&SuggestCategoryResponse{
		Category: s.categorizer.Suggest(req.Msg.Description, req.Msg.Category),
	}), nil
}

// GetForecast returns the forecast for a location.
func (s *RoomService) GetForecast(ctx context.Context, req *connect.Request[GetForecastRequest]) (*connect.Response[GetForecastResponse], error) {
	location := strings.TrimSpace(req.Msg.Location)
	if location == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("location is required"))
	}
	date := req.Msg.Date
	if date == "" {
		date = s.now().UTC().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	info, err := s.forecaster.Forecast(ctx, location, date)
	if err != nil {
		s.logger.Warn("GetForecast failed", "location", location, "date", date, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetForecastResponse{Weather: info}), nil
}

// session resolves the caller's session from the request context.
func (s *RoomService) session(ctx context.Context) (*room.Dispatcher, error) {
	id := middleware.GetSessionID(ctx)
	if id == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, token.ErrMissingToken)
	}
	d, err := s.sessions.Resolve(ctx, id, middleware.GetProfile(ctx))
	if err != nil {
		s.logger.Error("Failed to resolve session", "session_id", id, "error", err)
		return nil, toConnectError(err)
	}
	return d, nil
}

// mutate runs fn on the caller's session and returns the resulting view.
func (s *RoomService) mutate(ctx context.Context, procedure string, fn func(d *room.Dispatcher) error) (*connect.Response[ViewResponse], error) {
	d, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	warning, err := splitWarning(s.logger, procedure, fn(d))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ViewResponse{View: d.Session().View(), Warning: warning}), nil
}
