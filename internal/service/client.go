package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// RoomServiceClient calls RoomService. After OpenSession it sends the issued
// token with every call.
type RoomServiceClient struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption
	token      string
}

// NewRoomServiceClient creates a client for the service at baseURL.
func NewRoomServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RoomServiceClient {
	return &RoomServiceClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...),
	}
}

// Token returns the session token in use.
func (c *RoomServiceClient) Token() string {
	return c.token
}

// SetToken makes the client act for an existing session.
func (c *RoomServiceClient) SetToken(token string) {
	c.token = token
}

func call[Req, Res any](ctx context.Context, c *RoomServiceClient, procedure string, msg *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, c.opts...)
	req := connect.NewRequest(msg)
	if c.token != "" {
		req.Header().Set("Authorization", "Bearer "+c.token)
	}
	resp, err := client.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// OpenSession starts a session and remembers its token.
func (c *RoomServiceClient) OpenSession(ctx context.Context, profile string) (*OpenSessionResponse, error) {
	resp, err := call[OpenSessionRequest, OpenSessionResponse](ctx, c, ProcedureOpenSession, &OpenSessionRequest{Profile: profile})
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return resp, nil
}

func (c *RoomServiceClient) CloseSession(ctx context.Context) error {
	_, err := call[CloseSessionRequest, CloseSessionResponse](ctx, c, ProcedureCloseSession, &CloseSessionRequest{})
	return err
}

func (c *RoomServiceClient) Login(ctx context.Context, roomID, password string) (*ViewResponse, error) {
	return call[LoginRequest, ViewResponse](ctx, c, ProcedureLogin, &LoginRequest{RoomID: roomID, Password: password})
}

func (c *RoomServiceClient) CreateRoom(ctx context.Context, roomID, password string) (*ViewResponse, error) {
	return call[CreateRoomRequest, ViewResponse](ctx, c, ProcedureCreateRoom, &CreateRoomRequest{RoomID: roomID, Password: password})
}

func (c *RoomServiceClient) Logout(ctx context.Context) (*ViewResponse, error) {
	return call[LogoutRequest, ViewResponse](ctx, c, ProcedureLogout, &LogoutRequest{})
}

func (c *RoomServiceClient) SwitchSubRoom(ctx context.Context, subRoomID string) (*ViewResponse, error) {
	return call[SwitchSubRoomRequest, ViewResponse](ctx, c, ProcedureSwitchSubRoom, &SwitchSubRoomRequest{SubRoomID: subRoomID})
}

func (c *RoomServiceClient) CreateSubRoom(ctx context.Context, name string) (*CreateSubRoomResponse, error) {
	return call[CreateSubRoomRequest, CreateSubRoomResponse](ctx, c, ProcedureCreateSubRoom, &CreateSubRoomRequest{Name: name})
}

func (c *RoomServiceClient) DeleteSubRoom(ctx context.Context, subRoomID string) (*ViewResponse, error) {
	return call[DeleteSubRoomRequest, ViewResponse](ctx, c, ProcedureDeleteSubRoom, &DeleteSubRoomRequest{SubRoomID: subRoomID})
}

func (c *RoomServiceClient) RenameSubRoom(ctx context.Context, subRoomID, name string) (*ViewResponse, error) {
	return call[RenameSubRoomRequest, ViewResponse](ctx, c, ProcedureRenameSubRoom, &RenameSubRoomRequest{SubRoomID: subRoomID, Name: name})
}

func (c *RoomServiceClient) SetItinerary(ctx context.Context, req *SetItineraryRequest) (*ViewResponse, error) {
	return call[SetItineraryRequest, ViewResponse](ctx, c, ProcedureSetItinerary, req)
}

func (c *RoomServiceClient) SetNotes(ctx context.Context, req *SetNotesRequest) (*ViewResponse, error) {
	return call[SetNotesRequest, ViewResponse](ctx, c, ProcedureSetNotes, req)
}

func (c *RoomServiceClient) SetExpenses(ctx context.Context, req *SetExpensesRequest) (*ViewResponse, error) {
	return call[SetExpensesRequest, ViewResponse](ctx, c, ProcedureSetExpenses, req)
}

func (c *RoomServiceClient) AddExpense(ctx context.Context, req *AddExpenseRequest) (*AddExpenseResponse, error) {
	return call[AddExpenseRequest, AddExpenseResponse](ctx, c, ProcedureAddExpense, req)
}

func (c *RoomServiceClient) UpdateMembers(ctx context.Context, req *UpdateMembersRequest) (*ViewResponse, error) {
	return call[UpdateMembersRequest, ViewResponse](ctx, c, ProcedureUpdateMembers, req)
}

func (c *RoomServiceClient) GetView(ctx context.Context) (*ViewResponse, error) {
	return call[GetViewRequest, ViewResponse](ctx, c, ProcedureGetView, &GetViewRequest{})
}

func (c *RoomServiceClient) GetSettlement(ctx context.Context) (*GetSettlementResponse, error) {
	return call[GetSettlementRequest, GetSettlementResponse](ctx, c, ProcedureGetSettlement, &GetSettlementRequest{})
}

func (c *RoomServiceClient) GetUsage(ctx context.Context) (*GetUsageResponse, error) {
	return call[GetUsageRequest, GetUsageResponse](ctx, c, ProcedureGetUsage, &GetUsageRequest{})
}

func (c *RoomServiceClient) SuggestCategory(ctx context.Context, req *SuggestCategoryRequest) (*SuggestCategoryResponse, error) {
	return call[SuggestCategoryRequest, SuggestCategoryResponse](ctx, c, ProcedureSuggestCategory, req)
}

func (c *RoomServiceClient) GetForecast(ctx context.Context, req *GetForecastRequest) (*GetForecastResponse, error) {
	return call[GetForecastRequest, GetForecastResponse](ctx, c, ProcedureGetForecast, req)
}
