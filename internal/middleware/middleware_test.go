package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tripmate/internal/token"
)

type ping struct{}

func callWith(t *testing.T, interceptor connect.UnaryInterceptorFunc, authHeader string) (context.Context, error) {
	t.Helper()

	var seen context.Context
	next := connect.UnaryFunc(func(ctx context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
		seen = ctx
		return connect.NewResponse(&ping{}), nil
	})

	req := connect.NewRequest(&ping{})
	if authHeader != "" {
		req.Header().Set("Authorization", authHeader)
	}
	_, err := interceptor(next)(context.Background(), req)
	return seen, err
}

func TestRequireSession(t *testing.T) {
	tokens := token.NewManager("secret", time.Hour)
	signed, err := tokens.Issue("session-1", "laptop")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name     string
		header   string
		wantCode connect.Code
	}{
		{name: "missing", header: "", wantCode: connect.CodeUnauthenticated},
		{name: "malformed", header: "Token " + signed, wantCode: connect.CodeUnauthenticated},
		{name: "invalid", header: "Bearer nope", wantCode: connect.CodeUnauthenticated},
		{name: "valid", header: "Bearer " + signed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := callWith(t, RequireSession(tokens), tt.header)
			if tt.wantCode != 0 {
				if connect.CodeOf(err) != tt.wantCode {
					t.Fatalf("got %v, want code %v", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if GetSessionID(ctx) != "session-1" || GetProfile(ctx) != "laptop" {
				t.Errorf("session not in context: %q %q", GetSessionID(ctx), GetProfile(ctx))
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "Bearer", ok: false},
		{header: "Bearer ", ok: false},
		{header: "Basic abc", ok: false},
		{header: "Bearer a b", ok: false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoggingInterceptor(t *testing.T) {
	next := connect.UnaryFunc(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("room not found"))
	})
	_, err := LoggingInterceptor(nil)(next)(context.Background(), connect.NewRequest(&ping{}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("interceptor must pass errors through, got %v", err)
	}
}
