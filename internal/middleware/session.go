package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tripmate/internal/token"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// SessionIDKey is the context key for the caller's session id.
	SessionIDKey contextKey = "session_id"
	// ProfileKey is the context key for the caller's profile.
	ProfileKey contextKey = "profile"
)

// GetSessionID extracts the session id from the context.
// Returns empty string if not found.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

// GetProfile extracts the profile from the context.
func GetProfile(ctx context.Context) string {
	profile, _ := ctx.Value(ProfileKey).(string)
	return profile
}

// WithSession returns ctx carrying the given session identity.
func WithSession(ctx context.Context, sessionID, profile string) context.Context {
	ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	return context.WithValue(ctx, ProfileKey, profile)
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireSession returns an interceptor that validates the session handle and
// adds its session id and profile to the request context. Procedures listed in
// public skip the check.
func RequireSession(tokens *token.Manager, public ...string) connect.UnaryInterceptorFunc {
	skip := make(map[string]bool, len(public))
	for _, p := range public {
		skip[p] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if skip[req.Spec().Procedure] {
				return next(ctx, req)
			}

			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, token.ErrMissingToken)
			}
			tokenString, ok := BearerToken(authHeader)
			if !ok {
				return nil, connect.NewError(connect.CodeUnauthenticated, token.ErrInvalidToken)
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithSession(ctx, claims.SessionID, claims.Profile), req)
		}
	}
}
