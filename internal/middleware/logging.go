package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor logs every RPC with its procedure, session and duration.
// Client errors (connect codes) log at WARN, anything else at ERROR.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"session_id", GetSessionID(ctx), // empty before OpenSession
				"duration_ms", time.Since(start).Milliseconds(),
			}

			var connectErr *connect.Error
			switch {
			case err == nil:
				logger.InfoContext(ctx, "RPC ok", attrs...)
			case errors.As(err, &connectErr):
				logger.WarnContext(ctx, "RPC error", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
			default:
				logger.ErrorContext(ctx, "RPC error", append(attrs, "error", err)...)
			}
			return resp, err
		}
	}
}
