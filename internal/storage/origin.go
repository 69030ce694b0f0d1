package storage

import "context"

type contextKey string

const originKey contextKey = "storage_origin"

// WithOrigin returns a context whose writes are attributed to origin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

// OriginFrom returns the origin attached by WithOrigin, or "".
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey).(string)
	return origin
}
