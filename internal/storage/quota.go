package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultQuota matches the typical browser localStorage budget.
const DefaultQuota int64 = 5_000_000

// Ensure QuotaBackend implements Backend
var _ Backend = (*QuotaBackend)(nil)

// QuotaBackend rejects writes that would push Usage above a byte limit.
type QuotaBackend struct {
	Backend
	limit int64
	mu    sync.Mutex
}

// WithQuota wraps b with a byte budget. A non-positive limit means DefaultQuota.
func WithQuota(b Backend, limit int64) *QuotaBackend {
	if limit <= 0 {
		limit = DefaultQuota
	}
	return &QuotaBackend{Backend: b, limit: limit}
}

// Limit returns the configured byte budget.
func (q *QuotaBackend) Limit() int64 {
	return q.limit
}

// Set checks the projected usage before delegating the write.
func (q *QuotaBackend) Set(ctx context.Context, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	used, err := q.Backend.Usage(ctx)
	if err != nil {
		return fmt.Errorf("failed to measure usage: %w", err)
	}

	projected := used + entrySize(key, value)
	old, err := q.Backend.Get(ctx, key)
	switch {
	case err == nil:
		projected -= entrySize(key, old)
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("failed to read previous value: %w", err)
	}

	if projected > q.limit {
		return fmt.Errorf("writing %s needs %d of %d bytes: %w", key, projected, q.limit, ErrQuotaExceeded)
	}
	return q.Backend.Set(ctx, key, value)
}
