// Package storage provides abstractions for persistent key/value storage and
// change notification.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no value is stored under the key.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned by Set when the write would exceed the
	// backend's capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Backend defines the byte-oriented key/value operations the room store needs.
// This abstraction allows swapping storage backends (memory, SQLite, Redis)
// without changing the session layer.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, overwriting any prior value.
	// Returns an error wrapping ErrQuotaExceeded when the backend is full.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every stored key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Usage returns the number of bytes held, counted as len(key)+len(value)
	// over all keys.
	Usage(ctx context.Context) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Entry size as counted by Usage and WithQuota.
func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
