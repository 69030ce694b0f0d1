package storage

import (
	"context"
	"log/slog"
	"sync"
)

// Change describes one committed write or delete.
type Change struct {
	Key string `json:"key"`

	// Origin identifies the writer (a session id). Empty for anonymous writes.
	Origin string `json:"origin,omitempty"`
}

// Notifier publishes and delivers storage changes.
type Notifier interface {
	// Publish announces a committed change to every subscriber.
	Publish(ctx context.Context, change Change) error

	// Subscribe registers fn for every subsequent change until cancel is called
	// or ctx is done. fn may be invoked concurrently from other goroutines.
	Subscribe(ctx context.Context, fn func(Change)) (cancel func(), err error)
}

// Ensure Broker implements Notifier
var _ Notifier = (*Broker)(nil)

// Broker is an in-process Notifier.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]func(Change))}
}

// Publish delivers change to every subscriber on its own goroutine, so that a
// subscriber may call back into storage without deadlocking the writer.
func (b *Broker) Publish(ctx context.Context, change Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs {
		go fn(change)
	}
	return nil
}

// Subscribe registers fn. The subscription ends when cancel is called or ctx is done.
func (b *Broker) Subscribe(ctx context.Context, fn func(Change)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	stopped := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(stopped)
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-stopped:
			}
		}()
	}
	return cancel, nil
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Ensure watchedBackend implements Backend
var _ Backend = (*watchedBackend)(nil)

type watchedBackend struct {
	Backend
	notifier Notifier
}

// Watched wraps b so that every successful Set and Delete publishes a Change
// on n. The change origin is read from the write context (see WithOrigin).
func Watched(b Backend, n Notifier) Backend {
	return &watchedBackend{Backend: b, notifier: n}
}

func (w *watchedBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := w.Backend.Set(ctx, key, value); err != nil {
		return err
	}
	w.publish(ctx, key)
	return nil
}

func (w *watchedBackend) Delete(ctx context.Context, key string) error {
	if err := w.Backend.Delete(ctx, key); err != nil {
		return err
	}
	w.publish(ctx, key)
	return nil
}

// A failed publish never fails the write; the value is already committed.
func (w *watchedBackend) publish(ctx context.Context, key string) {
	change := Change{Key: key, Origin: OriginFrom(ctx)}
	if err := w.notifier.Publish(context.WithoutCancel(ctx), change); err != nil {
		slog.Warn("Failed to publish storage change", "key", key, "error", err)
	}
}
