// Package redis provides a Redis-backed storage.Backend and a pub/sub
// storage.Notifier, so sessions served by different processes stay in sync.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mmynk/tripmate/internal/storage"
)

// DefaultChannel carries storage.Change messages between processes.
const DefaultChannel = "tm:changes"

var (
	_ storage.Backend  = (*Store)(nil)
	_ storage.Notifier = (*Store)(nil)
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Channel overrides DefaultChannel.
	Channel string
}

// Store wraps a Redis client. Values are plain Redis strings.
type Store struct {
	client  *goredis.Client
	channel string
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	slog.Info("Connected to redis", "addr", opts.Addr, "db", opts.DB)
	return NewFromClient(client, opts.Channel), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client, channel string) *Store {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Store{client: client, channel: channel}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		if isOOM(err) {
			return fmt.Errorf("failed to set %s: %w", key, storage.ErrQuotaExceeded)
		}
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys scans for keys beginning with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Usage sums key and value lengths over every key in the database.
func (s *Store) Usage(ctx context.Context) (int64, error) {
	keys, err := s.Keys(ctx, "")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	lens := make([]*goredis.IntCmd, len(keys))
	for i, k := range keys {
		lens[i] = pipe.StrLen(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return 0, fmt.Errorf("failed to measure usage: %w", err)
	}

	var total int64
	for i, k := range keys {
		total += int64(len(k)) + lens[i].Val()
	}
	return total, nil
}

// Publish sends change to every process subscribed to the channel.
func (s *Store) Publish(ctx context.Context, change storage.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe listens on the channel until cancel is called or ctx is done.
// It returns once the subscription is confirmed by the server.
func (s *Store) Subscribe(ctx context.Context, fn func(storage.Change)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change storage.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					slog.Warn("Dropping malformed change message", "channel", msg.Channel, "error", err)
					continue
				}
				fn(change)
			}
		}
	}()

	return cancel, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func isOOM(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM ")
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
