// Package forecast is the boundary to the external weather service. It
// defines the Forecaster interface, a storage-backed cache, and the offline
// mock used when no forecast is available.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/tripmate/internal/models"
	"github.com/mmynk/tripmate/internal/storage"
)

// DefaultTTL is how long a cached forecast stays fresh.
const DefaultTTL = 3 * time.Hour

// Forecaster returns the forecast for location on date (YYYY-MM-DD).
// A nil result with a nil error means no forecast is available.
type Forecaster interface {
	Forecast(ctx context.Context, location, date string) (*models.WeatherInfo, error)
}

// Func adapts a function to Forecaster.
type Func func(ctx context.Context, location, date string) (*models.WeatherInfo, error)

func (f Func) Forecast(ctx context.Context, location, date string) (*models.WeatherInfo, error) {
	return f(ctx, location, date)
}

// None never has a forecast. It stands in when no weather service is configured.
var None Forecaster = Func(func(context.Context, string, string) (*models.WeatherInfo, error) {
	return nil, nil
})

// CacheKey returns the storage key of a cached forecast.
func CacheKey(location, date string) string {
	return fmt.Sprintf("tm:weather:%s:%s:v5", location, date)
}

type cacheEntry struct {
	Timestamp int64               `json:"timestamp"`
	Data      *models.WeatherInfo `json:"data"`
}

// Cached serves forecasts from a Backend and refreshes them from Source once
// they are older than TTL.
type Cached struct {
	Source  Forecaster
	Backend storage.Backend
	TTL     time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// NewCached wraps source with a cache in backend. A ttl <= 0 means DefaultTTL.
func NewCached(source Forecaster, backend storage.Backend, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{Source: source, Backend: backend, TTL: ttl, Now: time.Now, Logger: logger}
}

// Forecast returns a fresh cached forecast when there is one. Otherwise it
// asks Source and caches a usable answer. Results that arrive after ctx is
// done are discarded.
func (c *Cached) Forecast(ctx context.Context, location, date string) (*models.WeatherInfo, error) {
	key := CacheKey(location, date)
	now := c.Now()

	if info := c.lookup(ctx, key, now); info != nil {
		return info, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := c.Source.Forecast(ctx, location, date)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	if !usable(info) {
		return nil, nil
	}

	data, err := json.Marshal(cacheEntry{Timestamp: now.UnixMilli(), Data: info})
	if err != nil {
		return nil, fmt.Errorf("failed to encode forecast: %w", err)
	}
	if err := c.Backend.Set(ctx, key, data); err != nil {
		c.Logger.Warn("Failed to cache forecast", "key", key, "error", err)
	}
	return info, nil
}

func (c *Cached) lookup(ctx context.Context, key string, now time.Time) *models.WeatherInfo {
	data, err := c.Backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.Logger.Warn("Failed to read cached forecast", "key", key, "error", err)
		}
		return nil
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.Logger.Warn("Discarding unreadable cached forecast", "key", key, "error", err)
		return nil
	}
	if now.Sub(time.UnixMilli(entry.Timestamp)) >= c.TTL {
		return nil
	}
	return entry.Data
}

func usable(info *models.WeatherInfo) bool {
	return info != nil && len(info.Hourly) > 0
}

// Fallback asks Primary and falls back to Secondary when Primary fails or has
// nothing. Cancellation is never masked.
type Fallback struct {
	Primary   Forecaster
	Secondary Forecaster
	Logger    *slog.Logger
}

func (f Fallback) Forecast(ctx context.Context, location, date string) (*models.WeatherInfo, error) {
	info, err := f.Primary.Forecast(ctx, location, date)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err == nil && usable(info) {
		return info, nil
	}
	if err != nil {
		logger := f.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Forecast unavailable, using fallback", "location", location, "date", date, "error", err)
	}
	return f.Secondary.Forecast(ctx, location, date)
}
