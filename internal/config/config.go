// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

var ErrMissingSecret = errors.New("SESSION_SECRET is required")

// Config is the complete server configuration.
type Config struct {
	Port string

	Store    StoreConfig
	Redis    RedisConfig
	Session  SessionConfig
	Forecast ForecastConfig

	// CategoryRulesFile replaces the built-in category rules when set.
	CategoryRulesFile string

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

type StoreConfig struct {
	Driver     string
	DBPath     string
	QuotaBytes int64
	Codec      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration

	// IdleTimeout is how long an unused session stays in memory. Its token
	// keeps working; the session is restored on next use.
	IdleTimeout time.Duration
}

type ForecastConfig struct {
	CacheTTL time.Duration
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			DBPath:     getEnv("DB_PATH", "./data/tripmate.db"),
			QuotaBytes: int64(getInt("STORE_QUOTA_BYTES", 5_000_000)),
			Codec:      strings.ToLower(getEnv("STORE_CODEC", "json")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret:      getEnv("SESSION_SECRET", ""),
			TTL:         getDuration("SESSION_TTL", 720*time.Hour),
			IdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		},
		Forecast: ForecastConfig{
			CacheTTL: getDuration("FORECAST_CACHE_TTL", 3*time.Hour),
		},
		CategoryRulesFile: getEnv("CATEGORY_RULES_FILE", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		MetricsEnabled:    getBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverRedis:
		if c.Session.Secret == "" {
			return ErrMissingSecret
		}
	case DriverMemory:
		if c.Session.Secret == "" {
			c.Session.Secret = "dev-only-session-secret"
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %v", c.Session.IdleTimeout)
	}
	switch c.Store.Codec {
	case "json", "cbor":
	default:
		return fmt.Errorf("unknown STORE_CODEC %q", c.Store.Codec)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return value == "yes"
		}
		return b
	}
	return defaultValue
}

// getDuration accepts Go durations ("90m") or a plain number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
