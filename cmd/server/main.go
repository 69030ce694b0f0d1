package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tripmate/internal/activity"
	"github.com/mmynk/tripmate/internal/categorize"
	"github.com/mmynk/tripmate/internal/config"
	"github.com/mmynk/tripmate/internal/forecast"
	"github.com/mmynk/tripmate/internal/metrics"
	"github.com/mmynk/tripmate/internal/middleware"
	"github.com/mmynk/tripmate/internal/room"
	"github.com/mmynk/tripmate/internal/service"
	"github.com/mmynk/tripmate/internal/storage"
	"github.com/mmynk/tripmate/internal/storage/memory"
	"github.com/mmynk/tripmate/internal/storage/redis"
	"github.com/mmynk/tripmate/internal/storage/sqlite"
	"github.com/mmynk/tripmate/internal/token"
	"github.com/mmynk/tripmate/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, notifier, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	slog.Info("Storage initialized", "driver", cfg.Store.Driver, "quota_bytes", cfg.Store.QuotaBytes)

	hooks := []activity.Hook{activity.LogHook(logger)}
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		backend = m.Instrument(backend)
		hooks = append(hooks, m.Hook())
	}
	backend = storage.Watched(backend, notifier)

	codec, err := room.CodecByName(cfg.Store.Codec)
	if err != nil {
		slog.Error("Invalid codec", "codec", cfg.Store.Codec, "error", err)
		os.Exit(1)
	}
	store := room.NewStore(backend, codec, logger)

	categorizer := categorize.Default()
	if cfg.CategoryRulesFile != "" {
		categorizer, err = categorize.LoadFile(cfg.CategoryRulesFile)
		if err != nil {
			slog.Error("Failed to load category rules", "path", cfg.CategoryRulesFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Category rules loaded", "path", cfg.CategoryRulesFile)
	}

	forecaster := forecast.Fallback{
		Primary:   forecast.NewCached(forecast.None, backend, cfg.Forecast.CacheTTL, logger),
		Secondary: forecast.Mock{},
		Logger:    logger,
	}

	registry := service.NewRegistry(ctx, store, notifier, activity.NewEmitter(hooks...), logger)
	defer registry.CloseAll()
	registry.RunJanitor(cfg.Session.IdleTimeout)

	tokens := token.NewManager(cfg.Session.Secret, cfg.Session.TTL)
	roomService := service.NewRoomService(registry, tokens, service.Options{
		Categorizer: categorizer,
		Forecaster:  forecaster,
		QuotaBytes:  cfg.Store.QuotaBytes,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	path, handler := roomService.Handler(connect.WithInterceptors(middleware.LoggingInterceptor(logger)))
	mux.Handle(path, handler)
	mux.Handle("/sync", service.NewSyncHandler(registry, tokens, logger))
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2cHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Connect server starting", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

// openBackend opens the configured backend, limited to the configured quota,
// and the notifier sessions use to see each other's writes. Redis doubles as
// the notifier so that several server processes stay in sync.
func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, storage.Notifier, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rs, err := redis.New(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return storage.WithQuota(rs, cfg.Store.QuotaBytes), rs, nil
	case config.DriverMemory:
		return storage.WithQuota(memory.New(), cfg.Store.QuotaBytes), storage.NewBroker(), nil
	default:
		ss, err := sqlite.New(cfg.Store.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return storage.WithQuota(ss, cfg.Store.QuotaBytes), storage.NewBroker(), nil
	}
}

// loggingMiddleware logs plain HTTP requests; RPCs are logged by the
// connect interceptor.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
