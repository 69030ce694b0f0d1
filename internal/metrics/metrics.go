// Package metrics exposes Prometheus collectors for room activity and storage.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/tripmate/internal/activity"
	"github.com/mmynk/tripmate/internal/storage"
)

const namespace = "tripmate"

// Write outcomes recorded by the instrumented backend.
const (
	OutcomeOK    = "ok"
	OutcomeQuota = "quota_exceeded"
	OutcomeError = "error"
)

// Metrics holds the collectors. Create one per registry.
type Metrics struct {
	registry *prometheus.Registry

	Mutations        *prometheus.CounterVec
	StoreWrites      *prometheus.CounterVec
	QuotaRejections  prometheus.Counter
	SyncReloads      prometheus.Counter
	PersistFailures  prometheus.Counter
	StorageUsedBytes prometheus.Gauge
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_mutations_total",
			Help:      "Room state transitions by action.",
		}, []string{"action"}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Storage writes by outcome.",
		}, []string{"outcome"}),
		QuotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_quota_rejections_total",
			Help:      "Writes rejected because storage was full.",
		}),
		SyncReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_reloads_total",
			Help:      "Room documents reloaded after a change by another session.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_persist_failures_total",
			Help:      "Changes kept in memory that could not be persisted.",
		}),
		StorageUsedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_used_bytes",
			Help:      "Bytes held by the storage backend.",
		}),
	}
	reg.MustRegister(
		m.Mutations,
		m.StoreWrites,
		m.QuotaRejections,
		m.SyncReloads,
		m.PersistFailures,
		m.StorageUsedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hook counts activity events.
func (m *Metrics) Hook() activity.Hook {
	return activity.HookFunc(func(_ context.Context, ev activity.Event) error {
		switch ev.Verb {
		case activity.VerbRoomReloaded:
			m.SyncReloads.Inc()
		case activity.VerbPersistenceFailed:
			m.PersistFailures.Inc()
		default:
			m.Mutations.WithLabelValues(ev.Verb).Inc()
		}
		return nil
	})
}

// Instrument wraps b so that writes and usage are recorded.
func (m *Metrics) Instrument(b storage.Backend) storage.Backend {
	return &instrumented{Backend: b, m: m}
}

type instrumented struct {
	storage.Backend
	m *Metrics
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte) error {
	err := i.Backend.Set(ctx, key, value)
	switch {
	case err == nil:
		i.m.StoreWrites.WithLabelValues(OutcomeOK).Inc()
		i.observeUsage(ctx)
	case errors.Is(err, storage.ErrQuotaExceeded):
		i.m.StoreWrites.WithLabelValues(OutcomeQuota).Inc()
		i.m.QuotaRejections.Inc()
	default:
		i.m.StoreWrites.WithLabelValues(OutcomeError).Inc()
	}
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	err := i.Backend.Delete(ctx, key)
	if err == nil {
		i.observeUsage(ctx)
	}
	return err
}

func (i *instrumented) Usage(ctx context.Context) (int64, error) {
	used, err := i.Backend.Usage(ctx)
	if err == nil {
		i.m.StorageUsedBytes.Set(float64(used))
	}
	return used, err
}

func (i *instrumented) observeUsage(ctx context.Context) {
	_, _ = i.Usage(ctx)
}
