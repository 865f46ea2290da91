// Package metrics records refresh outcomes as Prometheus metrics.
//
// akv is a short-lived CLI, so nothing is served over HTTP. When
// metrics_textfile is configured the registry is written in the
// node-exporter textfile format after each refresh.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// SyncMetrics provides methods to record refresh metrics. A nil
// *SyncMetrics records nothing.
type SyncMetrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	vaultResults     *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	cachedVaults     prometheus.Gauge
	cachedSecrets    prometheus.Gauge
	lastFullSync     prometheus.Gauge
	lastRunTimestamp *prometheus.GaugeVec
}

// New creates a SyncMetrics backed by its own registry.
func New() *SyncMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &SyncMetrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akv_sync_runs_total",
				Help: "Total number of refresh runs by mode and outcome",
			},
			[]string{"mode", "status"},
		),
		vaultResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akv_sync_vault_results_total",
				Help: "Per-vault secret listing results",
			},
			[]string{"status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "akv_sync_duration_seconds",
				Help:    "Duration of refresh runs in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"mode"},
		),
		cachedVaults: factory.NewGauge(prometheus.GaugeOpts{
			Name: "akv_cache_vaults",
			Help: "Number of vault names in the cache after the last refresh",
		}),
		cachedSecrets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "akv_cache_secret_names",
			Help: "Number of secret names in the cache after the last refresh",
		}),
		lastFullSync: factory.NewGauge(prometheus.GaugeOpts{
			Name: "akv_last_full_sync_timestamp_seconds",
			Help: "Unix time of the last completed full refresh",
		}),
		lastRunTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "akv_last_sync_timestamp_seconds",
				Help: "Unix time of the last refresh run by mode",
			},
			[]string{"mode"},
		),
	}
}

// Registry exposes the underlying registry for tests and custom gatherers.
func (m *SyncMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRun records one refresh run.
func (m *SyncMetrics) RecordRun(mode, status string, started, finished time.Time) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(mode, status).Inc()
	m.duration.WithLabelValues(mode).Observe(finished.Sub(started).Seconds())
	m.lastRunTimestamp.WithLabelValues(mode).Set(float64(finished.Unix()))
}

// RecordVaults counts per-vault listing results.
func (m *SyncMetrics) RecordVaults(succeeded, failed int) {
	if m == nil {
		return
	}
	m.vaultResults.WithLabelValues(StatusSuccess).Add(float64(succeeded))
	m.vaultResults.WithLabelValues(StatusFailed).Add(float64(failed))
}

// RecordCacheSize sets the cache size gauges.
func (m *SyncMetrics) RecordCacheSize(vaults, secrets int) {
	if m == nil {
		return
	}
	m.cachedVaults.Set(float64(vaults))
	m.cachedSecrets.Set(float64(secrets))
}

// RecordFullSync sets the last full refresh timestamp.
func (m *SyncMetrics) RecordFullSync(at time.Time) {
	if m == nil || at.IsZero() {
		return
	}
	m.lastFullSync.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
// The write is atomic so node-exporter never reads a partial file.
func (m *SyncMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
