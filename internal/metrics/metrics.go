// Package metrics exposes Prometheus instruments for resolution runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the run's instruments on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Resolutions     *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	UpstreamErrors  *prometheus.CounterVec
	RowsCompleted   *prometheus.CounterVec
	InFlight        prometheus.Gauge
}

// New creates and registers the instruments.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_resolutions_total",
				Help: "Resolutions computed (cache misses), by flavor and outcome",
			},
			[]string{"flavor", "offers"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_resolve_duration_seconds",
				Help:    "Wall time of computed resolutions",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"flavor"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_lookups_total",
				Help: "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),
		UpstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_upstream_errors_total",
				Help: "Search or fetch failures recovered as empty results",
			},
			[]string{"service"},
		),
		RowsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_batch_rows_total",
				Help: "Batch rows completed, by flavor",
			},
			[]string{"flavor"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_batch_in_flight",
				Help: "Resolutions currently running",
			},
		),
	}
	m.registry.MustRegister(
		m.Resolutions,
		m.ResolveDuration,
		m.CacheLookups,
		m.UpstreamErrors,
		m.RowsCompleted,
		m.InFlight,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveResolution records one computed resolution.
func (m *Metrics) ObserveResolution(flavor, offers string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(flavor, offers).Inc()
	m.ResolveDuration.WithLabelValues(flavor).Observe(elapsed.Seconds())
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// UpstreamError records a recovered search or fetch failure.
func (m *Metrics) UpstreamError(service string) {
	if m == nil {
		return
	}
	m.UpstreamErrors.WithLabelValues(service).Inc()
}

// RowStarted and RowDone bracket one batch row.
func (m *Metrics) RowStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// RowDone marks a batch row complete.
func (m *Metrics) RowDone(flavor string) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.RowsCompleted.WithLabelValues(flavor).Inc()
}
