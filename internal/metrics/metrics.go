package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the report pipeline.
// A nil *Metrics is valid and turns every recording call into a no-op,
// so library code never needs to nil-check its dependency.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	ReportDuration   prometheus.Histogram
	ReportsTotal     *prometheus.CounterVec
}

// New creates a registry with all pipeline metrics registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defilens_cache_hits_total",
				Help: "Cache hits by payload kind",
			},
			[]string{"kind"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defilens_cache_misses_total",
				Help: "Cache misses by payload kind",
			},
			[]string{"kind"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defilens_upstream_requests_total",
				Help: "Upstream API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		ReportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "defilens_report_duration_seconds",
				Help:    "End-to-end report pipeline duration",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),
		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defilens_reports_total",
				Help: "Generated reports by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.UpstreamRequests,
		m.ReportDuration,
		m.ReportsTotal,
	)

	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for programmatic scrapes.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) IncCacheHit(kind string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCacheMiss(kind string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveUpstream(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) ObserveReport(seconds float64, outcome string) {
	if m == nil {
		return
	}
	m.ReportDuration.Observe(seconds)
	m.ReportsTotal.WithLabelValues(outcome).Inc()
}
