// Package metrics exposes Prometheus instrumentation for the curator service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "curator"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Data source metrics
	DatasetFetches        *prometheus.CounterVec
	DatasetFetchDuration  *prometheus.HistogramVec
	UpstreamErrors        *prometheus.CounterVec
	LastDatasetOriginUnix *prometheus.GaugeVec

	// Scoring metrics
	ScoredRecords   *prometheus.CounterVec
	ScoringDuration *prometheus.HistogramVec

	// Digest metrics
	DigestsSent    prometheus.Counter
	DigestFailures prometheus.Counter
}

// New creates a Metrics instance on its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		DatasetFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasource",
			Name:      "fetches_total",
			Help:      "Total number of dataset resolutions by origin",
		}, []string{"origin"}),
		DatasetFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "datasource",
			Name:      "fetch_duration_seconds",
			Help:      "Dataset resolution latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"origin"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasource",
			Name:      "upstream_errors_total",
			Help:      "Total number of failed upstream fetches by dataset",
		}, []string{"dataset"}),
		LastDatasetOriginUnix: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datasource",
			Name:      "last_resolution_timestamp_seconds",
			Help:      "Unix time of the most recent resolution by origin",
		}, []string{"origin"}),

		ScoredRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "records_total",
			Help:      "Total number of records scored by kind",
		}, []string{"kind"}),
		ScoringDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "duration_seconds",
			Help:      "Scoring pipeline duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		DigestsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "digests_sent_total",
			Help:      "Total number of digests delivered",
		}),
		DigestFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "digest_failures_total",
			Help:      "Total number of digest cycles that failed",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one dataset resolution.
func (m *Metrics) ObserveFetch(origin string, d time.Duration) {
	m.DatasetFetches.WithLabelValues(origin).Inc()
	m.DatasetFetchDuration.WithLabelValues(origin).Observe(d.Seconds())
	m.LastDatasetOriginUnix.WithLabelValues(origin).SetToCurrentTime()
}

// UpstreamError records a failed fetch of one dataset.
func (m *Metrics) UpstreamError(dataset string) {
	m.UpstreamErrors.WithLabelValues(dataset).Inc()
}

// ObserveScoring records a scoring run that produced n records.
func (m *Metrics) ObserveScoring(kind string, n int, d time.Duration) {
	m.ScoredRecords.WithLabelValues(kind).Add(float64(n))
	m.ScoringDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
