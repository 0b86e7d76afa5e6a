package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pagesTotal       *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	coercionFailures *prometheus.CounterVec
	rowsReturned     *prometheus.HistogramVec
	latency          *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg. Tests pass a fresh
// prometheus.NewRegistry() so recorders can be built more than once.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		pagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datapull_pages_total",
				Help: "Total number of vendor pages fetched",
			},
			[]string{"vendor", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datapull_retries_total",
				Help: "Total number of retried vendor calls",
			},
			[]string{"vendor"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datapull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"kind"},
		),
		coercionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datapull_coercion_failures_total",
				Help: "Values that could not be coerced to their declared type",
			},
			[]string{"vendor"},
		),
		rowsReturned: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datapull_rows_returned",
				Help:    "Rows in the canonical table returned per query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"vendor"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datapull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPage records one fetched page.
func (r *Recorder) RecordPage(vendor, endpoint string) {
	r.pagesTotal.WithLabelValues(vendor, endpoint).Inc()
}

// RecordRetry records one retried call.
func (r *Recorder) RecordRetry(vendor string) {
	r.retriesTotal.WithLabelValues(vendor).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCoercionFailures adds n failed coercions.
func (r *Recorder) RecordCoercionFailures(vendor string, n int) {
	if n > 0 {
		r.coercionFailures.WithLabelValues(vendor).Add(float64(n))
	}
}

// RecordRows observes the size of a returned table.
func (r *Recorder) RecordRows(vendor string, n int) {
	r.rowsReturned.WithLabelValues(vendor).Observe(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
