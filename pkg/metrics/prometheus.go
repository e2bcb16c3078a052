package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	queryDuration *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		queryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketlens_query_duration_seconds",
				Help:    "Duration of query engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketlens_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketlens_cache_hits_total",
				Help: "Response cache hits",
			},
			[]string{"kind"},
		),
		cacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketlens_cache_misses_total",
				Help: "Response cache misses",
			},
			[]string{"kind"},
		),
	}
}

// RecordQuery records operation latency in seconds.
func (r *Recorder) RecordQuery(op string, seconds float64) {
	r.queryDuration.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordCacheHit(kind string) {
	r.cacheHits.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordCacheMiss(kind string) {
	r.cacheMisses.WithLabelValues(kind).Inc()
}

// Nop discards everything. Used when metrics are disabled and in tests.
type Nop struct{}

func (Nop) RecordQuery(string, float64) {}
func (Nop) RecordError(string)          {}
func (Nop) RecordCacheHit(string)       {}
func (Nop) RecordCacheMiss(string)      {}
