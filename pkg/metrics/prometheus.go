package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastMedian  *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foliosim_runs_total",
				Help: "Total number of completed simulation runs",
			},
			[]string{"mode"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foliosim_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastMedian: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "foliosim_last_median_final_value",
				Help: "Median final value of the most recent run",
			},
			[]string{"mode"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foliosim_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRun records a completed run in the given withdrawal mode.
func (r *Recorder) RecordRun(mode string) {
	r.runsTotal.WithLabelValues(mode).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastMedian records the median final value of the latest run.
func (r *Recorder) RecordLastMedian(mode string, value float64) {
	r.lastMedian.WithLabelValues(mode).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
