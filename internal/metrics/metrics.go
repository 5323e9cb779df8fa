// Package metrics records operation outcomes for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts operations by outcome and tracks their latency.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
// A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gossh",
				Name:      "operations_total",
				Help:      "Total number of remote operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gossh",
				Name:      "operation_duration_seconds",
				Help:      "Duration of remote operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"operation"},
		),
	}

	if reg != nil {
		reg.MustRegister(r.operations, r.duration)
	}

	return r
}

// ObserveOperation records one finished operation.
func (r *Recorder) ObserveOperation(operation, outcome string, d time.Duration) {
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.duration.WithLabelValues(operation).Observe(d.Seconds())
}
