package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the processor's prometheus collectors. All fields are
// registered against the registerer handed to NewMetrics.
type Metrics struct {
	Processed *prometheus.CounterVec
	Duration  prometheus.Histogram
	Depth     *prometheus.GaugeVec
}

// Outcome label values for the Processed counter.
const (
	OutcomeSuccess     = "success"
	OutcomeToolFailure = "tool_failure"
	OutcomeMalformed   = "malformed"
	OutcomeError       = "error"
)

// NewMetrics builds and registers the processor collectors. A nil
// registerer skips registration, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engram",
			Subsystem: "queue",
			Name:      "requests_total",
			Help:      "Requests processed, labeled by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "engram",
			Subsystem: "queue",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 11),
		}),
		Depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "engram",
			Subsystem: "queue",
			Name:      "directory_depth",
			Help:      "Files currently present per queue directory.",
		}, []string{"dir"}),
	}

	if reg != nil {
		reg.MustRegister(m.Processed, m.Duration, m.Depth)
	}
	return m
}
