package common

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records dependency-service outcomes for the /metrics endpoint.
type Metrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the adapter collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskweaver",
				Subsystem: "dependency",
				Name:      "operations_total",
				Help:      "Dependency service calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskweaver",
				Subsystem: "dependency",
				Name:      "rejections_total",
				Help:      "Rejected graph mutations by error kind.",
			},
			[]string{"kind"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskweaver",
				Subsystem: "dependency",
				Name:      "operation_duration_seconds",
				Help:      "Dependency service call latency.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
	}
}

// observe records one finished call. A nil receiver is a no-op.
func (m *Metrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	kind := ErrorKind(err)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	switch kind {
	case "self_dependency", "duplicate_edge", "invalid_blocker_state", "cycle_detected", "graph_inconsistent":
		m.rejections.WithLabelValues(kind).Inc()
	}
}
