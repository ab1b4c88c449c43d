package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type outcome string

const (
	outcomeIndexed           outcome = "indexed"
	outcomeFailed            outcome = "failed"
	outcomeMalformed         outcome = "malformed"
	outcomeContractViolation outcome = "contract_violation"
	outcomeTerminal          outcome = "terminal"
	outcomeLost              outcome = "lost"
)

type Metrics struct {
	events   *prometheus.CounterVec
	lastSeq  prometheus.Gauge
	duration prometheus.Histogram
}

// NewMetrics registers the worker collectors on reg. A nil reg uses a
// private registry, which keeps tests independent of the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reviewstats",
			Subsystem: "worker",
			Name:      "events_total",
			Help:      "Review events handled, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		lastSeq: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "reviewstats",
			Subsystem: "worker",
			Name:      "event_seq",
			Help:      "Sequence number of the last event taken off the stream.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reviewstats",
			Subsystem: "worker",
			Name:      "event_duration_seconds",
			Help:      "Time spent enriching and indexing one event.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observe(eventType string, o outcome) {
	m.events.WithLabelValues(eventType, string(o)).Inc()
}
