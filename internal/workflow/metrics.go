package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	started     prometheus.Counter
	transitions *prometheus.CounterVec
	finished    *prometheus.CounterVec
	unavailable *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		started: f.NewCounter(prometheus.CounterOpts{
			Namespace: "featureflow",
			Subsystem: "workflow",
			Name:      "started_total",
			Help:      "Total number of workflows started",
		}),
		// Labels: from, to
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "featureflow",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Total number of persisted phase transitions",
		}, []string{"from", "to"}),
		// Labels: outcome (complete, failed, aborted)
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "featureflow",
			Subsystem: "workflow",
			Name:      "finished_total",
			Help:      "Total number of workflows that reached a terminal phase",
		}, []string{"outcome"}),
		unavailable: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "featureflow",
			Subsystem: "reviewer",
			Name:      "unavailable_total",
			Help:      "Total number of failed reviewer availability checks",
		}, []string{"reviewer"}),
	}
}

func (m *Metrics) recordStarted() {
	if m == nil {
		return
	}
	m.started.Inc()
}

func (m *Metrics) recordTransition(from, to Phase) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
	if to.IsTerminal() && from != to {
		m.finished.WithLabelValues(string(to)).Inc()
	}
}

func (m *Metrics) recordUnavailable(name string) {
	if m == nil {
		return
	}
	m.unavailable.WithLabelValues(name).Inc()
}
