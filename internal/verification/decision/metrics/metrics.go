package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Applied actions by action and outcome ("applied", "noop", "failed")
	ActionOutcome *prometheus.CounterVec

	// Email delivery results by outcome ("sent", "failed", "skipped")
	EmailOutcome *prometheus.CounterVec

	// Overall Apply latency
	ApplyLatency prometheus.Histogram
}

// New creates a Metrics instance with all decision module metrics registered.
func New() *Metrics {
	return &Metrics{
		ActionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_decision_actions_total",
			Help: "Total decision actions by action and outcome",
		}, []string{"action", "outcome"}),

		EmailOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_decision_emails_total",
			Help: "Total decision notification attempts by outcome",
		}, []string{"outcome"}),

		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veriflow_decision_apply_duration_seconds",
			Help:    "Duration of decision application including side effects",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementAction records a decision action result.
func (m *Metrics) IncrementAction(action, outcome string) {
	if m != nil {
		m.ActionOutcome.WithLabelValues(action, outcome).Inc()
	}
}

// IncrementEmail records a notification attempt result.
func (m *Metrics) IncrementEmail(outcome string) {
	if m != nil {
		m.EmailOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveApplyLatency records the total Apply duration.
func (m *Metrics) ObserveApplyLatency(d time.Duration) {
	if m != nil {
		m.ApplyLatency.Observe(d.Seconds())
	}
}
