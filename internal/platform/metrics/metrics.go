package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the intake-side Prometheus metrics. Decision metrics live in
// the decision module's own metrics package.
type Metrics struct {
	// Submission outcomes: "created", "reused", "deduped", "ignored", "failed"
	SubmissionOutcome *prometheus.CounterVec

	// Vouch handoffs triggered instead of admin notification
	VouchHandoffs prometheus.Counter
}

// New creates and registers all intake metrics.
func New() *Metrics {
	return &Metrics{
		SubmissionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_intake_submissions_total",
			Help: "Total form submissions processed by intake, by outcome",
		}, []string{"outcome"}),

		VouchHandoffs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veriflow_intake_vouch_handoffs_total",
			Help: "Total submissions delegated to the external vouching flow",
		}),
	}
}

// IncrementSubmission records one intake outcome.
func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.SubmissionOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementVouchHandoff records a vouch delegation.
func (m *Metrics) IncrementVouchHandoff() {
	if m != nil {
		m.VouchHandoffs.Inc()
	}
}
