package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts lifecycle activity. A nil *Metrics records nothing.
type Metrics struct {
	transitions   *prometheus.CounterVec
	gatewayErrors *prometheus.CounterVec
	badSignatures prometheus.Counter
	sweepExpired  prometheus.Counter
	sweepWarned   prometheus.Counter
	duplicatePaid prometheus.Counter
	compensations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "subscription",
			Name:      "transitions_total",
			Help:      "Committed subscription transitions by event and target status",
		}, []string{"event", "to"}),
		gatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "gateway",
			Name:      "errors_total",
			Help:      "Gateway call failures by operation and class",
		}, []string{"op", "class"}),
		badSignatures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "payment",
			Name:      "signature_failures_total",
			Help:      "Payment confirmations rejected for an invalid signature",
		}),
		sweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "sweeper",
			Name:      "expired_total",
			Help:      "Subscriptions expired by the reconciliation sweeper",
		}),
		sweepWarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "sweeper",
			Name:      "trial_warnings_total",
			Help:      "Trial ending warnings emitted by the reconciliation sweeper",
		}),
		duplicatePaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "payment",
			Name:      "duplicate_confirmations_total",
			Help:      "Payment confirmations ignored because the payment was already applied",
		}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "subscription",
			Name:      "compensations_total",
			Help:      "Local compensations applied after a remote call failed or diverged",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.gatewayErrors, m.badSignatures,
			m.sweepExpired, m.sweepWarned, m.duplicatePaid, m.compensations)
	}
	return m
}

func (m *Metrics) transition(event Event, to Status) {
	if m != nil {
		m.transitions.WithLabelValues(string(event), string(to)).Inc()
	}
}

func (m *Metrics) gatewayError(op string, err error) {
	if m == nil {
		return
	}
	class := "rejected"
	switch {
	case IsRetryable(err):
		class = "unavailable"
	case isGone(err):
		class = "gone"
	}
	m.gatewayErrors.WithLabelValues(op, class).Inc()
}

func (m *Metrics) badSignature() {
	if m != nil {
		m.badSignatures.Inc()
	}
}

func (m *Metrics) duplicatePayment() {
	if m != nil {
		m.duplicatePaid.Inc()
	}
}

func (m *Metrics) compensation(reason string) {
	if m != nil {
		m.compensations.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) swept(expired, warned int) {
	if m != nil {
		m.sweepExpired.Add(float64(expired))
		m.sweepWarned.Add(float64(warned))
	}
}
