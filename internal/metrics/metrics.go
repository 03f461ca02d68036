// Package metrics holds the Prometheus instrumentation for the
// admission pipeline, risk governor and trade gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all tradegate metrics.
type Registry struct {
	GateVerdicts      *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	DecisionDuration  prometheus.Histogram
	RiskTier          prometheus.Gauge
	TierTransitions   *prometheus.CounterVec
	GatewayRejections *prometheus.CounterVec
	ExecutionRetries  prometheus.Counter
	CoolDownsActive   prometheus.Gauge
}

// NewRegistry creates the metric set registered on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		GateVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_gate_verdicts_total",
				Help: "Gate verdicts by gate name and verdict",
			},
			[]string{"gate", "verdict"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_decisions_total",
				Help: "Final pipeline decisions by verdict",
			},
			[]string{"verdict"},
		),
		DecisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradegate_decision_duration_seconds",
				Help:    "End-to-end candidate evaluation duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		RiskTier: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradegate_risk_tier",
				Help: "Current risk tier (0=NORMAL 1=WARNING 2=HALT_SOFT 3=HALT_HARD)",
			},
		),
		TierTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_risk_transitions_total",
				Help: "Risk tier transitions by target tier",
			},
			[]string{"to"},
		),
		GatewayRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_gateway_rejections_total",
				Help: "Trade gateway rejections by reason",
			},
			[]string{"reason"},
		),
		ExecutionRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradegate_execution_retries_total",
				Help: "Order submission retry attempts",
			},
		),
		CoolDownsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradegate_cooldowns_active",
				Help: "Symbols currently in signal-unavailable cooldown",
			},
		),
	}

	reg.MustRegister(
		r.GateVerdicts, r.Decisions, r.DecisionDuration,
		r.RiskTier, r.TierTransitions, r.GatewayRejections,
		r.ExecutionRetries, r.CoolDownsActive,
	)
	return r
}

// Nop returns a registry backed by an unexported registerer, for tests
// and tools that do not scrape.
func Nop() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
