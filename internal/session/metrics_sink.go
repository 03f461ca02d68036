package session

import (
	"context"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/metrics"
	"github.com/marketops/tradegate/internal/risk"
)

// metricsSink mirrors risk transitions from the audit stream into
// Prometheus, so operator resets and kill switches move the gauges the
// same way automatic transitions do.
type metricsSink struct {
	m *metrics.Registry
}

func (s *metricsSink) Append(_ context.Context, ev audit.Event) error {
	if ev.Type != audit.EventRiskTransition {
		return nil
	}
	var tr risk.Transition
	if err := ev.Decode(&tr); err != nil {
		return nil
	}
	s.m.TierTransitions.WithLabelValues(tr.To.String()).Inc()
	s.m.RiskTier.Set(float64(tr.To))
	return nil
}

func (s *metricsSink) Close() error { return nil }
