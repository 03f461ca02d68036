package gates

import (
	"context"

	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/risk"
)

// StatsProvider supplies the per-symbol trade statistics the sizing
// formula needs. Implementations may report absent statistics for
// symbols without history; sizing then resolves to zero.
type StatsProvider interface {
	Stats(ctx context.Context, symbol string) risk.SizingInputs
}

// RiskSizingGate is the last, blocking stage: it asks the governor
// whether the tier admits this trade at all, and what it may be worth.
// The governor's answer overrides anything upstream gates suggested.
type RiskSizingGate struct {
	governor *risk.Governor
	stats    StatsProvider
	blocking bool
}

// NewRiskSizingGate wires the gate to the governor and a stats source.
func NewRiskSizingGate(governor *risk.Governor, stats StatsProvider, blocking bool) *RiskSizingGate {
	return &RiskSizingGate{governor: governor, stats: stats, blocking: blocking}
}

func (g *RiskSizingGate) Name() string   { return GateRiskSizing }
func (g *RiskSizingGate) Blocking() bool { return g.blocking }

// Evaluate rejects under halt tiers and otherwise contributes the
// governor's per-trade notional cap.
func (g *RiskSizingGate) Evaluate(ctx context.Context, c domain.Candidate, _ []domain.GateResult) domain.GateResult {
	return guarded(GateRiskSizing, c, g.blocking, func() domain.GateResult {
		tier := g.governor.Tier()

		if c.Side.IsEntry() {
			if !tier.AllowsEntry() {
				return domain.Reject(GateRiskSizing, c.ID, domain.ReasonRiskHalt)
			}
		} else {
			if !tier.AllowsExit() {
				return domain.Reject(GateRiskSizing, c.ID, domain.ReasonRiskHalt)
			}
			// Exits are not re-sized; closing risk is always allowed in full.
			return domain.Approve(GateRiskSizing, c.ID, c.NotionalRequested)
		}

		var in risk.SizingInputs
		if g.stats != nil {
			in = g.stats.Stats(ctx, c.Symbol)
		} else {
			in = risk.SizingInputs{
				WinRate:     domain.Missing("no_stats_provider"),
				PayoffRatio: domain.Missing("no_stats_provider"),
			}
		}

		sizing := g.governor.PositionSize(in)
		if sizing.Notional <= 0 {
			return domain.Reject(GateRiskSizing, c.ID, domain.ReasonZeroSize)
		}

		allowed := sizing.Notional
		if c.NotionalRequested > 0 && c.NotionalRequested < allowed {
			allowed = c.NotionalRequested
		}
		return domain.Approve(GateRiskSizing, c.ID, allowed)
	})
}
