package gates

import (
	"context"

	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/weights"
)

// FilterGate scores candidates with the statistical filter. The weight
// version is pinned at construction and never reloaded mid-session, so
// every decision in a session is replayable against one known version.
//
// The gate is a precision booster, not a primary risk control: low
// confidence is insufficient evidence, not evidence against, so it
// approves or abstains but never rejects.
type FilterGate struct {
	version   weights.Version
	threshold float64
}

// NewFilterGate pins the given weight version for the session.
func NewFilterGate(v weights.Version, threshold float64) *FilterGate {
	return &FilterGate{version: v, threshold: threshold}
}

func (g *FilterGate) Name() string   { return GateFilter }
func (g *FilterGate) Blocking() bool { return false }

// WeightsVersion returns the pinned version ID recorded on decisions.
func (g *FilterGate) WeightsVersion() string { return g.version.ID() }

func (g *FilterGate) Evaluate(_ context.Context, c domain.Candidate, _ []domain.GateResult) domain.GateResult {
	return guarded(GateFilter, c, false, func() domain.GateResult {
		if !c.Side.IsEntry() {
			return domain.Approve(GateFilter, c.ID, 0)
		}
		filterScore, ok := c.FilterScore.Value()
		if !ok {
			return domain.Abstain(GateFilter, c.ID, domain.ReasonSignalUnavailable)
		}
		confidence := g.version.Score(map[string]float64{
			"momentum":  c.MomentumScore.ValueOr(0),
			"filter":    filterScore,
			"sentiment": c.SentimentScore.ValueOr(0),
		})
		if confidence < g.threshold {
			return domain.Abstain(GateFilter, c.ID, domain.ReasonLowConfidence)
		}
		return domain.Approve(GateFilter, c.ID, confidence)
	})
}
