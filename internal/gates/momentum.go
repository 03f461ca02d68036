package gates

import (
	"context"

	"github.com/marketops/tradegate/internal/domain"
)

// MomentumGate is the first, blocking stage: it requires a present
// momentum score at or above the configured threshold. Exits skip the
// threshold check: momentum decides what to enter, not what to leave.
type MomentumGate struct {
	threshold float64
	blocking  bool
}

// NewMomentumGate builds the gate with the minimum passing score.
func NewMomentumGate(threshold float64, blocking bool) *MomentumGate {
	return &MomentumGate{threshold: threshold, blocking: blocking}
}

func (g *MomentumGate) Name() string   { return GateMomentum }
func (g *MomentumGate) Blocking() bool { return g.blocking }

func (g *MomentumGate) Evaluate(_ context.Context, c domain.Candidate, _ []domain.GateResult) domain.GateResult {
	return guarded(GateMomentum, c, g.blocking, func() domain.GateResult {
		if !c.Side.IsEntry() {
			return domain.Approve(GateMomentum, c.ID, 0)
		}
		score, ok := c.MomentumScore.Value()
		if !ok {
			return domain.Abstain(GateMomentum, c.ID, domain.ReasonSignalUnavailable)
		}
		if score < g.threshold {
			return domain.Reject(GateMomentum, c.ID, domain.ReasonBelowThreshold)
		}
		return domain.Approve(GateMomentum, c.ID, score)
	})
}
