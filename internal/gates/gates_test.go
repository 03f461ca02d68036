package gates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/risk"
	"github.com/marketops/tradegate/internal/signals"
	"github.com/marketops/tradegate/internal/weights"
)

func entryCandidate(momentum, filter, sentiment domain.Signal) domain.Candidate {
	c := domain.NewCandidate("BTC-USD", domain.SideBuy, 1000)
	c.MomentumScore = momentum
	c.FilterScore = filter
	c.SentimentScore = sentiment
	return c
}

func TestMomentumGate(t *testing.T) {
	g := NewMomentumGate(0.5, true)
	ctx := context.Background()

	res := g.Evaluate(ctx, entryCandidate(domain.Present(0.8), domain.Present(0.5), domain.Present(0)), nil)
	assert.Equal(t, domain.VerdictApprove, res.Verdict)
	assert.Equal(t, 0.8, res.Contribution)

	res = g.Evaluate(ctx, entryCandidate(domain.Present(0.3), domain.Present(0.5), domain.Present(0)), nil)
	assert.Equal(t, domain.VerdictReject, res.Verdict)
	assert.Equal(t, domain.ReasonBelowThreshold, res.ReasonCode)

	res = g.Evaluate(ctx, entryCandidate(domain.Missing("provider_down"), domain.Present(0.5), domain.Present(0)), nil)
	assert.Equal(t, domain.VerdictAbstain, res.Verdict)
	assert.Equal(t, domain.ReasonSignalUnavailable, res.ReasonCode)
}

func TestMomentumGatePassesExits(t *testing.T) {
	g := NewMomentumGate(0.5, true)
	c := domain.NewCandidate("BTC-USD", domain.SideExit, 1000)
	c.MomentumScore = domain.Missing("provider_down")
	res := g.Evaluate(context.Background(), c, nil)
	assert.Equal(t, domain.VerdictApprove, res.Verdict)
}

func TestFilterGateNeverRejects(t *testing.T) {
	g := NewFilterGate(weights.Bootstrap(), 0.6)
	ctx := context.Background()

	// Strong inputs: approve with confidence.
	res := g.Evaluate(ctx, entryCandidate(domain.Present(0.9), domain.Present(0.9), domain.Present(0.5)), nil)
	require.Equal(t, domain.VerdictApprove, res.Verdict)
	assert.GreaterOrEqual(t, res.Contribution, 0.6)

	// Weak inputs: low confidence is insufficient evidence, not
	// evidence against.
	res = g.Evaluate(ctx, entryCandidate(domain.Present(-0.9), domain.Present(-0.9), domain.Present(-0.5)), nil)
	assert.Equal(t, domain.VerdictAbstain, res.Verdict)
	assert.Equal(t, domain.ReasonLowConfidence, res.ReasonCode)

	// Missing filter input: abstain, never reject.
	res = g.Evaluate(ctx, entryCandidate(domain.Present(0.9), domain.Missing("stale"), domain.Present(0)), nil)
	assert.Equal(t, domain.VerdictAbstain, res.Verdict)
	assert.Equal(t, domain.ReasonSignalUnavailable, res.ReasonCode)
}

func TestFilterGateVersionPinned(t *testing.T) {
	v := weights.Bootstrap()
	v.Number = 7
	g := NewFilterGate(v, 0.6)
	assert.Equal(t, "v7", g.WeightsVersion())
}

type stubProvider struct {
	snap  signals.Snapshot
	delay time.Duration
}

func (p *stubProvider) GetSignals(ctx context.Context, symbol string) (signals.Snapshot, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return signals.Unavailable(symbol, "provider_timeout"), nil
		case <-time.After(p.delay):
		}
	}
	return p.snap, nil
}

func TestSentimentGateAdvisoryOnly(t *testing.T) {
	g := NewSentimentGate(-0.2, 0.5, time.Second, nil)
	ctx := context.Background()

	// Healthy sentiment: full size.
	res := g.Evaluate(ctx, entryCandidate(domain.Present(0.8), domain.Present(0.5), domain.Present(0.4)), nil)
	require.Equal(t, domain.VerdictApprove, res.Verdict)
	assert.Equal(t, 1.0, res.Contribution)

	// Sour sentiment shrinks, never rejects.
	res = g.Evaluate(ctx, entryCandidate(domain.Present(0.8), domain.Present(0.5), domain.Present(-0.9)), nil)
	require.Equal(t, domain.VerdictApprove, res.Verdict)
	assert.Equal(t, 0.5, res.Contribution)
	assert.Equal(t, "sentiment_shrink", res.ReasonCode)

	// Missing sentiment with no live source: abstain.
	res = g.Evaluate(ctx, entryCandidate(domain.Present(0.8), domain.Present(0.5), domain.Missing("stale")), nil)
	assert.Equal(t, domain.VerdictAbstain, res.Verdict)
}

func TestSentimentGateTimeoutAbstains(t *testing.T) {
	slow := &stubProvider{
		snap:  signals.Snapshot{Sentiment: domain.Present(0.9)},
		delay: 200 * time.Millisecond,
	}
	g := NewSentimentGate(-0.2, 0.5, 10*time.Millisecond, slow)

	res := g.Evaluate(context.Background(),
		entryCandidate(domain.Present(0.8), domain.Present(0.5), domain.Missing("not_fetched")), nil)
	assert.Equal(t, domain.VerdictAbstain, res.Verdict)
	assert.Equal(t, domain.ReasonSignalUnavailable, res.ReasonCode)
}

func TestSentimentGateLiveRefetch(t *testing.T) {
	live := &stubProvider{snap: signals.Snapshot{Sentiment: domain.Present(0.4)}}
	g := NewSentimentGate(-0.2, 0.5, time.Second, live)

	res := g.Evaluate(context.Background(),
		entryCandidate(domain.Present(0.8), domain.Present(0.5), domain.Missing("not_fetched")), nil)
	assert.Equal(t, domain.VerdictApprove, res.Verdict)
	assert.Equal(t, 1.0, res.Contribution)
}

type stubStats struct {
	in risk.SizingInputs
}

func (s *stubStats) Stats(_ context.Context, _ string) risk.SizingInputs { return s.in }

func newGovernor(t *testing.T) *risk.Governor {
	t.Helper()
	cfg := config.Default().Risk
	cfg.SnapshotPath = t.TempDir() + "/risk.json"
	g, err := risk.NewGovernor(cfg, nil, risk.NewFileSnapshotStore(cfg.SnapshotPath), 100000)
	require.NoError(t, err)
	return g
}

func TestRiskSizingGateApprovesWithCap(t *testing.T) {
	gov := newGovernor(t)
	stats := &stubStats{in: risk.SizingInputs{
		WinRate:     domain.Present(0.62),
		PayoffRatio: domain.Present(1.5),
	}}
	g := NewRiskSizingGate(gov, stats, true)

	// Request far more than the cap allows; the contribution is the
	// governor's number, not the request.
	c := domain.NewCandidate("BTC-USD", domain.SideBuy, 1e9)
	res := g.Evaluate(context.Background(), c, nil)
	require.Equal(t, domain.VerdictApprove, res.Verdict)
	assert.LessOrEqual(t, res.Contribution, 100000*config.Default().Risk.SizingCapFraction)
	assert.Greater(t, res.Contribution, 0.0)
}

func TestRiskSizingGateZeroSizeRejects(t *testing.T) {
	gov := newGovernor(t)
	stats := &stubStats{in: risk.SizingInputs{
		WinRate:     domain.Missing("no_history"),
		PayoffRatio: domain.Missing("no_history"),
	}}
	g := NewRiskSizingGate(gov, stats, true)

	res := g.Evaluate(context.Background(), domain.NewCandidate("BTC-USD", domain.SideBuy, 1000), nil)
	assert.Equal(t, domain.VerdictReject, res.Verdict)
	assert.Equal(t, domain.ReasonZeroSize, res.ReasonCode)
}

func TestRiskSizingGateHaltSoftBlocksEntriesAllowsExits(t *testing.T) {
	gov := newGovernor(t)
	ctx := context.Background()
	gov.RecordOutcome(ctx, "BTC-USD", -3500) // trips HALT_SOFT
	require.Equal(t, risk.TierHaltSoft, gov.Tier())

	stats := &stubStats{in: risk.SizingInputs{
		WinRate:     domain.Present(0.62),
		PayoffRatio: domain.Present(1.5),
	}}
	g := NewRiskSizingGate(gov, stats, true)

	entry := g.Evaluate(ctx, domain.NewCandidate("BTC-USD", domain.SideBuy, 1000), nil)
	assert.Equal(t, domain.VerdictReject, entry.Verdict)
	assert.Equal(t, domain.ReasonRiskHalt, entry.ReasonCode)

	exit := g.Evaluate(ctx, domain.NewCandidate("BTC-USD", domain.SideExit, 1000), nil)
	assert.Equal(t, domain.VerdictApprove, exit.Verdict)
	assert.Equal(t, 1000.0, exit.Contribution)
}
