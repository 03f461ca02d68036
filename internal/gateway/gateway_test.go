package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/risk"
)

func newTestGateway(t *testing.T) (*Gateway, *risk.Governor, *audit.MemorySink) {
	t.Helper()
	sink := audit.NewMemorySink()
	recorder := audit.NewRecorder(0, sink)

	riskCfg := config.Default().Risk
	riskCfg.SnapshotPath = t.TempDir() + "/risk.json"
	gov, err := risk.NewGovernor(riskCfg, recorder, risk.NewFileSnapshotStore(riskCfg.SnapshotPath), 100000)
	require.NoError(t, err)

	gw := New(config.Default().Gateway, gov, NewMemoryLocker(), recorder, nil)
	return gw, gov, sink
}

func approvedDecision(symbol string, notional float64) domain.Decision {
	c := domain.NewCandidate(symbol, domain.SideBuy, notional)
	return domain.Decision{
		CandidateID:      c.ID,
		Symbol:           symbol,
		Side:             domain.SideBuy,
		FinalVerdict:     domain.VerdictApprove,
		ApprovedNotional: notional,
		WeightsVersion:   "v1",
		CreatedAt:        time.Now().UTC(),
	}
}

func TestAdmitApproves(t *testing.T) {
	gw, _, sink := newTestGateway(t)

	spec, reason := gw.Admit(context.Background(), approvedDecision("BTC-USD", 2000))
	require.Equal(t, ReasonNone, reason)
	assert.NotEmpty(t, spec.OrderID)
	assert.Equal(t, 2000.0, spec.Notional)

	verdicts := sink.OfType(audit.EventGatewayVerdict)
	require.Len(t, verdicts, 1)
}

func TestAdmitRejectsSizeOutlier(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	// 15x the configured 1000 baseline with a 10x limit.
	_, reason := gw.Admit(context.Background(), approvedDecision("BTC-USD", 15000))
	assert.Equal(t, ReasonSizeOutlier, reason)
}

func TestAdmitRejectsUnapprovedDecision(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	d := approvedDecision("BTC-USD", 2000)
	d.FinalVerdict = domain.VerdictReject
	_, reason := gw.Admit(context.Background(), d)
	assert.Equal(t, ReasonNotApproved, reason)

	d = approvedDecision("BTC-USD", 0)
	_, reason = gw.Admit(context.Background(), d)
	assert.Equal(t, ReasonZeroNotional, reason)
}

func TestAdmitRejectsUnderHaltHard(t *testing.T) {
	gw, gov, _ := newTestGateway(t)
	gov.KillSwitch(context.Background(), "test")

	_, reason := gw.Admit(context.Background(), approvedDecision("BTC-USD", 2000))
	assert.Equal(t, ReasonRiskHalt, reason)
}

func TestAdmitDeduplicatesWithinWindow(t *testing.T) {
	gw, _, _ := newTestGateway(t)
	ctx := context.Background()

	first, reason := gw.Admit(ctx, approvedDecision("BTC-USD", 2000))
	require.Equal(t, ReasonNone, reason)
	require.NotEmpty(t, first.OrderID)

	// Same symbol+side inside the window: exactly one approved order.
	_, reason = gw.Admit(ctx, approvedDecision("BTC-USD", 2000))
	assert.Equal(t, ReasonDuplicate, reason)

	// A different symbol is its own key.
	_, reason = gw.Admit(ctx, approvedDecision("ETH-USD", 2000))
	assert.Equal(t, ReasonNone, reason)
}

func TestAdmitSessionWindow(t *testing.T) {
	cfg := config.Default().Gateway
	cfg.SessionStart = "00:00"
	cfg.SessionEnd = "00:00" // zero-length window: always closed
	gw := New(cfg, nil, NewMemoryLocker(), nil, nil)

	_, reason := gw.Admit(context.Background(), approvedDecision("BTC-USD", 2000))
	assert.Equal(t, ReasonSessionClosed, reason)
}

func TestMemoryLockerExpiry(t *testing.T) {
	l := NewMemoryLocker()
	base := time.Now()
	l.now = func() time.Time { return base }

	ok, err := l.TryAcquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = l.TryAcquire(context.Background(), "k", time.Minute)
	assert.False(t, ok)

	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	ok, _ = l.TryAcquire(context.Background(), "k", time.Minute)
	assert.True(t, ok, "expired lock must be reacquirable")
}
