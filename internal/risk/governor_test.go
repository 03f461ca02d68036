package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
)

func governorWithRecorder(t *testing.T, equity float64) (*Governor, *audit.MemorySink) {
	t.Helper()
	sink := audit.NewMemorySink()
	cfg := config.Default().Risk
	cfg.SnapshotPath = t.TempDir() + "/risk.json"
	g, err := NewGovernor(cfg, audit.NewRecorder(0, sink), NewFileSnapshotStore(cfg.SnapshotPath), equity)
	require.NoError(t, err)
	return g, sink
}

func TestDailyLossEscalation(t *testing.T) {
	g, sink := governorWithRecorder(t, 100000)
	ctx := context.Background()

	require.Equal(t, TierNormal, g.Tier())

	// -2.5% daily: WARNING.
	g.RecordOutcome(ctx, "BTC-USD", -2500)
	assert.Equal(t, TierWarning, g.Tier())

	// Down to -3.5% total: HALT_SOFT.
	g.RecordOutcome(ctx, "BTC-USD", -1000)
	assert.Equal(t, TierHaltSoft, g.Tier())
	assert.True(t, g.Tier().AllowsExit())
	assert.False(t, g.Tier().AllowsEntry())

	transitions := sink.OfType(audit.EventRiskTransition)
	require.Len(t, transitions, 2, "every transition must be audited")
	var first, second Transition
	require.NoError(t, transitions[0].Decode(&first))
	require.NoError(t, transitions[1].Decode(&second))
	assert.Equal(t, TierNormal, first.From)
	assert.Equal(t, TierWarning, first.To)
	assert.Equal(t, TierWarning, second.From)
	assert.Equal(t, TierHaltSoft, second.To)
}

func TestConsecutiveLossesHaltSoft(t *testing.T) {
	g, _ := governorWithRecorder(t, 1000000)
	ctx := context.Background()

	// Three small losses, well inside the daily-loss thresholds.
	g.RecordOutcome(ctx, "ETH-USD", -100)
	g.RecordOutcome(ctx, "ETH-USD", -100)
	assert.Equal(t, TierNormal, g.Tier())
	g.RecordOutcome(ctx, "ETH-USD", -100)
	assert.Equal(t, TierHaltSoft, g.Tier())
}

func TestDrawdownHaltHard(t *testing.T) {
	g, _ := governorWithRecorder(t, 100000)
	ctx := context.Background()

	// Push the high-water mark up, then collapse 11% from it across
	// sessions so the daily-loss ladder is not what trips.
	g.RecordOutcome(ctx, "BTC-USD", 10000) // HWM 110k
	g.StartSession(110000)
	g.RecordOutcome(ctx, "BTC-USD", -12500) // 11.3% drawdown
	assert.Equal(t, TierHaltHard, g.Tier())
	assert.False(t, g.Tier().AllowsExit())
}

func TestTierNeverRecoversSilentlyFromHaltHard(t *testing.T) {
	g, _ := governorWithRecorder(t, 100000)
	ctx := context.Background()

	g.KillSwitch(ctx, "ops")
	require.Equal(t, TierHaltHard, g.Tier())

	// Winning trades do not un-halt.
	g.RecordOutcome(ctx, "BTC-USD", 5000)
	assert.Equal(t, TierHaltHard, g.Tier())

	require.NoError(t, g.Reset(ctx, "ops"))
	assert.Equal(t, TierNormal, g.Tier())
}

func TestSoftHaltCooldownRecovery(t *testing.T) {
	g, _ := governorWithRecorder(t, 100000)
	ctx := context.Background()

	g.RecordOutcome(ctx, "BTC-USD", -3500)
	require.Equal(t, TierHaltSoft, g.Tier())

	// Not yet: cooldown has not elapsed.
	assert.Equal(t, TierHaltSoft, g.Tier())

	g.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	assert.Equal(t, TierNormal, g.Tier())
}

func TestSnapshotAppliesCooldownRecovery(t *testing.T) {
	g, _ := governorWithRecorder(t, 100000)
	ctx := context.Background()

	g.RecordOutcome(ctx, "BTC-USD", -3500)
	require.Equal(t, TierHaltSoft, g.Snapshot().Tier)

	// The operator view must not keep reporting a halt the next Tier
	// read would already have recovered from.
	g.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	assert.Equal(t, TierNormal, g.Snapshot().Tier)
}

func TestResetWhenNormalErrors(t *testing.T) {
	g, _ := governorWithRecorder(t, 100000)
	assert.Error(t, g.Reset(context.Background(), "ops"))
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	sink := audit.NewMemorySink()
	cfg := config.Default().Risk
	cfg.SnapshotPath = t.TempDir() + "/risk.json"
	store := NewFileSnapshotStore(cfg.SnapshotPath)

	g, err := NewGovernor(cfg, audit.NewRecorder(0, sink), store, 100000)
	require.NoError(t, err)
	g.RecordOutcome(context.Background(), "BTC-USD", -3500)
	require.Equal(t, TierHaltSoft, g.Tier())

	// Restart: a fresh governor restores the halt instead of quietly
	// resuming at NORMAL.
	g2, err := NewGovernor(cfg, audit.NewRecorder(0, sink), store, 100000)
	require.NoError(t, err)
	assert.Equal(t, TierHaltSoft, g2.Tier())
	assert.InDelta(t, 96500, g2.Snapshot().Equity, 0.01)
}
