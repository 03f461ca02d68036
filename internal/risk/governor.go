package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
)

// Governor owns the risk state. All reads and writes go through its
// mutex so concurrent candidate evaluations never race on equity
// counters or tier transitions.
type Governor struct {
	mu       sync.Mutex
	state    State
	cfg      config.RiskConfig
	recorder *audit.Recorder
	store    SnapshotStore
	now      func() time.Time
}

// NewGovernor restores state from the snapshot store when present,
// otherwise starts a fresh session at startEquity.
func NewGovernor(cfg config.RiskConfig, recorder *audit.Recorder, store SnapshotStore, startEquity float64) (*Governor, error) {
	g := &Governor{cfg: cfg, recorder: recorder, store: store, now: time.Now}

	if store != nil {
		s, ok, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("restore risk state: %w", err)
		}
		if ok {
			g.state = s
			log.Info().Str("tier", s.Tier.String()).
				Float64("equity", s.Equity).Float64("daily_pl", s.DailyPL).
				Msg("risk state restored from snapshot")
			return g, nil
		}
	}

	g.state = State{
		Equity:        startEquity,
		SessionStart:  startEquity,
		HighWaterMark: startEquity,
		Tier:          TierNormal,
		UpdatedAt:     g.now().UTC(),
	}
	g.persistLocked()
	return g, nil
}

// Tier returns the current halt tier. Always a fresh read under the
// lock: callers re-checking before the trade gateway must never see a
// cached value.
func (g *Governor) Tier() Tier {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeRecoverLocked()
	return g.state.Tier
}

// Snapshot returns a copy of the current state, after the same
// recovery check Tier runs so operator views never lag behind it.
func (g *Governor) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maybeRecoverLocked()
	return g.state
}

// StartSession rebaselines the daily P&L window. Does not touch the
// tier: a session roll never silently clears a halt.
func (g *Governor) StartSession(equity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Equity = equity
	g.state.SessionStart = equity
	g.state.DailyPL = 0
	if equity > g.state.HighWaterMark {
		g.state.HighWaterMark = equity
	}
	g.state.UpdatedAt = g.now().UTC()
	g.persistLocked()
}

// RecordOutcome applies a realized trade P&L and runs the tier
// evaluation. Downward transitions happen here, automatically.
func (g *Governor) RecordOutcome(ctx context.Context, symbol string, pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.Equity += pnl
	g.state.DailyPL += pnl
	if pnl < 0 {
		g.state.ConsecutiveLosses++
	} else if pnl > 0 {
		g.state.ConsecutiveLosses = 0
	}
	if g.state.Equity > g.state.HighWaterMark {
		g.state.HighWaterMark = g.state.Equity
	}
	g.state.UpdatedAt = g.now().UTC()

	g.evaluateLocked(ctx)
	g.persistLocked()
}

// evaluateLocked applies the threshold ladder. Only ever escalates;
// recovery is handled separately by cooldown or operator reset.
func (g *Governor) evaluateLocked(ctx context.Context) {
	target := g.state.Tier
	reason := ""

	switch {
	case g.state.DrawdownPct() > g.cfg.DrawdownHardPct:
		target, reason = TierHaltHard, fmt.Sprintf("drawdown %.2f%% > %.2f%%", g.state.DrawdownPct(), g.cfg.DrawdownHardPct)
	case g.state.DailyLossPct() > g.cfg.DailyLossHaltPct:
		target, reason = TierHaltSoft, fmt.Sprintf("daily loss %.2f%% > %.2f%%", g.state.DailyLossPct(), g.cfg.DailyLossHaltPct)
	case g.state.ConsecutiveLosses >= g.cfg.MaxConsecutiveLoss:
		target, reason = TierHaltSoft, fmt.Sprintf("%d consecutive losses", g.state.ConsecutiveLosses)
	case g.state.DailyLossPct() > g.cfg.DailyLossWarnPct:
		target, reason = TierWarning, fmt.Sprintf("daily loss %.2f%% > %.2f%%", g.state.DailyLossPct(), g.cfg.DailyLossWarnPct)
	}

	if target > g.state.Tier {
		g.transitionLocked(ctx, target, reason)
	} else if target > TierNormal {
		// Still breaching at or below the current tier: restart the
		// recovery clock.
		g.state.LastBreachAt = g.now().UTC()
	}
}

// maybeRecoverLocked steps WARNING or HALT_SOFT back to NORMAL once the
// cooldown has elapsed with no further breaches. HALT_HARD never
// recovers on its own: it waits for an operator reset.
func (g *Governor) maybeRecoverLocked() {
	if g.state.Tier == TierNormal || g.state.Tier == TierHaltHard {
		return
	}
	since := g.state.LastBreachAt
	if g.state.LastTransitionAt.After(since) {
		since = g.state.LastTransitionAt
	}
	if g.now().Sub(since) < g.cfg.SoftHaltCooldown {
		return
	}
	from := g.state.Tier
	g.state.Tier = TierNormal
	g.state.ConsecutiveLosses = 0
	g.state.LastTransitionAt = g.now().UTC()
	g.recordTransition(context.Background(), from, TierNormal, "cooldown elapsed without further breaches")
	g.persistLocked()
}

// Reset is the operator escape hatch out of HALT_SOFT or HALT_HARD.
func (g *Governor) Reset(ctx context.Context, operator string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Tier == TierNormal {
		return fmt.Errorf("risk tier already NORMAL")
	}
	from := g.state.Tier
	g.state.Tier = TierNormal
	g.state.ConsecutiveLosses = 0
	g.state.LastTransitionAt = g.now().UTC()
	g.recordTransition(ctx, from, TierNormal, "operator reset by "+operator)
	g.persistLocked()
	return nil
}

// KillSwitch forces HALT_HARD unconditionally.
func (g *Governor) KillSwitch(ctx context.Context, operator string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Tier == TierHaltHard {
		return
	}
	g.transitionLocked(ctx, TierHaltHard, "kill switch by "+operator)
	g.persistLocked()
}

func (g *Governor) transitionLocked(ctx context.Context, to Tier, reason string) {
	from := g.state.Tier
	g.state.Tier = to
	g.state.LastTransitionAt = g.now().UTC()
	g.state.LastBreachAt = g.state.LastTransitionAt
	g.recordTransition(ctx, from, to, reason)
}

func (g *Governor) recordTransition(ctx context.Context, from, to Tier, reason string) {
	tr := Transition{
		From:              from,
		To:                to,
		Reason:            reason,
		DailyLossPct:      g.state.DailyLossPct(),
		DrawdownPct:       g.state.DrawdownPct(),
		ConsecutiveLosses: g.state.ConsecutiveLosses,
		At:                g.now().UTC(),
	}
	log.Warn().Str("from", from.String()).Str("to", to.String()).Str("reason", reason).
		Float64("daily_loss_pct", tr.DailyLossPct).Float64("drawdown_pct", tr.DrawdownPct).
		Msg("risk tier transition")
	if g.recorder != nil {
		if _, err := g.recorder.Record(ctx, audit.EventRiskTransition, "", "", tr); err != nil {
			log.Error().Err(err).Msg("failed to audit risk transition")
		}
	}
}

func (g *Governor) persistLocked() {
	if g.store == nil {
		return
	}
	if err := g.store.Save(g.state); err != nil {
		log.Error().Err(err).Msg("failed to persist risk snapshot")
	}
}
