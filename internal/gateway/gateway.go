// Package gateway implements the final, independent admission check
// executed immediately before order submission. It re-validates from
// first principles instead of trusting upstream output, and fails
// closed: any internal fault is a rejection, never a pass-through.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/metrics"
	"github.com/marketops/tradegate/internal/risk"
)

// Reason is the structured rejection enum callers branch on.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotApproved   Reason = "not_approved"
	ReasonSizeOutlier   Reason = "size_outlier"
	ReasonZeroNotional  Reason = "zero_notional"
	ReasonRiskHalt      Reason = "risk_halt"
	ReasonSessionClosed Reason = "session_closed"
	ReasonDuplicate     Reason = "duplicate_submission"
	ReasonInternal      Reason = "internal_error"
)

// OrderSpec is the finalized order handed to the execution client.
type OrderSpec struct {
	OrderID     string      `json:"order_id"`
	CandidateID string      `json:"candidate_id"`
	Symbol      string      `json:"symbol"`
	Side        domain.Side `json:"side"`
	Notional    float64     `json:"notional"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Verdict is the gateway's audit payload.
type Verdict struct {
	CandidateID string    `json:"candidate_id"`
	Approved    bool      `json:"approved"`
	Reason      Reason    `json:"reason,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
	Notional    float64   `json:"notional"`
	At          time.Time `json:"at"`
}

// Gateway performs the last admission check.
type Gateway struct {
	cfg      config.GatewayConfig
	governor *risk.Governor
	locker   Locker
	recorder *audit.Recorder
	metrics  *metrics.Registry
	now      func() time.Time
}

// New builds the gateway. locker must not be nil; pass NewMemoryLocker()
// when Redis is not configured.
func New(cfg config.GatewayConfig, governor *risk.Governor, locker Locker, recorder *audit.Recorder, m *metrics.Registry) *Gateway {
	if m == nil {
		m = metrics.Nop()
	}
	return &Gateway{cfg: cfg, governor: governor, locker: locker, recorder: recorder, metrics: m, now: time.Now}
}

// Admit re-validates the decision and either returns a finalized order
// spec or a structured rejection reason. Never returns an error to the
// caller: every failure mode maps to a Reason.
func (g *Gateway) Admit(ctx context.Context, d domain.Decision) (spec OrderSpec, reason Reason) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("candidate", d.CandidateID).
				Msg("gateway panic, failing closed")
			spec, reason = OrderSpec{}, ReasonInternal
		}
		if reason != ReasonNone {
			g.metrics.GatewayRejections.WithLabelValues(string(reason)).Inc()
		}
		g.audit(ctx, d, spec, reason)
	}()

	if !d.Approved() {
		return OrderSpec{}, ReasonNotApproved
	}
	if d.ApprovedNotional <= 0 {
		return OrderSpec{}, ReasonZeroNotional
	}
	if d.ApprovedNotional > g.cfg.ExpectedNotional*g.cfg.OutlierMultiplier {
		// Orders far beyond the baseline are almost certainly a sizing
		// bug somewhere upstream, not a genuine opportunity.
		log.Error().Str("candidate", d.CandidateID).
			Float64("notional", d.ApprovedNotional).
			Float64("baseline", g.cfg.ExpectedNotional).
			Msg("gateway rejected size outlier")
		return OrderSpec{}, ReasonSizeOutlier
	}

	// Independent tier read; upstream approval means nothing here.
	if g.governor != nil && g.governor.Tier() == risk.TierHaltHard {
		return OrderSpec{}, ReasonRiskHalt
	}

	if !g.sessionOpen() {
		return OrderSpec{}, ReasonSessionClosed
	}

	key := g.dedupKey(d)
	ok, err := g.locker.TryAcquire(ctx, key, g.cfg.DedupWindow)
	if err != nil {
		// Cannot prove this is not a duplicate: fail closed.
		log.Error().Err(err).Str("key", key).Msg("dedup lock unavailable, failing closed")
		return OrderSpec{}, ReasonInternal
	}
	if !ok {
		return OrderSpec{}, ReasonDuplicate
	}

	return OrderSpec{
		OrderID:     uuid.New().String(),
		CandidateID: d.CandidateID,
		Symbol:      d.Symbol,
		Side:        d.Side,
		Notional:    d.ApprovedNotional,
		CreatedAt:   g.now().UTC(),
	}, ReasonNone
}

// dedupKey buckets submissions by symbol, side and dedup-window slot so
// retries of the same logical order collide on one key.
func (g *Gateway) dedupKey(d domain.Decision) string {
	bucket := g.now().UTC().Truncate(g.cfg.DedupWindow).Unix()
	return fmt.Sprintf("%s|%s|%d", d.Symbol, d.Side, bucket)
}

// sessionOpen checks the configured UTC trading window. An empty window
// means always open.
func (g *Gateway) sessionOpen() bool {
	if g.cfg.SessionStart == "" || g.cfg.SessionEnd == "" {
		return true
	}
	start, err1 := time.Parse("15:04", g.cfg.SessionStart)
	end, err2 := time.Parse("15:04", g.cfg.SessionEnd)
	if err1 != nil || err2 != nil {
		// Misconfigured window: fail closed.
		return false
	}
	now := g.now().UTC()
	minutes := now.Hour()*60 + now.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	if s <= e {
		return minutes >= s && minutes < e
	}
	// Window wraps midnight.
	return minutes >= s || minutes < e
}

func (g *Gateway) audit(ctx context.Context, d domain.Decision, spec OrderSpec, reason Reason) {
	if g.recorder == nil {
		return
	}
	v := Verdict{
		CandidateID: d.CandidateID,
		Approved:    reason == ReasonNone,
		Reason:      reason,
		OrderID:     spec.OrderID,
		Notional:    spec.Notional,
		At:          g.now().UTC(),
	}
	if _, err := g.recorder.Record(ctx, audit.EventGatewayVerdict, d.Symbol, d.CandidateID, v); err != nil {
		log.Error().Err(err).Str("candidate", d.CandidateID).Msg("gateway verdict audit failed")
	}
}
