// Package pipeline runs candidates through the ordered admission gates
// and derives the final, auditable decision.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/gates"
	"github.com/marketops/tradegate/internal/metrics"
	"github.com/marketops/tradegate/internal/risk"
)

// Orchestrator evaluates candidates through the fixed gate order
// (momentum, filter, sentiment, then risk/sizing). Candidates for
// different symbols may be evaluated concurrently; the risk governor is
// the single synchronization point.
type Orchestrator struct {
	gates          []gates.Gate
	recorder       *audit.Recorder
	governor       *risk.Governor
	weightsVersion string
	cooldown       *coolDownTracker
	metrics        *metrics.Registry
}

// New builds the orchestrator. The gate slice must already be in
// pipeline order; weightsVersion is the session-pinned filter version
// recorded on every decision.
func New(gs []gates.Gate, recorder *audit.Recorder, governor *risk.Governor, weightsVersion string, cfg config.GatesConfig, m *metrics.Registry) *Orchestrator {
	if m == nil {
		m = metrics.Nop()
	}
	return &Orchestrator{
		gates:          gs,
		recorder:       recorder,
		governor:       governor,
		weightsVersion: weightsVersion,
		cooldown:       newCoolDownTracker(cfg.CoolDownAbstains, cfg.CoolDownWindow),
		metrics:        m,
	}
}

// Evaluate runs one candidate through the pipeline and returns its
// decision. The decision (and every gate result) is flushed to the
// audit log before this returns, so execution can only ever follow a
// persisted trail.
func (o *Orchestrator) Evaluate(ctx context.Context, c domain.Candidate) (domain.Decision, error) {
	start := time.Now()
	defer func() { o.metrics.DecisionDuration.Observe(time.Since(start).Seconds()) }()

	if err := c.Validate(); err != nil {
		log.Warn().Str("symbol", c.Symbol).Err(err).Msg("invalid candidate rejected")
		return o.finish(ctx, c, domain.VerdictReject, domain.ReasonInvalidCandidate, 0, nil)
	}

	if o.cooldown.inCoolDown(c.Symbol) {
		// Short-circuit: no downstream gates run while the symbol cools
		// down from repeated unavailable signals.
		return o.finish(ctx, c, domain.VerdictAbstain, domain.ReasonCoolDown, 0, nil)
	}

	var (
		results       []domain.GateResult
		sizeCap       = c.NotionalRequested
		sentimentMult = 1.0
		unavailable   bool
		riskApproved  bool
		riskReason    string
	)

	verdict := domain.VerdictApprove
	reason := ""

	for _, g := range o.gates {
		res := g.Evaluate(ctx, c, results)
		results = append(results, res)
		o.metrics.GateVerdicts.WithLabelValues(res.GateName, string(res.Verdict)).Inc()

		// Flush synchronously before the next gate so a crash leaves a
		// reconstructable trail.
		if o.recorder != nil {
			if _, err := o.recorder.Record(ctx, audit.EventGateResult, c.Symbol, c.ID, res); err != nil {
				log.Error().Str("gate", res.GateName).Err(err).Msg("gate result audit flush failed")
			}
		}

		switch res.Verdict {
		case domain.VerdictReject:
			if g.Blocking() {
				verdict, reason = domain.VerdictReject, res.ReasonCode
			}
			if res.GateName == gates.GateRiskSizing {
				riskReason = res.ReasonCode
			}
		case domain.VerdictAbstain:
			if res.ReasonCode == domain.ReasonSignalUnavailable {
				unavailable = true
			}
			// Abstaining signal gates leave no affirmative evidence, so
			// the pipeline completes but the candidate is not admitted.
			if verdict == domain.VerdictApprove {
				verdict, reason = domain.VerdictAbstain, res.ReasonCode
			}
		case domain.VerdictApprove:
			switch res.GateName {
			case gates.GateSentiment:
				if res.Contribution > 0 && res.Contribution < sentimentMult {
					sentimentMult = res.Contribution
				}
			case gates.GateRiskSizing:
				riskApproved = true
				if res.Contribution < sizeCap || sizeCap == 0 {
					sizeCap = res.Contribution
				}
			}
		}

		if verdict == domain.VerdictReject && g.Blocking() {
			break
		}
	}

	if unavailable {
		if tripped := o.cooldown.noteUnavailable(c.Symbol); tripped {
			log.Warn().Str("symbol", c.Symbol).Msg("symbol entered signal cool-down")
		}
	} else {
		o.cooldown.noteHealthy(c.Symbol)
	}
	o.metrics.CoolDownsActive.Set(float64(o.cooldown.active()))

	// The notional cap only exists in the risk gate's approval. Without
	// it there is nothing to clamp against, so the candidate cannot be
	// admitted no matter what the gate flags say.
	if verdict == domain.VerdictApprove && !riskApproved {
		if riskReason == "" {
			riskReason = domain.ReasonInternalError
		}
		verdict, reason = domain.VerdictReject, riskReason
	}

	notional := 0.0
	if verdict == domain.VerdictApprove {
		notional = sizeCap * sentimentMult
		// Fresh tier read immediately before the gateway hand-off: a
		// HALT_HARD transition mid-evaluation vetoes an already-approved
		// candidate.
		if o.governor != nil && o.governor.Tier() == risk.TierHaltHard {
			verdict, reason, notional = domain.VerdictReject, domain.ReasonRiskHalt, 0
		}
	}

	return o.finish(ctx, c, verdict, reason, notional, results)
}

// finish assembles, audits and returns the decision.
func (o *Orchestrator) finish(ctx context.Context, c domain.Candidate, verdict domain.Verdict, reason string, notional float64, results []domain.GateResult) (domain.Decision, error) {
	d := domain.Decision{
		CandidateID:      c.ID,
		Symbol:           c.Symbol,
		Side:             c.Side,
		FinalVerdict:     verdict,
		ReasonCode:       reason,
		ApprovedNotional: notional,
		WeightsVersion:   o.weightsVersion,
		GateResults:      results,
		Features: map[string]float64{
			"momentum":  c.MomentumScore.ValueOr(0),
			"filter":    c.FilterScore.ValueOr(0),
			"sentiment": c.SentimentScore.ValueOr(0),
		},
		CreatedAt: time.Now().UTC(),
	}
	o.metrics.Decisions.WithLabelValues(string(verdict)).Inc()

	log.Info().
		Str("symbol", c.Symbol).Str("candidate", c.ID).
		Str("verdict", string(verdict)).Str("reason", reason).
		Float64("notional", notional).Str("weights", o.weightsVersion).
		Msg("pipeline decision")

	if o.recorder != nil {
		if _, err := o.recorder.Record(ctx, audit.EventDecision, c.Symbol, c.ID, d); err != nil {
			return d, err
		}
	}
	return d, nil
}
