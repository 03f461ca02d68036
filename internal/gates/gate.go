// Package gates implements the admission pipeline's gate stages. Every
// gate returns a structured verdict; the orchestrator consults a static
// capability flag to decide whether a REJECT short-circuits.
package gates

import (
	"context"

	"github.com/marketops/tradegate/internal/domain"
)

// Gate is one pipeline stage. Implementations must never let an error
// escape Evaluate: internal failures become REJECT (blocking gates) or
// ABSTAIN (advisory gates) with reason "internal_error".
type Gate interface {
	Name() string
	// Blocking reports whether a REJECT from this gate stops the
	// pipeline. Advisory gates may shape the decision but never kill it.
	Blocking() bool
	Evaluate(ctx context.Context, c domain.Candidate, prior []domain.GateResult) domain.GateResult
}

// Gate names, fixed pipeline order.
const (
	GateMomentum   = "momentum"
	GateFilter     = "filter"
	GateSentiment  = "sentiment"
	GateRiskSizing = "risk_sizing"
)

// guarded runs fn and converts a panic into the fail-closed verdict, so
// a bug in gate math rejects the trade instead of crashing the operator.
func guarded(gate string, c domain.Candidate, blocking bool, fn func() domain.GateResult) (result domain.GateResult) {
	defer func() {
		if r := recover(); r != nil {
			if blocking {
				result = domain.Reject(gate, c.ID, domain.ReasonInternalError)
			} else {
				result = domain.Abstain(gate, c.ID, domain.ReasonInternalError)
			}
		}
	}()
	return fn()
}
