package domain

import "time"

// Verdict is the outcome a gate (or the whole pipeline) assigns to a
// candidate.
type Verdict string

const (
	VerdictApprove Verdict = "APPROVE"
	VerdictReject  Verdict = "REJECT"
	// VerdictAbstain is neutral: the gate had insufficient evidence and
	// the pipeline continues.
	VerdictAbstain Verdict = "ABSTAIN"
)

// Reason codes shared across gates. Structured, never free text, so
// callers and the feedback loop can branch on them.
const (
	ReasonSignalUnavailable = "signal_unavailable"
	ReasonBelowThreshold    = "below_threshold"
	ReasonLowConfidence     = "low_confidence"
	ReasonRiskHalt          = "risk_halt"
	ReasonZeroSize          = "zero_size"
	ReasonCoolDown          = "symbol_cooldown"
	ReasonInternalError     = "internal_error"
	ReasonInvalidCandidate  = "invalid_candidate"
)

// GateResult is the append-only record of a single gate run.
type GateResult struct {
	GateName     string    `json:"gate_name"`
	CandidateID  string    `json:"candidate_id"`
	Verdict      Verdict   `json:"verdict"`
	ReasonCode   string    `json:"reason_code,omitempty"`
	Contribution float64   `json:"numeric_contribution"`
	Timestamp    time.Time `json:"timestamp"`
}

// Approve builds an approving result with a strength contribution.
func Approve(gate, candidateID string, strength float64) GateResult {
	return GateResult{GateName: gate, CandidateID: candidateID, Verdict: VerdictApprove, Contribution: strength, Timestamp: time.Now().UTC()}
}

// Reject builds a blocking rejection with a reason code.
func Reject(gate, candidateID, reason string) GateResult {
	return GateResult{GateName: gate, CandidateID: candidateID, Verdict: VerdictReject, ReasonCode: reason, Timestamp: time.Now().UTC()}
}

// Abstain builds a neutral result with a reason code.
func Abstain(gate, candidateID, reason string) GateResult {
	return GateResult{GateName: gate, CandidateID: candidateID, Verdict: VerdictAbstain, ReasonCode: reason, Timestamp: time.Now().UTC()}
}

// Decision is the pipeline's final word on a candidate. Derived from the
// gate results, persisted before execution is attempted, never mutated.
type Decision struct {
	CandidateID      string       `json:"candidate_id"`
	Symbol           string       `json:"symbol"`
	Side             Side         `json:"side"`
	FinalVerdict     Verdict      `json:"final_verdict"`
	ReasonCode       string       `json:"reason_code,omitempty"`
	ApprovedNotional float64      `json:"approved_notional"`
	WeightsVersion   string       `json:"weights_version"`
	GateResults      []GateResult `json:"gate_results"`
	// Features snapshots the filter inputs at decision time so the
	// feedback loop can retrain without re-fetching signals.
	Features  map[string]float64 `json:"features,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// TradeOutcome is the realized result of an executed decision, joined
// back to its candidate by the feedback loop.
type TradeOutcome struct {
	CandidateID string    `json:"candidate_id"`
	Symbol      string    `json:"symbol"`
	PnL         float64   `json:"pnl"`
	ClosedAt    time.Time `json:"closed_at"`
}

// Approved reports whether the decision clears the candidate for the
// trade gateway.
func (d Decision) Approved() bool { return d.FinalVerdict == VerdictApprove }

// ResultFor returns the recorded result for a gate, if it ran.
func (d Decision) ResultFor(gate string) (GateResult, bool) {
	for _, r := range d.GateResults {
		if r.GateName == gate {
			return r, true
		}
	}
	return GateResult{}, false
}
