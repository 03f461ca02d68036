// Package audit provides the append-only telemetry log every pipeline
// stage writes to. Events carry a monotonic sequence number so offline
// consumers can replay them in order.
package audit

import (
	"encoding/json"
	"time"
)

// EventType discriminates the audit-event union.
type EventType string

const (
	EventGateResult     EventType = "gate_result"
	EventDecision       EventType = "decision"
	EventRiskTransition EventType = "risk_transition"
	EventWeightsLoaded  EventType = "weights_loaded"
	EventOrderSubmitted EventType = "order_submitted"
	EventOrderFailed    EventType = "order_failed"
	EventGatewayVerdict EventType = "gateway_verdict"
	EventTradeOutcome   EventType = "trade_outcome"
)

// Event is one audit record. Payload is the JSON encoding of the typed
// record for the event type (domain.GateResult, domain.Decision, ...).
type Event struct {
	Seq         uint64          `json:"seq" db:"seq"`
	Type        EventType       `json:"type" db:"event_type"`
	Timestamp   time.Time       `json:"timestamp" db:"ts"`
	Symbol      string          `json:"symbol,omitempty" db:"symbol"`
	CandidateID string          `json:"candidate_id,omitempty" db:"candidate_id"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
}

// Decode unmarshals the payload into the typed record for the event.
func (e Event) Decode(v any) error { return json.Unmarshal(e.Payload, v) }
