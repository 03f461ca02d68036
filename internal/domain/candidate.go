// Package domain holds the core trade-admission types shared by the
// pipeline, the risk governor and the trade gateway.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side is the direction of a candidate trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	// SideExit closes an existing position. Exits stay allowed under
	// HALT_SOFT while new entries are blocked.
	SideExit Side = "EXIT"
)

// IsEntry reports whether the side opens new exposure.
func (s Side) IsEntry() bool { return s == SideBuy || s == SideSell }

// Candidate is one trade proposal entering the admission pipeline.
// Immutable after construction; one per pipeline run per symbol.
type Candidate struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	Side              Side      `json:"side"`
	Timestamp         time.Time `json:"timestamp"`
	MomentumScore     Signal    `json:"momentum_score"`
	FilterScore       Signal    `json:"filter_score"`
	FilterConfidence  Signal    `json:"filter_confidence"`
	SentimentScore    Signal    `json:"sentiment_score"`
	NotionalRequested float64   `json:"notional_requested"`
}

// NewCandidate builds a candidate with a fresh ID and timestamp.
func NewCandidate(symbol string, side Side, notional float64) Candidate {
	return Candidate{
		ID:                uuid.New().String(),
		Symbol:            symbol,
		Side:              side,
		Timestamp:         time.Now().UTC(),
		MomentumScore:     Missing("not_fetched"),
		FilterScore:       Missing("not_fetched"),
		FilterConfidence:  Missing("not_fetched"),
		SentimentScore:    Missing("not_fetched"),
		NotionalRequested: notional,
	}
}

// Validate checks structural soundness before the candidate enters the
// pipeline. The pipeline rejects (not errors) invalid candidates.
func (c Candidate) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candidate %s: empty symbol", c.ID)
	}
	if c.Side != SideBuy && c.Side != SideSell && c.Side != SideExit {
		return fmt.Errorf("candidate %s: invalid side %q", c.ID, c.Side)
	}
	if c.NotionalRequested < 0 {
		return fmt.Errorf("candidate %s: negative notional %.2f", c.ID, c.NotionalRequested)
	}
	return nil
}
