package gates

import (
	"context"
	"time"

	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/signals"
)

// SentimentGate is advisory only: a sour sentiment read shrinks the
// position but never rejects the trade, because sentiment is a noisy,
// delayed signal. Its contribution is the size multiplier the
// orchestrator applies to the approved notional.
type SentimentGate struct {
	floor    float64
	shrink   float64
	timeout  time.Duration
	provider signals.Provider // optional live refetch when the candidate carries no sentiment
}

// NewSentimentGate builds the gate. provider may be nil; when set, a
// candidate without a sentiment score triggers one bounded live fetch.
func NewSentimentGate(floor, shrink float64, timeout time.Duration, provider signals.Provider) *SentimentGate {
	return &SentimentGate{floor: floor, shrink: shrink, timeout: timeout, provider: provider}
}

func (g *SentimentGate) Name() string   { return GateSentiment }
func (g *SentimentGate) Blocking() bool { return false }

func (g *SentimentGate) Evaluate(ctx context.Context, c domain.Candidate, _ []domain.GateResult) domain.GateResult {
	return guarded(GateSentiment, c, false, func() domain.GateResult {
		if !c.Side.IsEntry() {
			return domain.Approve(GateSentiment, c.ID, 1.0)
		}

		sentiment := c.SentimentScore
		if !sentiment.Available() && g.provider != nil {
			fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
			snap, err := g.provider.GetSignals(fetchCtx, c.Symbol)
			cancel()
			if err == nil {
				sentiment = snap.Sentiment
			}
		}

		score, ok := sentiment.Value()
		if !ok {
			return domain.Abstain(GateSentiment, c.ID, domain.ReasonSignalUnavailable)
		}
		if score < g.floor {
			r := domain.Approve(GateSentiment, c.ID, g.shrink)
			r.ReasonCode = "sentiment_shrink"
			return r
		}
		return domain.Approve(GateSentiment, c.ID, 1.0)
	})
}
