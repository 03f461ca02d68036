// Package signals defines the upstream signal-provider contract consumed
// by the admission pipeline.
package signals

import (
	"context"
	"time"

	"github.com/marketops/tradegate/internal/domain"
)

// Snapshot is one provider read for a symbol. Every field is optional:
// providers must be able to report partial data, and consumers must
// handle absence explicitly.
type Snapshot struct {
	Symbol           string        `json:"symbol"`
	Momentum         domain.Signal `json:"momentum"`
	FilterScore      domain.Signal `json:"filter_score"`
	FilterConfidence domain.Signal `json:"filter_confidence"`
	Sentiment        domain.Signal `json:"sentiment"`
	FetchedAt        time.Time     `json:"fetched_at"`
}

// Available reports whether the snapshot carries at least the momentum
// signal, the minimum the pipeline needs to do anything at all.
func (s Snapshot) Available() bool { return s.Momentum.Available() }

// Provider supplies normalized signal snapshots per symbol. A provider
// outage surfaces as an error or an all-absent snapshot, never a zeroed
// one.
type Provider interface {
	GetSignals(ctx context.Context, symbol string) (Snapshot, error)
}

// Unavailable builds a snapshot with every field absent for the given
// reason. Used by providers and wrappers on outage paths.
func Unavailable(symbol, reason string) Snapshot {
	return Snapshot{
		Symbol:           symbol,
		Momentum:         domain.Missing(reason),
		FilterScore:      domain.Missing(reason),
		FilterConfidence: domain.Missing(reason),
		Sentiment:        domain.Missing(reason),
		FetchedAt:        time.Now().UTC(),
	}
}
