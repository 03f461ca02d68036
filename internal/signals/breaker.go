package signals

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
)

// BreakerProvider wraps a Provider with a circuit breaker so a flapping
// upstream degrades to "unavailable" snapshots instead of stalling every
// candidate on a timeout.
type BreakerProvider struct {
	inner   Provider
	breaker *cb.CircuitBreaker
	timeout time.Duration
}

// NewBreakerProvider wraps inner with a per-call timeout and a breaker
// that opens after 3 consecutive failures or a >50% failure rate across
// a rolling minute.
func NewBreakerProvider(inner Provider, timeout time.Duration) *BreakerProvider {
	st := cb.Settings{Name: "signal-provider"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 10 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).
			Str("from", from.String()).Str("to", to.String()).
			Msg("signal provider breaker state change")
	}
	return &BreakerProvider{
		inner:   inner,
		breaker: cb.NewCircuitBreaker(st),
		timeout: timeout,
	}
}

// GetSignals fetches through the breaker. Open breaker, timeout and
// upstream errors all collapse to an unavailable snapshot with a nil
// error: availability is data here, not a failure of the pipeline.
func (p *BreakerProvider) GetSignals(ctx context.Context, symbol string) (Snapshot, error) {
	res, err := p.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.inner.GetSignals(callCtx, symbol)
	})
	if err != nil {
		reason := "provider_error"
		switch err {
		case cb.ErrOpenState, cb.ErrTooManyRequests:
			reason = "provider_breaker_open"
		case context.DeadlineExceeded:
			reason = "provider_timeout"
		}
		log.Debug().Str("symbol", symbol).Str("reason", reason).Err(err).
			Msg("signal fetch degraded to unavailable")
		return Unavailable(symbol, reason), nil
	}
	return res.(Snapshot), nil
}
