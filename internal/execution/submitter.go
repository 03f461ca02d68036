package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/gateway"
	"github.com/marketops/tradegate/internal/metrics"
)

// Submitter drives orders through the broker client with bounded
// exponential backoff, an order-rate throttle and a circuit breaker.
type Submitter struct {
	client   Client
	cfg      config.ExecutionConfig
	breaker  *cb.CircuitBreaker
	limiter  *rate.Limiter
	recorder *audit.Recorder
	metrics  *metrics.Registry
}

// NewSubmitter wires the retry stack around the broker client.
func NewSubmitter(client Client, cfg config.ExecutionConfig, recorder *audit.Recorder, m *metrics.Registry) *Submitter {
	if m == nil {
		m = metrics.Nop()
	}
	st := cb.Settings{Name: "execution-client"}
	st.Timeout = cfg.BreakerTimeout
	trips := cfg.BreakerTrips
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= trips
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
			Msg("execution breaker state change")
	}
	return &Submitter{
		client:   client,
		cfg:      cfg,
		breaker:  cb.NewCircuitBreaker(st),
		limiter:  rate.NewLimiter(rate.Limit(cfg.OrdersPerSec), 1),
		recorder: recorder,
		metrics:  m,
	}
}

// Submit attempts the order with backoff. On success the receipt is
// audited; exhausted retries audit a failure event and return the last
// error so the caller records a failed decision outcome.
func (s *Submitter) Submit(ctx context.Context, spec gateway.OrderSpec) (Receipt, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Receipt{}, fmt.Errorf("order throttle: %w", err)
	}

	var lastErr error
	backoff := s.cfg.BackoffBase
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res, err := s.breaker.Execute(func() (any, error) {
			return s.client.SubmitOrder(ctx, spec)
		})
		if err == nil {
			receipt := res.(Receipt)
			if s.recorder != nil {
				if _, aerr := s.recorder.Record(ctx, audit.EventOrderSubmitted, spec.Symbol, spec.CandidateID, receipt); aerr != nil {
					log.Error().Err(aerr).Str("order", spec.OrderID).Msg("order receipt audit failed")
				}
			}
			return receipt, nil
		}
		lastErr = err
		if err == cb.ErrOpenState || err == cb.ErrTooManyRequests {
			// Breaker open: retrying immediately cannot help.
			break
		}
		if attempt < s.cfg.MaxAttempts {
			s.metrics.ExecutionRetries.Inc()
			log.Warn().Str("order", spec.OrderID).Int("attempt", attempt).
				Dur("backoff", backoff).Err(err).Msg("order submission retry")
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = s.cfg.MaxAttempts
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.cfg.BackoffMax {
				backoff = s.cfg.BackoffMax
			}
		}
	}

	failure := map[string]any{
		"order_id": spec.OrderID,
		"error":    fmt.Sprint(lastErr),
	}
	if s.recorder != nil {
		if _, aerr := s.recorder.Record(ctx, audit.EventOrderFailed, spec.Symbol, spec.CandidateID, failure); aerr != nil {
			log.Error().Err(aerr).Str("order", spec.OrderID).Msg("order failure audit failed")
		}
	}
	return Receipt{}, fmt.Errorf("submit order %s after %d attempts: %w", spec.OrderID, s.cfg.MaxAttempts, lastErr)
}
