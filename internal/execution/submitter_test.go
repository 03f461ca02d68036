package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/gateway"
)

type flakyClient struct {
	failures int
	calls    int
}

func (c *flakyClient) SubmitOrder(_ context.Context, spec gateway.OrderSpec) (Receipt, error) {
	c.calls++
	if c.calls <= c.failures {
		return Receipt{}, errors.New("connection reset")
	}
	return Receipt{OrderID: spec.OrderID, BrokerRef: "b-1", Status: StatusAccepted, SubmittedAt: time.Now()}, nil
}

func fastConfig() config.ExecutionConfig {
	cfg := config.Default().Execution
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	cfg.OrdersPerSec = 1000
	return cfg
}

func spec() gateway.OrderSpec {
	return gateway.OrderSpec{OrderID: "o-1", CandidateID: "c-1", Symbol: "BTC-USD", Side: "BUY", Notional: 1000}
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &flakyClient{failures: 2}
	s := NewSubmitter(client, fastConfig(), audit.NewRecorder(0, sink), nil)

	receipt, err := s.Submit(context.Background(), spec())
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, receipt.Status)
	assert.Equal(t, 3, client.calls)

	submitted := sink.OfType(audit.EventOrderSubmitted)
	require.Len(t, submitted, 1)
}

func TestSubmitExhaustedRetriesFailLoudly(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &flakyClient{failures: 100}
	s := NewSubmitter(client, fastConfig(), audit.NewRecorder(0, sink), nil)

	_, err := s.Submit(context.Background(), spec())
	require.Error(t, err)

	// The failure is on the audit trail, never silently dropped.
	failed := sink.OfType(audit.EventOrderFailed)
	require.Len(t, failed, 1)
	assert.Empty(t, sink.OfType(audit.EventOrderSubmitted))
}

func TestSubmitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	client := &flakyClient{failures: 100}
	s := NewSubmitter(client, cfg, nil, nil)

	// Burn through failures until the breaker opens.
	for i := 0; i < 3; i++ {
		_, _ = s.Submit(context.Background(), spec())
	}
	callsBefore := client.calls
	_, err := s.Submit(context.Background(), spec())
	require.Error(t, err)
	assert.Equal(t, callsBefore, client.calls, "open breaker must not reach the broker")
}
