// Package execution wraps the broker execution client with retries,
// throttling and a circuit breaker. An exhausted retry budget surfaces
// as a failed submission on the audit trail, never a silently dropped
// trade.
package execution

import (
	"context"
	"time"

	"github.com/marketops/tradegate/internal/gateway"
)

// OrderStatus is the broker's answer for a submitted order.
type OrderStatus string

const (
	StatusAccepted OrderStatus = "ACCEPTED"
	StatusRejected OrderStatus = "REJECTED"
	StatusPending  OrderStatus = "PENDING"
)

// Receipt is the broker acknowledgement.
type Receipt struct {
	OrderID     string      `json:"order_id"`
	BrokerRef   string      `json:"broker_ref"`
	Status      OrderStatus `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Client is the broker boundary. Implementations live outside this
// repository; tests use fakes.
type Client interface {
	SubmitOrder(ctx context.Context, spec gateway.OrderSpec) (Receipt, error)
}
