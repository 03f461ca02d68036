package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marketops/tradegate/internal/gateway"
)

// HTTPClient submits orders to a broker adapter over HTTP:
// POST {base}/orders with the order spec, expecting a receipt back.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient builds a broker client against base.
func NewHTTPClient(base string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{base: base, client: &http.Client{Timeout: timeout}}
}

// SubmitOrder posts the spec. Non-2xx responses are errors so the
// submitter's retry and breaker logic applies.
func (c *HTTPClient) SubmitOrder(ctx context.Context, spec gateway.OrderSpec) (Receipt, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode order %s: %w", spec.OrderID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/orders", bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("submit order %s: %w", spec.OrderID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, fmt.Errorf("broker returned %d for order %s", resp.StatusCode, spec.OrderID)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt for order %s: %w", spec.OrderID, err)
	}
	if receipt.OrderID == "" {
		receipt.OrderID = spec.OrderID
	}
	return receipt, nil
}
