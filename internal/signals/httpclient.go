package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/marketops/tradegate/internal/domain"
)

// HTTPProvider consumes a signal service over HTTP:
// GET {base}/signals?symbol=X returning a JSON document with optional
// fields. Missing or null fields become absent signals.
type HTTPProvider struct {
	base   string
	client *http.Client
}

// NewHTTPProvider builds a provider against base (e.g.
// "http://localhost:9000").
func NewHTTPProvider(base string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{base: base, client: &http.Client{Timeout: timeout}}
}

type signalsResponse struct {
	Momentum         *float64 `json:"momentum"`
	FilterScore      *float64 `json:"filter_score"`
	FilterConfidence *float64 `json:"filter_confidence"`
	Sentiment        *float64 `json:"sentiment"`
	Available        bool     `json:"available"`
}

// GetSignals fetches one snapshot. Partial documents are fine; each
// missing field is individually absent.
func (p *HTTPProvider) GetSignals(ctx context.Context, symbol string) (Snapshot, error) {
	u := fmt.Sprintf("%s/signals?symbol=%s", p.base, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build signals request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch signals for %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("signals service returned %d for %s", resp.StatusCode, symbol)
	}

	var body signalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Snapshot{}, fmt.Errorf("decode signals for %s: %w", symbol, err)
	}
	if !body.Available {
		return Unavailable(symbol, "provider_reported_unavailable"), nil
	}
	return Snapshot{
		Symbol:           symbol,
		Momentum:         fromPtr(body.Momentum),
		FilterScore:      fromPtr(body.FilterScore),
		FilterConfidence: fromPtr(body.FilterConfidence),
		Sentiment:        fromPtr(body.Sentiment),
		FetchedAt:        time.Now().UTC(),
	}, nil
}

func fromPtr(v *float64) domain.Signal {
	if v == nil {
		return domain.Missing("field_missing")
	}
	return domain.Present(*v)
}
