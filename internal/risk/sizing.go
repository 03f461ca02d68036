package risk

import (
	"github.com/marketops/tradegate/internal/domain"
)

// SizingInputs carries the statistics the sizing formula needs. WinRate
// and PayoffRatio come from trade history and may be absent for a fresh
// strategy; ATR is the recent average true range in price units.
type SizingInputs struct {
	WinRate     domain.Signal
	PayoffRatio domain.Signal
	Price       float64
	ATR         float64
}

// Sizing is the governor's per-trade allowance.
type Sizing struct {
	Notional     float64 `json:"notional"`
	EquityFrac   float64 `json:"equity_fraction"`
	StopDistance float64 `json:"stop_distance"`
	CapApplied   bool    `json:"cap_applied"`
	ReasonCode   string  `json:"reason_code,omitempty"`
}

// PositionSize computes the capped fractional-bankroll size
// f = win_rate - (1-win_rate)/payoff_ratio, halved for volatility and
// hard capped at the configured equity fraction. Any missing statistic
// or a non-positive edge resolves to size 0: the safe default is "do
// nothing", never a fallback nonzero size.
func (g *Governor) PositionSize(in SizingInputs) Sizing {
	g.mu.Lock()
	equity := g.state.Equity
	g.mu.Unlock()

	winRate, okW := in.WinRate.Value()
	payoff, okP := in.PayoffRatio.Value()
	if !okW || !okP {
		return Sizing{ReasonCode: "missing_statistics"}
	}
	if payoff <= 0 || winRate <= 0 || winRate >= 1 || equity <= 0 {
		return Sizing{ReasonCode: "invalid_statistics"}
	}

	frac := winRate - (1-winRate)/payoff
	if frac <= 0 {
		return Sizing{ReasonCode: "negative_edge"}
	}
	if g.cfg.VolatilityHalving {
		frac /= 2
	}

	capApplied := false
	if frac > g.cfg.SizingCapFraction {
		frac = g.cfg.SizingCapFraction
		capApplied = true
	}

	stop := 0.0
	if in.ATR > 0 {
		stop = in.ATR * g.cfg.StopATRMultiple
		// Volatility-scaled sizing: wider stop, smaller position, so
		// risk per trade stays roughly constant across regimes.
		if in.Price > 0 && stop/in.Price > g.cfg.SizingCapFraction {
			scale := g.cfg.SizingCapFraction / (stop / in.Price)
			frac *= scale
		}
	}

	return Sizing{
		Notional:     equity * frac,
		EquityFrac:   frac,
		StopDistance: stop,
		CapApplied:   capApplied,
	}
}
