package session

import (
	"context"
	"sync"

	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/risk"
)

// Stats accumulates per-symbol trade history and market state for the
// sizing formula. Symbols without enough history report absent
// statistics, which the governor resolves to size zero.
type Stats struct {
	mu      sync.Mutex
	history map[string]*symbolStats
	minN    int
}

type symbolStats struct {
	wins, losses       int
	winTotal, lossTotal float64
	price, atr         float64
}

// NewStats creates a tracker requiring minN closed trades per symbol
// before reporting a win rate.
func NewStats(minN int) *Stats {
	return &Stats{history: make(map[string]*symbolStats), minN: minN}
}

// RecordOutcome folds one closed trade into the symbol's history.
func (s *Stats) RecordOutcome(symbol string, pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(symbol)
	if pnl > 0 {
		st.wins++
		st.winTotal += pnl
	} else if pnl < 0 {
		st.losses++
		st.lossTotal += -pnl
	}
}

// UpdateMarket refreshes the symbol's last price and average true range.
func (s *Stats) UpdateMarket(symbol string, price, atr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(symbol)
	st.price, st.atr = price, atr
}

func (s *Stats) get(symbol string) *symbolStats {
	st, ok := s.history[symbol]
	if !ok {
		st = &symbolStats{}
		s.history[symbol] = st
	}
	return st
}

// Stats implements gates.StatsProvider.
func (s *Stats) Stats(_ context.Context, symbol string) risk.SizingInputs {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.history[symbol]
	if !ok {
		return risk.SizingInputs{
			WinRate:     domain.Missing("no_history"),
			PayoffRatio: domain.Missing("no_history"),
		}
	}
	in := risk.SizingInputs{Price: st.price, ATR: st.atr}

	n := st.wins + st.losses
	if n < s.minN {
		in.WinRate = domain.Missing("insufficient_history")
		in.PayoffRatio = domain.Missing("insufficient_history")
		return in
	}
	in.WinRate = domain.Present(float64(st.wins) / float64(n))

	if st.wins == 0 || st.losses == 0 {
		// A one-sided record gives no usable payoff ratio yet.
		in.PayoffRatio = domain.Missing("one_sided_history")
		return in
	}
	avgWin := st.winTotal / float64(st.wins)
	avgLoss := st.lossTotal / float64(st.losses)
	if avgLoss <= 0 {
		in.PayoffRatio = domain.Missing("zero_loss_average")
		return in
	}
	in.PayoffRatio = domain.Present(avgWin / avgLoss)
	return in
}
