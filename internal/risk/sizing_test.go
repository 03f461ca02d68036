package risk

import (
	"testing"

	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
)

func newTestGovernor(t *testing.T, equity float64) *Governor {
	t.Helper()
	cfg := config.Default().Risk
	cfg.SnapshotPath = t.TempDir() + "/risk.json"
	g, err := NewGovernor(cfg, nil, NewFileSnapshotStore(cfg.SnapshotPath), equity)
	if err != nil {
		t.Fatalf("new governor: %v", err)
	}
	return g
}

func TestPositionSizePositiveEdge(t *testing.T) {
	g := newTestGovernor(t, 100000)

	s := g.PositionSize(SizingInputs{
		WinRate:     domain.Present(0.62),
		PayoffRatio: domain.Present(1.5),
		Price:       50000,
		ATR:         800,
	})
	if s.Notional <= 0 {
		t.Fatalf("positive edge must size > 0, got %+v", s)
	}
	cap := 100000 * config.Default().Risk.SizingCapFraction
	if s.Notional > cap {
		t.Errorf("notional %.2f exceeds equity-fraction cap %.2f", s.Notional, cap)
	}
	if s.StopDistance <= 0 {
		t.Error("ATR present, stop distance should be positive")
	}
}

func TestPositionSizeNegativeEdge(t *testing.T) {
	g := newTestGovernor(t, 100000)

	// win_rate 0.40 at payoff 1.0: f = 0.40 - 0.60/1.0 < 0.
	s := g.PositionSize(SizingInputs{
		WinRate:     domain.Present(0.40),
		PayoffRatio: domain.Present(1.0),
	})
	if s.Notional != 0 {
		t.Fatalf("negative edge must size 0, got %.2f", s.Notional)
	}
	if s.ReasonCode != "negative_edge" {
		t.Errorf("expected reason negative_edge, got %q", s.ReasonCode)
	}
}

func TestPositionSizeMissingStatistics(t *testing.T) {
	g := newTestGovernor(t, 100000)

	cases := []SizingInputs{
		{WinRate: domain.Missing("no_history"), PayoffRatio: domain.Present(1.5)},
		{WinRate: domain.Present(0.6), PayoffRatio: domain.Missing("no_history")},
		{WinRate: domain.Present(0.6), PayoffRatio: domain.Present(0)},
		{WinRate: domain.Present(0.6), PayoffRatio: domain.Present(-2)},
	}
	for i, in := range cases {
		if s := g.PositionSize(in); s.Notional != 0 {
			t.Errorf("case %d: expected size 0, got %.2f", i, s.Notional)
		}
	}
}

func TestPositionSizeCapApplied(t *testing.T) {
	g := newTestGovernor(t, 100000)

	// Huge edge: raw fraction far above the cap.
	s := g.PositionSize(SizingInputs{
		WinRate:     domain.Present(0.90),
		PayoffRatio: domain.Present(3.0),
	})
	if !s.CapApplied {
		t.Error("expected the equity-fraction cap to engage")
	}
	if s.EquityFrac != config.Default().Risk.SizingCapFraction {
		t.Errorf("capped fraction should equal cap, got %.4f", s.EquityFrac)
	}
}
