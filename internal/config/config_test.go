package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Gates.FilterThreshold != 0.6 {
		t.Errorf("default filter threshold: got %v", cfg.Gates.FilterThreshold)
	}
	if cfg.Gateway.OutlierMultiplier != 10 {
		t.Errorf("default outlier multiplier: got %v", cfg.Gateway.OutlierMultiplier)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradegate.yaml")
	body := []byte(`
gates:
  filter_threshold: 0.75
risk:
  daily_loss_warn_pct: 1.5
  daily_loss_halt_pct: 2.5
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gates.FilterThreshold != 0.75 {
		t.Errorf("overlay not applied: %v", cfg.Gates.FilterThreshold)
	}
	if cfg.Risk.DailyLossHaltPct != 2.5 {
		t.Errorf("overlay not applied: %v", cfg.Risk.DailyLossHaltPct)
	}
	// Untouched fields keep their defaults.
	if cfg.Risk.DrawdownHardPct != 10 {
		t.Errorf("default lost in overlay: %v", cfg.Risk.DrawdownHardPct)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := Default()
	cfg.Risk.DailyLossWarnPct = 5
	cfg.Risk.DailyLossHaltPct = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("warn above halt must not validate")
	}

	cfg = Default()
	cfg.Feedback.BlendRatio = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("blend ratio above 1 must not validate")
	}
}

func TestValidateRejectsAdvisoryOverrideOnSafetyGates(t *testing.T) {
	for _, gate := range []string{"momentum", "risk_sizing"} {
		cfg := Default()
		cfg.Gates.Blocking = map[string]bool{gate: false}
		if err := cfg.Validate(); err == nil {
			t.Errorf("demoting %s to advisory must not validate", gate)
		}
	}

	// Redundant but explicit blocking flags stay legal.
	cfg := Default()
	cfg.Gates.Blocking = map[string]bool{"momentum": true, "risk_sizing": true}
	if err := cfg.Validate(); err != nil {
		t.Errorf("explicit blocking flags should validate: %v", err)
	}
}

func TestGateBlocksOverride(t *testing.T) {
	g := Default().Gates
	if !g.GateBlocks("momentum", true) {
		t.Error("default blocking flag should pass through")
	}
	g.Blocking = map[string]bool{"momentum": false}
	if g.GateBlocks("momentum", true) {
		t.Error("explicit override must win")
	}
}
