// Package config loads the tradegate YAML configuration with
// production-ready defaults for every threshold.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Gates     GatesConfig     `yaml:"gates"`
	Risk      RiskConfig      `yaml:"risk"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Execution ExecutionConfig `yaml:"execution"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
}

// GatesConfig holds per-gate thresholds and capability flags.
type GatesConfig struct {
	MomentumThreshold float64       `yaml:"momentum_threshold"` // min momentum score to pass
	FilterThreshold   float64       `yaml:"filter_threshold"`   // min filter confidence to approve
	SentimentFloor    float64       `yaml:"sentiment_floor"`    // below this, sentiment shrinks size
	SentimentShrink   float64       `yaml:"sentiment_shrink"`   // size multiplier under the floor
	SentimentTimeout  time.Duration `yaml:"sentiment_timeout"`
	CoolDownAbstains  int           `yaml:"cooldown_abstains"` // consecutive unavailable abstains before cooldown
	CoolDownWindow    time.Duration `yaml:"cooldown_window"`

	// Advisory/blocking overrides keyed by gate name. Momentum and
	// risk_sizing are structurally blocking and cannot be demoted;
	// Validate rejects configs that try.
	Blocking map[string]bool `yaml:"blocking,omitempty"`
}

// RiskConfig holds the governor tier thresholds and sizing parameters.
type RiskConfig struct {
	DailyLossWarnPct   float64       `yaml:"daily_loss_warn_pct"`  // above this, WARNING
	DailyLossHaltPct   float64       `yaml:"daily_loss_halt_pct"`  // above this, HALT_SOFT
	MaxConsecutiveLoss int           `yaml:"max_consecutive_loss"` // at this count, HALT_SOFT
	DrawdownHardPct    float64       `yaml:"drawdown_hard_pct"`    // above this, HALT_HARD
	SizingCapFraction  float64       `yaml:"sizing_cap_fraction"`  // hard cap on equity fraction per trade
	VolatilityHalving  bool          `yaml:"volatility_halving"`   // halve the edge fraction
	StopATRMultiple    float64       `yaml:"stop_atr_multiple"`    // stop width in ATR multiples
	SoftHaltCooldown   time.Duration `yaml:"soft_halt_cooldown"`   // breach-free time before auto recovery
	SnapshotPath       string        `yaml:"snapshot_path"`
}

// GatewayConfig holds the final admission-check parameters.
type GatewayConfig struct {
	ExpectedNotional  float64       `yaml:"expected_notional"`  // baseline order size
	OutlierMultiplier float64       `yaml:"outlier_multiplier"` // reject above Nx baseline
	DedupWindow       time.Duration `yaml:"dedup_window"`
	SessionStart      string        `yaml:"session_start"` // "HH:MM" UTC, empty = always valid
	SessionEnd        string        `yaml:"session_end"`
}

// ExecutionConfig holds broker-submission retry and throttle settings.
type ExecutionConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	OrdersPerSec   float64       `yaml:"orders_per_sec"`
	BreakerTrips   uint32        `yaml:"breaker_trips"`   // consecutive failures before open
	BreakerTimeout time.Duration `yaml:"breaker_timeout"` // open to half-open delay
}

// FeedbackConfig holds the offline retrain job settings.
type FeedbackConfig struct {
	BlendRatio       float64 `yaml:"blend_ratio"` // weight of the prior version
	MinSamples       int     `yaml:"min_samples"` // per-symbol minimum before publishing
	LearningRate     float64 `yaml:"learning_rate"`
	Epochs           int     `yaml:"epochs"`
	CursorPath       string  `yaml:"cursor_path"`
	Schedule         string  `yaml:"schedule"` // cron spec, empty = one-shot only
}

// StorageConfig selects the audit/weights backends.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"` // empty means file backends
	RedisAddr   string `yaml:"redis_addr"`   // empty means in-process dedup
	AuditPath   string `yaml:"audit_path"`
	WeightsDir  string `yaml:"weights_dir"`
}

// ServerConfig holds the control-surface HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns the production-ready configuration.
func Default() Config {
	return Config{
		Gates: GatesConfig{
			MomentumThreshold: 0.50,
			FilterThreshold:   0.60,
			SentimentFloor:    -0.20,
			SentimentShrink:   0.50,
			SentimentTimeout:  3 * time.Second,
			CoolDownAbstains:  3,
			CoolDownWindow:    5 * time.Minute,
		},
		Risk: RiskConfig{
			DailyLossWarnPct:   2.0,
			DailyLossHaltPct:   3.0,
			MaxConsecutiveLoss: 3,
			DrawdownHardPct:    10.0,
			SizingCapFraction:  0.10,
			VolatilityHalving:  true,
			StopATRMultiple:    2.0,
			SoftHaltCooldown:   30 * time.Minute,
			SnapshotPath:       "data/risk_state.json",
		},
		Gateway: GatewayConfig{
			ExpectedNotional:  1000.0,
			OutlierMultiplier: 10.0,
			DedupWindow:       60 * time.Second,
		},
		Execution: ExecutionConfig{
			MaxAttempts:    4,
			BackoffBase:    250 * time.Millisecond,
			BackoffMax:     5 * time.Second,
			OrdersPerSec:   2.0,
			BreakerTrips:   3,
			BreakerTimeout: 60 * time.Second,
		},
		Feedback: FeedbackConfig{
			BlendRatio:   0.70,
			MinSamples:   25,
			LearningRate: 0.05,
			Epochs:       200,
			CursorPath:   "data/feedback_cursor.json",
		},
		Storage: StorageConfig{
			AuditPath:  "data/audit.jsonl",
			WeightsDir: "data/weights",
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8087,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML config file layered over the defaults. A missing
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that would disable the safety rails.
func (c Config) Validate() error {
	if c.Gates.FilterThreshold < 0 || c.Gates.FilterThreshold > 1 {
		return fmt.Errorf("gates.filter_threshold %.2f outside [0,1]", c.Gates.FilterThreshold)
	}
	// The momentum and risk/sizing gates are the safety rails; a config
	// that demotes them to advisory would let rejected candidates through.
	for _, gate := range []string{"momentum", "risk_sizing"} {
		if v, ok := c.Gates.Blocking[gate]; ok && !v {
			return fmt.Errorf("gates.blocking: %s gate cannot be made advisory", gate)
		}
	}
	if c.Risk.DailyLossWarnPct >= c.Risk.DailyLossHaltPct {
		return fmt.Errorf("risk: warn threshold %.2f%% must be below halt threshold %.2f%%",
			c.Risk.DailyLossWarnPct, c.Risk.DailyLossHaltPct)
	}
	if c.Risk.SizingCapFraction <= 0 || c.Risk.SizingCapFraction > 1 {
		return fmt.Errorf("risk.sizing_cap_fraction %.3f outside (0,1]", c.Risk.SizingCapFraction)
	}
	if c.Gateway.OutlierMultiplier < 1 {
		return fmt.Errorf("gateway.outlier_multiplier %.1f must be >= 1", c.Gateway.OutlierMultiplier)
	}
	if c.Feedback.BlendRatio < 0 || c.Feedback.BlendRatio > 1 {
		return fmt.Errorf("feedback.blend_ratio %.2f outside [0,1]", c.Feedback.BlendRatio)
	}
	return nil
}

// GateBlocks reports whether a gate's REJECT short-circuits the
// pipeline, honoring per-gate overrides.
func (g GatesConfig) GateBlocks(gate string, defaultBlocking bool) bool {
	if g.Blocking != nil {
		if v, ok := g.Blocking[gate]; ok {
			return v
		}
	}
	return defaultBlocking
}
