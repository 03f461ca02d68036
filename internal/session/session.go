// Package session composes the live admission stack: signal provider,
// gates, orchestrator, risk governor, trade gateway and execution
// client, wired from configuration.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/marketops/tradegate/internal/audit"
	auditpg "github.com/marketops/tradegate/internal/audit/postgres"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/execution"
	"github.com/marketops/tradegate/internal/gates"
	"github.com/marketops/tradegate/internal/gateway"
	controlhttp "github.com/marketops/tradegate/internal/interfaces/http"
	"github.com/marketops/tradegate/internal/metrics"
	"github.com/marketops/tradegate/internal/pipeline"
	"github.com/marketops/tradegate/internal/risk"
	"github.com/marketops/tradegate/internal/signals"
	"github.com/marketops/tradegate/internal/weights"
	weightspg "github.com/marketops/tradegate/internal/weights/postgres"
)

// Session is one live trading session with a pinned weight version.
type Session struct {
	cfg          config.Config
	orchestrator *pipeline.Orchestrator
	gateway      *gateway.Gateway
	submitter    *execution.Submitter
	governor     *risk.Governor
	recorder     *audit.Recorder
	provider     signals.Provider
	stats        *Stats
	hub          *controlhttp.TelemetryHub
	metrics      *metrics.Registry
	weights      weights.Version
	closers      []func() error
}

// Options carries the external collaborators the session cannot build
// from config alone.
type Options struct {
	Provider    signals.Provider
	ExecClient  execution.Client
	StartEquity float64
	Registry    *prometheus.Registry
}

// New assembles a session from config. The active weight version is
// read once here and pinned for the session's whole life.
func New(ctx context.Context, cfg config.Config, opts Options) (*Session, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("session: signal provider required")
	}
	if opts.ExecClient == nil {
		return nil, fmt.Errorf("session: execution client required")
	}
	promReg := opts.Registry
	if promReg == nil {
		promReg = prometheus.NewRegistry()
	}
	m := metrics.NewRegistry(promReg)

	s := &Session{cfg: cfg, metrics: m}

	// Telemetry: file sink always, postgres when configured, hub for
	// the control surface.
	fileSink, err := audit.NewFileSink(cfg.Storage.AuditPath)
	if err != nil {
		return nil, err
	}
	lastSeq, err := fileSink.LastSeq()
	if err != nil {
		return nil, err
	}
	sinks := []audit.Sink{fileSink}
	if cfg.Storage.PostgresDSN != "" {
		repo, err := auditpg.NewRepo(cfg.Storage.PostgresDSN, 5*time.Second)
		if err != nil {
			return nil, err
		}
		if pgSeq, err := repo.LastSeq(ctx); err == nil && pgSeq > lastSeq {
			lastSeq = pgSeq
		}
		sinks = append(sinks, repo)
	}
	s.hub = controlhttp.NewTelemetryHub(512)
	sinks = append(sinks, s.hub, &metricsSink{m: m})
	s.recorder = audit.NewRecorder(lastSeq, sinks...)

	// Risk governor with durable snapshot.
	s.governor, err = risk.NewGovernor(cfg.Risk, s.recorder,
		risk.NewFileSnapshotStore(cfg.Risk.SnapshotPath), opts.StartEquity)
	if err != nil {
		return nil, err
	}
	m.RiskTier.Set(float64(s.governor.Tier()))

	// Weight store: session-pinned active version, bootstrap on a
	// store that has never published.
	var wstore weights.Store
	if cfg.Storage.PostgresDSN != "" {
		repo, err := weightspg.NewRepo(cfg.Storage.PostgresDSN, 5*time.Second)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, repo.Close)
		wstore = repo
	} else {
		fs, err := weights.NewFileStore(cfg.Storage.WeightsDir)
		if err != nil {
			return nil, err
		}
		wstore = fs
	}
	active, ok, err := wstore.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active weights: %w", err)
	}
	if !ok {
		active = weights.Bootstrap()
	}
	s.weights = active
	if _, err := s.recorder.Record(ctx, audit.EventWeightsLoaded, "", "", active); err != nil {
		log.Error().Err(err).Msg("weights load audit failed")
	}
	log.Info().Str("version", active.ID()).Time("trained_at", active.TrainedAt).
		Msg("session pinned filter weights")

	s.provider = signals.NewBreakerProvider(opts.Provider, cfg.Gates.SentimentTimeout)
	s.stats = NewStats(5)

	gateList := []gates.Gate{
		gates.NewMomentumGate(cfg.Gates.MomentumThreshold,
			cfg.Gates.GateBlocks(gates.GateMomentum, true)),
		gates.NewFilterGate(active, cfg.Gates.FilterThreshold),
		gates.NewSentimentGate(cfg.Gates.SentimentFloor, cfg.Gates.SentimentShrink,
			cfg.Gates.SentimentTimeout, s.provider),
		gates.NewRiskSizingGate(s.governor, s.stats,
			cfg.Gates.GateBlocks(gates.GateRiskSizing, true)),
	}
	s.orchestrator = pipeline.New(gateList, s.recorder, s.governor, active.ID(), cfg.Gates, m)

	// Dedup lock: redis when configured, in-process otherwise.
	var locker gateway.Locker
	if cfg.Storage.RedisAddr != "" {
		rl, err := gateway.NewRedisLocker(ctx, cfg.Storage.RedisAddr)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rl.Close)
		locker = rl
	} else {
		locker = gateway.NewMemoryLocker()
	}
	s.gateway = gateway.New(cfg.Gateway, s.governor, locker, s.recorder, m)
	s.submitter = execution.NewSubmitter(opts.ExecClient, cfg.Execution, s.recorder, m)

	return s, nil
}

// ProcessResult is the full outcome of one candidate run.
type ProcessResult struct {
	Decision      domain.Decision
	GatewayReason gateway.Reason
	Order         *gateway.OrderSpec
	Receipt       *execution.Receipt
	SubmitErr     error
}

// Process fetches signals, evaluates the candidate, and on approval
// drives it through the gateway and execution client. Candidates for
// different symbols may be processed concurrently.
func (s *Session) Process(ctx context.Context, symbol string, side domain.Side, notional float64) (ProcessResult, error) {
	c := domain.NewCandidate(symbol, side, notional)

	snap, err := s.provider.GetSignals(ctx, symbol)
	if err != nil {
		snap = signals.Unavailable(symbol, "provider_error")
	}
	c.MomentumScore = snap.Momentum
	c.FilterScore = snap.FilterScore
	c.FilterConfidence = snap.FilterConfidence
	c.SentimentScore = snap.Sentiment

	decision, err := s.orchestrator.Evaluate(ctx, c)
	if err != nil {
		return ProcessResult{Decision: decision}, err
	}
	res := ProcessResult{Decision: decision}
	if !decision.Approved() {
		return res, nil
	}

	spec, reason := s.gateway.Admit(ctx, decision)
	res.GatewayReason = reason
	if reason != gateway.ReasonNone {
		return res, nil
	}
	res.Order = &spec

	receipt, err := s.submitter.Submit(ctx, spec)
	if err != nil {
		// Exhausted retries: the decision fails loudly, never silently.
		log.Error().Err(err).Str("order", spec.OrderID).Msg("order submission failed")
		res.SubmitErr = err
		return res, nil
	}
	res.Receipt = &receipt
	return res, nil
}

// RecordOutcome applies a realized P&L to the governor, the per-symbol
// stats and the audit log.
func (s *Session) RecordOutcome(ctx context.Context, out domain.TradeOutcome) {
	s.governor.RecordOutcome(ctx, out.Symbol, out.PnL)
	s.stats.RecordOutcome(out.Symbol, out.PnL)
	s.metrics.RiskTier.Set(float64(s.governor.Tier()))
	if _, err := s.recorder.Record(ctx, audit.EventTradeOutcome, out.Symbol, out.CandidateID, out); err != nil {
		log.Error().Err(err).Str("candidate", out.CandidateID).Msg("trade outcome audit failed")
	}
}

// Governor exposes the risk governor for the control surface.
func (s *Session) Governor() *risk.Governor { return s.governor }

// Hub exposes the telemetry hub for the control surface.
func (s *Session) Hub() *controlhttp.TelemetryHub { return s.hub }

// MarketStats exposes the per-symbol statistics tracker.
func (s *Session) MarketStats() *Stats { return s.stats }

// WeightsVersion returns the session-pinned version ID.
func (s *Session) WeightsVersion() string { return s.weights.ID() }

// Close releases backends.
func (s *Session) Close() error {
	var firstErr error
	if err := s.recorder.Close(); err != nil {
		firstErr = err
	}
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
