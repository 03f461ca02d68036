// Package feedback implements the offline retrain job: it replays the
// audit log from a cursor, reconstructs training tuples, fits new
// filter weights and publishes a blended version. It runs fully outside
// the live pipeline and communicates only through the audit log and the
// versioned weight store.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/marketops/tradegate/internal/audit"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/weights"
)

// Job is one retrain pass configuration.
type Job struct {
	cfg     config.FeedbackConfig
	reader  audit.Reader
	store   weights.Store
	cursors CursorStore
}

// NewJob wires the retrain job to its audit source and weight store.
func NewJob(cfg config.FeedbackConfig, reader audit.Reader, store weights.Store, cursors CursorStore) *Job {
	return &Job{cfg: cfg, reader: reader, store: store, cursors: cursors}
}

// Result summarizes one run for logging and the CLI.
type Result struct {
	EventsRead  int
	Samples     int
	Symbols     int
	Published   bool
	Version     string
	SkipReason  string
	CursorAfter uint64
}

// Run executes one retrain pass. Publishing is atomic and only affects
// the next session's weight load. A run without enough samples is a
// no-op; the cursor moves only on publish, so sparse data accumulates
// across runs instead of being dropped.
func (j *Job) Run(ctx context.Context) (Result, error) {
	after, err := j.cursors.Load()
	if err != nil {
		return Result{}, err
	}

	events, err := j.reader.ReadSince(ctx, after)
	if err != nil {
		return Result{}, fmt.Errorf("replay audit events: %w", err)
	}
	res := Result{EventsRead: len(events), CursorAfter: after}
	if len(events) == 0 {
		res.SkipReason = "no new events"
		return res, nil
	}

	samples, lastSeq := j.reconstruct(events)

	eligible := filterEligible(samples, j.cfg.MinSamples)
	res.Samples = len(eligible)
	res.Symbols = countSymbols(eligible)
	if len(eligible) == 0 {
		res.SkipReason = fmt.Sprintf("no symbol reached %d samples", j.cfg.MinSamples)
		log.Info().Int("events", len(events)).Int("samples", len(samples)).
			Msg("feedback run skipped: insufficient per-symbol samples")
		return res, nil
	}

	prior, ok, err := j.store.Active(ctx)
	if err != nil {
		return res, fmt.Errorf("load prior weights: %w", err)
	}
	if !ok {
		prior = weights.Bootstrap()
	}

	fitted := fit(eligible, j.cfg.LearningRate, j.cfg.Epochs)
	next := weights.Version{
		Parameters: blend(prior.Parameters, fitted, j.cfg.BlendRatio),
		TrainedAt:  time.Now().UTC(),
		BlendRatio: j.cfg.BlendRatio,
		Samples:    len(eligible),
	}

	published, err := j.store.Publish(ctx, next)
	if err != nil {
		return res, fmt.Errorf("publish weights: %w", err)
	}
	if err := j.cursors.Save(lastSeq); err != nil {
		return res, fmt.Errorf("advance feedback cursor: %w", err)
	}

	res.Published = true
	res.Version = published.ID()
	res.CursorAfter = lastSeq
	log.Info().Str("version", published.ID()).Int("samples", len(eligible)).
		Int("symbols", res.Symbols).Uint64("cursor", lastSeq).
		Msg("published blended filter weights")
	return res, nil
}

// reconstruct joins decision events to trade outcomes by candidate ID.
func (j *Job) reconstruct(events []audit.Event) ([]Sample, uint64) {
	decisions := make(map[string]domain.Decision)
	var samples []Sample
	var lastSeq uint64

	for _, ev := range events {
		if ev.Seq > lastSeq {
			lastSeq = ev.Seq
		}
		switch ev.Type {
		case audit.EventDecision:
			var d domain.Decision
			if err := ev.Decode(&d); err != nil {
				log.Warn().Uint64("seq", ev.Seq).Err(err).Msg("undecodable decision event")
				continue
			}
			if d.Approved() && d.Features != nil {
				decisions[d.CandidateID] = d
			}
		case audit.EventTradeOutcome:
			var out domain.TradeOutcome
			if err := ev.Decode(&out); err != nil {
				log.Warn().Uint64("seq", ev.Seq).Err(err).Msg("undecodable outcome event")
				continue
			}
			d, ok := decisions[out.CandidateID]
			if !ok {
				continue
			}
			samples = append(samples, Sample{
				Symbol:   d.Symbol,
				Features: d.Features,
				Won:      out.PnL > 0,
			})
			delete(decisions, out.CandidateID)
		}
	}
	return samples, lastSeq
}

// filterEligible keeps samples for symbols that reached the per-symbol
// minimum, so thin histories cannot steer the weights.
func filterEligible(samples []Sample, min int) []Sample {
	bySymbol := make(map[string]int)
	for _, s := range samples {
		bySymbol[s.Symbol]++
	}
	var out []Sample
	for _, s := range samples {
		if bySymbol[s.Symbol] >= min {
			out = append(out, s)
		}
	}
	return out
}

func countSymbols(samples []Sample) int {
	seen := make(map[string]struct{})
	for _, s := range samples {
		seen[s.Symbol] = struct{}{}
	}
	return len(seen)
}

// Schedule runs the job on the given cron spec until ctx is cancelled.
func (j *Job) Schedule(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := j.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled feedback run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid feedback schedule %q: %w", spec, err)
	}
	c.Start()
	<-ctx.Done()
	stop := c.Stop()
	<-stop.Done()
	return nil
}
