package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketops/tradegate/internal/audit"
	auditpg "github.com/marketops/tradegate/internal/audit/postgres"
	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/feedback"
	"github.com/marketops/tradegate/internal/weights"
	weightspg "github.com/marketops/tradegate/internal/weights/postgres"
)

var retrainSchedule string

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Run the offline feedback loop",
	Long: `Replay audit events since the last cursor, reconstruct training
tuples from decisions and their realized outcomes, fit new filter
weights and publish a blended version. Runs once by default; with
--schedule it keeps running on the cron spec.`,
	RunE: runRetrain,
}

func init() {
	retrainCmd.Flags().StringVar(&retrainSchedule, "schedule", "", "Cron spec for repeated runs (e.g. \"0 2 * * *\")")
	rootCmd.AddCommand(retrainCmd)
}

func runRetrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	var (
		reader audit.Reader
		store  weights.Store
	)
	if cfg.Storage.PostgresDSN != "" {
		auditRepo, err := auditpg.NewRepo(cfg.Storage.PostgresDSN, 30*time.Second)
		if err != nil {
			return err
		}
		defer auditRepo.Close()
		weightsRepo, err := weightspg.NewRepo(cfg.Storage.PostgresDSN, 30*time.Second)
		if err != nil {
			return err
		}
		defer weightsRepo.Close()
		reader, store = auditRepo, weightsRepo
	} else {
		fileSink, err := audit.NewFileSink(cfg.Storage.AuditPath)
		if err != nil {
			return err
		}
		defer fileSink.Close()
		fileStore, err := weights.NewFileStore(cfg.Storage.WeightsDir)
		if err != nil {
			return err
		}
		reader, store = fileSink, fileStore
	}

	job := feedback.NewJob(cfg.Feedback, reader, store,
		feedback.NewFileCursorStore(cfg.Feedback.CursorPath))

	schedule := retrainSchedule
	if schedule == "" {
		schedule = cfg.Feedback.Schedule
	}
	if schedule != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return job.Schedule(ctx, schedule)
	}

	res, err := job.Run(context.Background())
	if err != nil {
		return err
	}
	if res.Published {
		fmt.Printf("published %s from %d samples across %d symbols\n", res.Version, res.Samples, res.Symbols)
	} else {
		fmt.Printf("no publish: %s (events=%d samples=%d)\n", res.SkipReason, res.EventsRead, res.Samples)
	}
	return nil
}
