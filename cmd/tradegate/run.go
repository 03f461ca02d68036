package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketops/tradegate/internal/config"
	"github.com/marketops/tradegate/internal/domain"
	"github.com/marketops/tradegate/internal/execution"
	controlhttp "github.com/marketops/tradegate/internal/interfaces/http"
	"github.com/marketops/tradegate/internal/session"
	"github.com/marketops/tradegate/internal/signals"
)

var (
	runSignalsURL  string
	runBrokerURL   string
	runStartEquity float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a live admission session and the control server",
	Long: `Start one trading session: pins the active filter-weight version,
restores risk state from its snapshot, and serves the control surface.
Candidates are pushed in via POST /api/v1/candidates; realized outcomes
via POST /api/v1/outcomes.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVar(&runSignalsURL, "signals-url", "http://127.0.0.1:9000", "Base URL of the signal provider service")
	runCmd.Flags().StringVar(&runBrokerURL, "broker-url", "http://127.0.0.1:9100", "Base URL of the broker adapter")
	runCmd.Flags().Float64Var(&runStartEquity, "equity", 100000, "Starting equity when no risk snapshot exists")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	sess, err := session.New(ctx, cfg, session.Options{
		Provider:    signals.NewHTTPProvider(runSignalsURL, cfg.Gates.SentimentTimeout),
		ExecClient:  execution.NewHTTPClient(runBrokerURL, 10*time.Second),
		StartEquity: runStartEquity,
		Registry:    promReg,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	server := controlhttp.NewServer(cfg.Server, sess.Governor(), sess.Hub(), promReg)
	server.SetPipeline(
		func(ctx context.Context, symbol string, side domain.Side, notional float64) (any, error) {
			return sess.Process(ctx, symbol, side, notional)
		},
		sess.RecordOutcome,
		sess.MarketStats().UpdateMarket,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Info().Str("weights", sess.WeightsVersion()).Msg("session running")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
