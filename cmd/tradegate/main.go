package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

// rootCmd is the base command for the tradegate CLI
var rootCmd = &cobra.Command{
	Use:   "tradegate",
	Short: "tradegate trade admission controller",
	Long: `tradegate is a staged admission-control pipeline for automated trading:
candidate trades run through ordered gates (momentum, statistical filter,
sentiment, risk/sizing), a risk governor that can halt trading on loss
breaches, and a final independent trade gateway before order submission.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real config comes from the YAML file.
		_ = godotenv.Load()
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		if lvl, err := zerolog.ParseLevel(logLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tradegate - trade admission control")
		fmt.Println("Use 'tradegate run' to start a session, 'tradegate retrain' for the feedback loop")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tradegate version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tradegate v1.2.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config/tradegate.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
