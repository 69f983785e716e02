package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bbarnes4318/hoppy/internal/config"
	"github.com/bbarnes4318/hoppy/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hoppy",
	Short: "Call recording transcription and analysis pipeline",
	Long: "Downloads call recordings, transcribes them with speaker labels, scores each call " +
		"against the billing and application rubric, and writes per-call and aggregate reports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c
		log = logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
