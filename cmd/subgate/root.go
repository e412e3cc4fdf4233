package main

import (
	"fmt"
	"os"

	"github.com/artpar/subgate/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "subgate",
	Short: "Subscription-gated usage metering for metered operations",
	Long: `Subgate decides whether metered operations may run, enforces
per-period usage ceilings per subscription plan, and keeps subscription
state in sync with a payment provider's webhook event stream.

Quick start:
  subgate validate  # Check the configuration
  subgate serve     # Start the HTTP service with the rollover scheduler

Operations:
  subgate rollover  # Run one rollover pass manually`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "subgate.yaml", "config file path")
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
