package main

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/subgate/bootstrap"
	"github.com/artpar/subgate/config"
	"github.com/spf13/cobra"
)

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Run one period rollover pass and exit",
	Long: `Run a single rollover pass against the configured store.

The pass advances expired periods, cancels subscriptions flagged to end at
period close, and expires subscriptions past their grace window. The serve
command runs the same pass on a schedule; this command exists for manual
operation and for external schedulers.`,
	RunE: runRollover,
}

func init() {
	rootCmd.AddCommand(rolloverCmd)
}

func runRollover(cmd *cobra.Command, args []string) error {
	bootLogger := newLogger(config.LoggingConfig{Level: "info", Format: "console"})

	holder, err := config.NewHolder(cfgFile, bootLogger)
	if err != nil {
		return err
	}
	logger := newLogger(holder.Get().Logging)

	a, err := bootstrap.New(holder, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stats, err := a.Rollover.Run(ctx, a.Clock.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Rollover pass complete\n")
	fmt.Printf("  scanned:     %d\n", stats.Scanned)
	fmt.Printf("  rolled over: %d\n", stats.RolledOver)
	fmt.Printf("  cancelled:   %d\n", stats.Cancelled)
	fmt.Printf("  expired:     %d\n", stats.Expired)
	fmt.Printf("  skipped:     %d\n", stats.Skipped)
	fmt.Printf("  failed:      %d\n", stats.Failed)
	return nil
}
