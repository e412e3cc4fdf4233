package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/artpar/subgate/adapters/http"
	"github.com/artpar/subgate/bootstrap"
	"github.com/artpar/subgate/config"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metering service",
	Long: `Start the subgate HTTP service.

The server will:
  - Load configuration from subgate.yaml (or --config)
  - Open the configured store and seed plans
  - Serve admission, usage and subscription endpoints
  - Ingest provider webhook events
  - Run the period rollover pass on the configured schedule

Environment variables:
  SUBGATE_PORT            - Server port (default: 8080)
  SUBGATE_DB_DRIVER       - Store driver: sqlite or memory
  SUBGATE_DB_PATH         - SQLite file path (default: subgate.db)
  SUBGATE_WEBHOOK_SECRET  - Inbound webhook signing secret
  SUBGATE_LOG_LEVEL       - Log level: debug, info, warn, error`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	bootLogger := newLogger(config.LoggingConfig{Level: "info", Format: "console"})

	holder, err := config.NewHolder(cfgFile, bootLogger)
	if err != nil {
		return err
	}
	cfg := holder.Get()
	logger := newLogger(cfg.Logging)

	a, err := bootstrap.New(holder, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	if hotReload {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
		defer holder.Stop()
	}

	handler := httpadapter.NewHandler(a.Admission, a.Recorder, a.Lifecycle, a.Metrics, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(cfg.Webhook.Secret),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Rollover runs on a cron schedule; the pass itself is a plain function
	// of (now, store), so the trigger choice carries no policy.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Rollover.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		stats, err := a.Rollover.Run(ctx, a.Clock.Now())
		if err != nil {
			logger.Error().Err(err).Msg("rollover pass failed")
			return
		}
		a.Metrics.ObserveRollover(stats.RolledOver, stats.Cancelled, stats.Expired, stats.Failed)
	})
	if err != nil {
		return fmt.Errorf("invalid rollover schedule %q: %w", cfg.Rollover.Schedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("subgate listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
