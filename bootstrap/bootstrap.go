// Package bootstrap wires configuration, stores, services and adapters
// into a runnable application.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/artpar/subgate/adapters/clock"
	"github.com/artpar/subgate/adapters/idgen"
	"github.com/artpar/subgate/adapters/memory"
	"github.com/artpar/subgate/adapters/metrics"
	"github.com/artpar/subgate/adapters/notify"
	"github.com/artpar/subgate/adapters/sqlite"
	"github.com/artpar/subgate/app"
	"github.com/artpar/subgate/config"
	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// App holds the wired application.
type App struct {
	Holder   *config.Holder
	Logger   zerolog.Logger
	Metrics  *metrics.Collector
	Clock    ports.Clock
	Notifier ports.Notifier

	Plans  ports.PlanStore
	Subs   ports.SubscriptionStore
	Usage  ports.UsageStore
	Ledger ports.EventLedger

	Catalog   *app.Catalog
	Admission *app.Admission
	Recorder  *app.Recorder
	Lifecycle *app.Lifecycle
	Rollover  *app.Rollover

	db *sqlite.DB
}

// New builds the application from configuration.
func New(holder *config.Holder, logger zerolog.Logger) (*App, error) {
	cfg := holder.Get()

	a := &App{
		Holder:  holder,
		Logger:  logger,
		Metrics: metrics.New(),
		Clock:   clock.Real{},
	}

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		a.Plans = sqlite.NewPlanStore(db)
		a.Subs = sqlite.NewSubscriptionStore(db)
		a.Usage = sqlite.NewUsageStore(db)
		a.Ledger = sqlite.NewEventLedger(db)
	case "memory":
		a.Plans = memory.NewPlanStore()
		a.Subs = memory.NewSubscriptionStore()
		a.Usage = memory.NewUsageStore(0)
		a.Ledger = memory.NewEventLedger()
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	notifier, err := notify.New(notify.Config{
		Mode:       cfg.Notify.Mode,
		WebhookURL: cfg.Notify.URL,
		Secret:     cfg.Notify.Secret,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.Notifier = notifier

	a.Catalog = app.NewCatalog(a.Plans, logger)
	a.Admission = app.NewAdmission(a.Subs, a.Catalog, a.Usage, logger)
	a.Recorder = app.NewRecorder(a.Subs, a.Catalog, a.Usage, notifier, logger)
	a.Lifecycle = app.NewLifecycle(a.Subs, a.Catalog, a.Usage, a.Ledger, notifier, a.Clock, idgen.UUID{}, logger)
	a.Rollover = app.NewRollover(a.Subs, a.Lifecycle, cfg.Rollover.Grace, cfg.Rollover.BatchSize, logger)

	if err := a.SeedPlans(context.Background(), cfg); err != nil {
		a.Close()
		return nil, err
	}

	// Hot reload: re-seed plans and drop the catalog cache so in-flight
	// admissions see the new grants.
	holder.OnChange(func(newCfg *config.Config) {
		if err := a.SeedPlans(context.Background(), newCfg); err != nil {
			a.Metrics.ConfigReloadErrors.Inc()
			logger.Error().Err(err).Msg("plan re-seed after config reload failed")
			return
		}
		a.Catalog.Invalidate()
		a.Metrics.ConfigReloads.Inc()
	})

	return a, nil
}

// SeedPlans writes the config-declared plans into the plan store.
func (a *App) SeedPlans(ctx context.Context, cfg *config.Config) error {
	now := a.Clock.Now()
	for _, pc := range cfg.Plans {
		p := plan.Plan{
			ID:          pc.ID,
			Name:        pc.Name,
			Description: pc.Description,
			PeriodDays:  pc.PeriodDays,
			IsDefault:   pc.IsDefault,
			Enabled:     pc.Enabled == nil || *pc.Enabled,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for _, gc := range pc.Grants {
			kind := plan.LimitKind(gc.LimitKind)
			if kind == "" {
				kind = plan.LimitKindRequests
			}
			p.Grants = append(p.Grants, plan.FeatureGrant{
				PlanID:      pc.ID,
				ComponentID: gc.Component,
				Enabled:     gc.Enabled == nil || *gc.Enabled,
				Limit:       gc.Limit,
				LimitKind:   kind,
			})
		}
		if err := a.Plans.Put(ctx, p); err != nil {
			return fmt.Errorf("seed plan %s: %w", p.ID, err)
		}
	}
	if len(cfg.Plans) > 0 {
		a.Logger.Info().Int("plans", len(cfg.Plans)).Msg("plans seeded from config")
	}
	return nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
