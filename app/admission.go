package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/subgate/domain/quota"
	"github.com/artpar/subgate/domain/subscription"
	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// Admission decides whether a metered operation may proceed.
//
// The counter read is advisory, not a reservation: N concurrent Admit calls
// near the limit may all observe capacity and all proceed, so overshoot is
// bounded by the in-flight concurrency level. That trade-off is deliberate
// (availability over hard precision for hot subscriptions); do not serialize
// Admit with Record. Admission never mutates counters - Recorder does, and
// only after the operation succeeded, so failed executions cost no quota.
type Admission struct {
	subs     ports.SubscriptionStore
	catalog  *Catalog
	counters ports.UsageStore
	logger   zerolog.Logger
}

// NewAdmission creates the admission service.
func NewAdmission(
	subs ports.SubscriptionStore,
	catalog *Catalog,
	counters ports.UsageStore,
	logger zerolog.Logger,
) *Admission {
	return &Admission{
		subs:     subs,
		catalog:  catalog,
		counters: counters,
		logger:   logger.With().Str("component", "admission").Logger(),
	}
}

// Admit decides admission for (subscriptionID, componentID). Denials are
// returned as structured decisions, not errors; the error return is for
// store failures only.
func (a *Admission) Admit(ctx context.Context, subscriptionID, componentID string) (quota.Decision, error) {
	sub, err := a.subs.Get(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return quota.Deny(quota.DenyNoActiveSubscription), nil
		}
		return quota.Decision{}, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}

	if sub.Status != subscription.StatusActive {
		a.logger.Debug().
			Str("subscription_id", sub.ID).
			Str("status", string(sub.Status)).
			Str("component", componentID).
			Msg("admission denied: subscription not active")
		return quota.DenyForStatus(sub.Status), nil
	}

	grant, ok, err := a.catalog.Grant(ctx, sub.PlanID, componentID)
	if err != nil {
		return quota.Decision{}, err
	}
	if !ok || !grant.Enabled {
		d := quota.Deny(quota.DenyFeatureNotInPlan)
		d.PlanID = sub.PlanID
		return d, nil
	}

	// Unbounded grants cannot deny on usage, but the decision still reports
	// the current counter so clients see accurate numbers.
	var used int64
	counter, err := a.counters.Get(ctx, sub.ID, componentID, sub.PeriodStart)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		used = 0 // first use in this period
	case err != nil:
		return quota.Decision{}, fmt.Errorf("get usage counter: %w", err)
	default:
		used = counter.Value
	}

	return quota.Check(grant, used), nil
}
