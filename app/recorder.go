package app

import (
	"context"
	"fmt"

	"github.com/artpar/subgate/domain/usage"
	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// Recorder commits usage after a metered operation has completed.
// Warning notifications fire on boundary crossings computed from the
// increment itself (prev < threshold <= new), never by re-evaluating the
// percentage, so each boundary notifies exactly once per period even under
// concurrent increments.
type Recorder struct {
	subs     ports.SubscriptionStore
	catalog  *Catalog
	counters ports.UsageStore
	notifier ports.Notifier
	logger   zerolog.Logger
}

// NewRecorder creates the usage recorder.
func NewRecorder(
	subs ports.SubscriptionStore,
	catalog *Catalog,
	counters ports.UsageStore,
	notifier ports.Notifier,
	logger zerolog.Logger,
) *Recorder {
	return &Recorder{
		subs:     subs,
		catalog:  catalog,
		counters: counters,
		notifier: notifier,
		logger:   logger.With().Str("component", "recorder").Logger(),
	}
}

// Record adds amount (default 1 when <= 0) to the current-period counter
// for (subscriptionID, componentID). Call only after the metered operation
// succeeded.
func (r *Recorder) Record(ctx context.Context, subscriptionID, componentID string, amount int64) error {
	if amount <= 0 {
		amount = 1
	}

	sub, err := r.subs.Get(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}

	newValue, err := r.counters.Increment(ctx, sub.ID, componentID, sub.PeriodStart, sub.PeriodEnd, amount)
	if err != nil {
		return fmt.Errorf("increment usage %s/%s: %w", sub.ID, componentID, err)
	}

	r.logger.Debug().
		Str("subscription_id", sub.ID).
		Str("component", componentID).
		Int64("amount", amount).
		Int64("value", newValue).
		Msg("usage recorded")

	grant, ok, err := r.catalog.Grant(ctx, sub.PlanID, componentID)
	if err != nil {
		// The increment is already committed and the crossing will not recur
		// for these values, so a swallowed failure here loses the boundary
		// notification for good. Make it loud.
		r.logger.Error().Err(err).
			Str("subscription_id", sub.ID).
			Str("component", componentID).
			Int64("value", newValue).
			Msg("grant lookup failed after increment, threshold check skipped")
		return nil
	}
	if !ok || grant.Unbounded() {
		// Unbounded grants have no thresholds; a missing grant means the
		// plan changed under us, which the next Admit will surface.
		return nil
	}

	limit := *grant.Limit
	prev := newValue - amount
	for _, boundary := range usage.CrossedBoundaries(limit, prev, newValue) {
		notice := ports.ThresholdNotice{
			OwnerID:     sub.OwnerID,
			ComponentID: componentID,
			Used:        newValue,
			Limit:       limit,
			Boundary:    boundary,
		}
		if err := r.notifier.ThresholdCrossed(ctx, notice); err != nil {
			r.logger.Error().Err(err).
				Str("subscription_id", sub.ID).
				Str("component", componentID).
				Int("boundary", boundary).
				Msg("failed to send threshold notification")
			continue
		}
		r.logger.Info().
			Str("subscription_id", sub.ID).
			Str("component", componentID).
			Int("boundary", boundary).
			Int64("used", newValue).
			Int64("limit", limit).
			Msg("usage threshold crossed")
	}

	return nil
}
