package app

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/subgate/domain/subscription"
	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// Rollover drives period rollover and grace expiry. It defines the policy
// only; any trigger (cron, timer, manual CLI call) may invoke Run.
type Rollover struct {
	subs      ports.SubscriptionStore
	lifecycle *Lifecycle
	grace     time.Duration
	batch     int
	logger    zerolog.Logger
}

// RolloverStats summarizes one pass.
type RolloverStats struct {
	Scanned    int
	RolledOver int
	Cancelled  int
	Expired    int
	Skipped    int
	Failed     int
}

// NewRollover creates the rollover service. grace is the window after period
// end (or after creation, for PENDING subscriptions) before expiry; batch
// caps how many subscriptions one pass processes (<= 0 means no cap).
func NewRollover(subs ports.SubscriptionStore, lifecycle *Lifecycle, grace time.Duration, batch int, logger zerolog.Logger) *Rollover {
	return &Rollover{
		subs:      subs,
		lifecycle: lifecycle,
		grace:     grace,
		batch:     batch,
		logger:    logger.With().Str("component", "rollover").Logger(),
	}
}

// Run executes one finite rollover pass as of now. Subscriptions are
// independent: a failure on one is logged and counted, never aborts the
// pass. Order across subscriptions is unspecified.
func (r *Rollover) Run(ctx context.Context, now time.Time) (RolloverStats, error) {
	var stats RolloverStats

	due, err := r.subs.ListRolloverDue(ctx, now, r.batch)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(due)

	for _, sub := range due {
		ev, ok := r.eventFor(sub, now)
		if !ok {
			stats.Skipped++
			continue
		}

		next, err := r.lifecycle.ApplyScheduled(ctx, sub.ID, ev)
		if err != nil {
			if errors.Is(err, subscription.ErrInvalidTransition) {
				// Raced with a concurrent transition; the next pass re-evaluates.
				stats.Skipped++
				continue
			}
			stats.Failed++
			r.logger.Error().Err(err).
				Str("subscription_id", sub.ID).
				Str("event_type", string(ev.Type)).
				Msg("rollover failed for subscription")
			continue
		}

		switch {
		case next.Status == subscription.StatusExpired:
			stats.Expired++
		case next.Status == subscription.StatusCancelled:
			stats.Cancelled++
		default:
			stats.RolledOver++
		}
	}

	r.logger.Info().
		Time("now", now).
		Int("scanned", stats.Scanned).
		Int("rolled_over", stats.RolledOver).
		Int("cancelled", stats.Cancelled).
		Int("expired", stats.Expired).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("rollover pass complete")

	return stats, nil
}

// eventFor decides which scheduler event, if any, a due subscription gets.
func (r *Rollover) eventFor(sub subscription.Subscription, now time.Time) (subscription.Event, bool) {
	ev := subscription.Event{
		SubscriptionRef: sub.ID,
		ReceivedAt:      now,
	}

	switch sub.Status {
	case subscription.StatusActive:
		if sub.PeriodExpired(now) {
			ev.Type = subscription.EventPeriodRollover
			return ev, true
		}
	case subscription.StatusSuspended:
		if sub.PeriodExpired(now.Add(-r.grace)) {
			ev.Type = subscription.EventGraceElapsed
			return ev, true
		}
	case subscription.StatusPending:
		if !now.Before(sub.CreatedAt.Add(r.grace)) {
			ev.Type = subscription.EventGraceElapsed
			return ev, true
		}
	}
	return subscription.Event{}, false
}
