package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/artpar/subgate/domain/subscription"
	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// ErrOwnerHasLiveSubscription is returned by Subscribe when the owner
// already has a PENDING or ACTIVE subscription.
var ErrOwnerHasLiveSubscription = errors.New("owner already has a live subscription")

// ErrPlanNotAvailable is returned by Subscribe for unknown or disabled plans.
var ErrPlanNotAvailable = errors.New("plan not available")

// conflictRetries bounds the optimistic-update retry loop before the
// conflict surfaces to the caller as a transient failure.
const conflictRetries = 3

// lockStripes is the size of the per-subscription lock table.
const lockStripes = 64

// Lifecycle owns every subscription mutation: the subscribe command, user
// cancellation, external provider events and the scheduler's rollover and
// expiry events all funnel through it.
//
// Transitions for one subscription are serialized by a striped lock plus the
// store's optimistic version check; transitions for different subscriptions
// proceed independently. No lock is held across a notification call.
type Lifecycle struct {
	subs     ports.SubscriptionStore
	catalog  *Catalog
	counters ports.UsageStore
	ledger   ports.EventLedger
	notifier ports.Notifier
	clock    ports.Clock
	idGen    ports.IDGenerator
	logger   zerolog.Logger
	locks    [lockStripes]sync.Mutex
}

// NewLifecycle creates the subscription lifecycle service.
func NewLifecycle(
	subs ports.SubscriptionStore,
	catalog *Catalog,
	counters ports.UsageStore,
	ledger ports.EventLedger,
	notifier ports.Notifier,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger zerolog.Logger,
) *Lifecycle {
	return &Lifecycle{
		subs:     subs,
		catalog:  catalog,
		counters: counters,
		ledger:   ledger,
		notifier: notifier,
		clock:    clock,
		idGen:    idGen,
		logger:   logger.With().Str("component", "lifecycle").Logger(),
	}
}

// lock returns the stripe lock for a subscription id.
func (l *Lifecycle) lock(subID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(subID))
	return &l.locks[h.Sum32()%lockStripes]
}

// Subscribe creates a PENDING subscription for owner on planID. The
// subscription becomes ACTIVE only on a confirmed provider activation event.
func (l *Lifecycle) Subscribe(ctx context.Context, ownerID, planID string) (subscription.Subscription, error) {
	p, err := l.catalog.Plan(ctx, planID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return subscription.Subscription{}, ErrPlanNotAvailable
		}
		return subscription.Subscription{}, err
	}
	if !p.Enabled {
		return subscription.Subscription{}, ErrPlanNotAvailable
	}

	if _, err := l.subs.GetLiveByOwner(ctx, ownerID); err == nil {
		return subscription.Subscription{}, ErrOwnerHasLiveSubscription
	} else if !errors.Is(err, ports.ErrNotFound) {
		return subscription.Subscription{}, fmt.Errorf("lookup live subscription for %s: %w", ownerID, err)
	}

	now := l.clock.Now()
	sub := subscription.Subscription{
		ID:        l.idGen.New(),
		OwnerID:   ownerID,
		PlanID:    p.ID,
		Status:    subscription.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := l.subs.Create(ctx, sub); err != nil {
		return subscription.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	l.logger.Info().
		Str("subscription_id", sub.ID).
		Str("owner_id", ownerID).
		Str("plan_id", p.ID).
		Msg("subscription created pending activation")

	return sub, nil
}

// Cancel cancels the subscription, immediately or at period end.
func (l *Lifecycle) Cancel(ctx context.Context, subscriptionID string, immediate bool) error {
	ev := subscription.Event{
		Type:            subscription.EventUserCancel,
		SubscriptionRef: subscriptionID,
		Immediate:       immediate,
		ReceivedAt:      l.clock.Now(),
	}
	_, err := l.apply(ctx, subscriptionID, ev)
	if errors.Is(err, subscription.ErrInvalidTransition) {
		return err // user commands surface invalid state, unlike event noise
	}
	return err
}

// ApplyExternalEvent ingests one event from the payment provider stream.
// Duplicate deliveries (same event id) and events invalid for the current
// state are logged and swallowed: they are expected noise in an eventually
// consistent stream and must never fail or retry-loop the ingestion path.
func (l *Lifecycle) ApplyExternalEvent(ctx context.Context, ev subscription.Event) error {
	log := l.logger.With().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Str("subscription_ref", ev.SubscriptionRef).
		Logger()

	if ev.ID != "" {
		first, err := l.ledger.RecordIfNew(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("event ledger: %w", err)
		}
		if !first {
			log.Debug().Msg("duplicate event dropped")
			return nil
		}
	}

	sub, err := l.resolve(ctx, ev.SubscriptionRef)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			log.Warn().Msg("event references unknown subscription")
			return nil
		}
		return err
	}

	if _, err := l.apply(ctx, sub.ID, ev); err != nil {
		if errors.Is(err, subscription.ErrInvalidTransition) {
			log.Warn().Str("status", string(sub.Status)).Msg("event not valid for current status, dropped")
			return nil
		}
		return err
	}
	return nil
}

// ApplyScheduled applies an internal scheduler event (rollover, grace
// expiry) to one subscription, returning the resulting state.
func (l *Lifecycle) ApplyScheduled(ctx context.Context, subscriptionID string, ev subscription.Event) (subscription.Subscription, error) {
	return l.apply(ctx, subscriptionID, ev)
}

// resolve finds a subscription by provider ref, falling back to our own id
// for providers that echo the reference we registered.
func (l *Lifecycle) resolve(ctx context.Context, ref string) (subscription.Subscription, error) {
	sub, err := l.subs.GetByProviderRef(ctx, ref)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return subscription.Subscription{}, err
	}
	return l.subs.Get(ctx, ref)
}

// apply runs one serialized transition: lock the stripe, re-read, transition,
// optimistically update and reset counters, then deliver notifications once
// the lock is released. A slow or blocking notifier must never stall
// transitions for other subscriptions sharing the stripe.
func (l *Lifecycle) apply(ctx context.Context, subID string, ev subscription.Event) (subscription.Subscription, error) {
	mu := l.lock(subID)
	mu.Lock()
	next, deferred, err := l.transition(ctx, subID, ev)
	mu.Unlock()
	if err != nil {
		return next, err
	}

	l.notify(ctx, next, deferred)
	return next, nil
}

// transition holds the stripe lock: it re-reads, transitions, optimistically
// updates and resets counters (the new period is unusable without them).
// Notification effects are returned for delivery outside the lock. Version
// conflicts retry a bounded number of times before surfacing as transient
// failures.
func (l *Lifecycle) transition(ctx context.Context, subID string, ev subscription.Event) (subscription.Subscription, []subscription.Effect, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		sub, err := l.subs.Get(ctx, subID)
		if err != nil {
			return subscription.Subscription{}, nil, fmt.Errorf("get subscription %s: %w", subID, err)
		}

		p, err := l.catalog.Plan(ctx, sub.PlanID)
		if err != nil {
			return subscription.Subscription{}, nil, err
		}

		now := l.clock.Now()
		next, effects, err := subscription.Transition(sub, ev, now, p.Period())
		if err != nil {
			return sub, nil, err
		}

		// Provider activation binds the provider's ref to our row.
		if ev.Type == subscription.EventProviderActivated && next.ProviderRef == "" && ev.SubscriptionRef != next.ID {
			next.ProviderRef = ev.SubscriptionRef
		}

		if err := l.subs.Update(ctx, next, sub.Version); err != nil {
			if errors.Is(err, ports.ErrVersionConflict) {
				lastErr = err
				l.logger.Debug().
					Str("subscription_id", subID).
					Int("attempt", attempt+1).
					Msg("version conflict, retrying transition")
				continue
			}
			return subscription.Subscription{}, nil, fmt.Errorf("update subscription %s: %w", subID, err)
		}

		if sub.Status != next.Status {
			l.logger.Info().
				Str("subscription_id", subID).
				Str("event_type", string(ev.Type)).
				Str("old_status", string(sub.Status)).
				Str("new_status", string(next.Status)).
				Msg("subscription transitioned")
		}

		var deferred []subscription.Effect
		for _, eff := range effects {
			if eff.Kind != subscription.EffectInitCounters && eff.Kind != subscription.EffectResetCounters {
				deferred = append(deferred, eff)
				continue
			}
			if err := l.counters.Reset(ctx, next.ID, p.EnabledComponents(), next.PeriodStart, next.PeriodEnd); err != nil {
				return next, nil, fmt.Errorf("reset counters for %s: %w", next.ID, err)
			}
		}
		return next, deferred, nil
	}

	return subscription.Subscription{}, nil, fmt.Errorf("transition for %s: %w", subID, lastErr)
}

// notify delivers notification effects for a committed transition. Failures
// are logged and never fail the transition.
func (l *Lifecycle) notify(ctx context.Context, sub subscription.Subscription, effects []subscription.Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case subscription.EffectNotifyStateChanged:
			notice := ports.StateNotice{
				OwnerID:        sub.OwnerID,
				SubscriptionID: sub.ID,
				OldStatus:      eff.OldStatus,
				NewStatus:      eff.NewStatus,
			}
			if err := l.notifier.StateChanged(ctx, notice); err != nil {
				l.logger.Error().Err(err).
					Str("subscription_id", sub.ID).
					Msg("failed to send state change notification")
			}

		case subscription.EffectPeriodReport:
			totals, err := l.counters.PeriodTotals(ctx, sub.ID, eff.PriorPeriodStart)
			if err != nil {
				l.logger.Error().Err(err).
					Str("subscription_id", sub.ID).
					Msg("failed to load prior period totals for report")
				continue
			}
			notice := ports.ReportNotice{
				OwnerID:        sub.OwnerID,
				SubscriptionID: sub.ID,
				PeriodStart:    eff.PriorPeriodStart,
				PeriodEnd:      eff.PriorPeriodEnd,
				Totals:         totals,
			}
			if err := l.notifier.PeriodReport(ctx, notice); err != nil {
				l.logger.Error().Err(err).
					Str("subscription_id", sub.ID).
					Msg("failed to send period report")
			}
		}
	}
}
