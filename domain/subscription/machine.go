package subscription

import (
	"errors"
	"time"
)

// EventType identifies a lifecycle event. Provider events arrive over the
// webhook stream; the remaining types are internal commands.
type EventType string

const (
	EventProviderActivated        EventType = "provider.activated"
	EventProviderPaymentFailed    EventType = "provider.payment_failed"
	EventProviderPaymentRecovered EventType = "provider.payment_recovered"
	EventProviderCancelled        EventType = "provider.cancelled"
	EventUserCancel               EventType = "user.cancel"
	EventPeriodRollover           EventType = "period.rollover"
	EventGraceElapsed             EventType = "grace.elapsed"
)

// Event is a lifecycle event targeting one subscription.
// ID is the provider's unique event id; internal commands leave it empty
// and bypass the idempotency ledger.
type Event struct {
	ID              string
	Type            EventType
	SubscriptionRef string // provider ref for provider events, else subscription id
	Immediate       bool   // user.cancel: cancel now instead of at period end
	ReceivedAt      time.Time
}

// Provider reports whether the event came from the payment provider stream.
func (e Event) Provider() bool {
	switch e.Type {
	case EventProviderActivated, EventProviderPaymentFailed,
		EventProviderPaymentRecovered, EventProviderCancelled:
		return true
	}
	return false
}

// EffectKind names a side effect the caller must carry out after a
// successful transition. Transition itself never touches stores.
type EffectKind int

const (
	// EffectNotifyStateChanged notifies the owner of the status change.
	EffectNotifyStateChanged EffectKind = iota
	// EffectInitCounters creates zero counters for the new period.
	EffectInitCounters
	// EffectResetCounters opens fresh counters for the advanced period.
	EffectResetCounters
	// EffectPeriodReport notifies the owner with the prior period's usage.
	EffectPeriodReport
)

// Effect pairs an effect kind with the data the caller needs to execute it.
type Effect struct {
	Kind             EffectKind
	OldStatus        Status
	NewStatus        Status
	PriorPeriodStart time.Time // set for EffectPeriodReport
	PriorPeriodEnd   time.Time // set for EffectPeriodReport
}

// ErrInvalidTransition marks an event that is not valid for the current
// status. Callers log and drop it; stale or re-ordered provider deliveries
// are expected noise, not failures.
var ErrInvalidTransition = errors.New("event not valid for current subscription status")

// Transition applies ev to sub at time now and returns the next state plus
// the side effects the caller must carry out. period is the plan's usage
// period length. This is a pure function: no I/O, no mutation of sub.
func Transition(sub Subscription, ev Event, now time.Time, period time.Duration) (Subscription, []Effect, error) {
	if sub.Status.Terminal() {
		return sub, nil, ErrInvalidTransition
	}

	next := sub
	next.UpdatedAt = now
	old := sub.Status

	notify := func(effects []Effect) []Effect {
		return append(effects, Effect{
			Kind:      EffectNotifyStateChanged,
			OldStatus: old,
			NewStatus: next.Status,
		})
	}

	switch ev.Type {
	case EventProviderActivated:
		if sub.Status != StatusPending {
			return sub, nil, ErrInvalidTransition
		}
		next.Status = StatusActive
		next.PeriodStart = now
		next.PeriodEnd = now.Add(period)
		effects := []Effect{{Kind: EffectInitCounters, OldStatus: old, NewStatus: next.Status}}
		return next, notify(effects), nil

	case EventProviderPaymentFailed:
		if sub.Status != StatusActive {
			return sub, nil, ErrInvalidTransition
		}
		next.Status = StatusSuspended
		return next, notify(nil), nil

	case EventProviderPaymentRecovered:
		if sub.Status != StatusSuspended {
			return sub, nil, ErrInvalidTransition
		}
		// Counters are not reset: the period kept running while suspended.
		next.Status = StatusActive
		return next, notify(nil), nil

	case EventProviderCancelled:
		if sub.Status != StatusActive && sub.Status != StatusSuspended {
			return sub, nil, ErrInvalidTransition
		}
		next.Status = StatusCancelled
		next.CancelledAt = &now
		return next, notify(nil), nil

	case EventUserCancel:
		if ev.Immediate {
			if sub.Status != StatusActive && sub.Status != StatusSuspended {
				return sub, nil, ErrInvalidTransition
			}
			next.Status = StatusCancelled
			next.CancelledAt = &now
			return next, notify(nil), nil
		}
		if sub.Status != StatusActive {
			return sub, nil, ErrInvalidTransition
		}
		next.CancelAtPeriodEnd = true
		return next, nil, nil

	case EventPeriodRollover:
		if sub.Status != StatusActive {
			return sub, nil, ErrInvalidTransition
		}
		if sub.CancelAtPeriodEnd {
			next.Status = StatusCancelled
			next.CancelledAt = &now
			return next, nil, nil
		}
		// Anchor the new window at the prior end so repeated late passes
		// do not drift the billing cycle.
		priorStart, priorEnd := sub.PeriodStart, sub.PeriodEnd
		next.PeriodStart = sub.PeriodEnd
		next.PeriodEnd = sub.PeriodEnd.Add(period)
		return next, []Effect{
			{Kind: EffectResetCounters, OldStatus: old, NewStatus: next.Status},
			{Kind: EffectPeriodReport, OldStatus: old, NewStatus: next.Status,
				PriorPeriodStart: priorStart, PriorPeriodEnd: priorEnd},
		}, nil

	case EventGraceElapsed:
		// Valid from pending, active and suspended; terminal states were
		// rejected above.
		next.Status = StatusExpired
		return next, notify(nil), nil
	}

	return sub, nil, ErrInvalidTransition
}
