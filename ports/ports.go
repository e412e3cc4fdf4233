// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/domain/subscription"
	"github.com/artpar/subgate/domain/usage"
)

// -----------------------------------------------------------------------------
// Sentinel errors
// -----------------------------------------------------------------------------

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by SubscriptionStore.Update when the
// optimistic version check fails. Callers retry a bounded number of times.
var ErrVersionConflict = errors.New("subscription version conflict")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// PlanStore persists plans and their feature grants.
type PlanStore interface {
	// Get retrieves a plan by ID.
	Get(ctx context.Context, id string) (plan.Plan, error)

	// List returns all plans.
	List(ctx context.Context) ([]plan.Plan, error)

	// Put creates or replaces a plan (admin/seed path).
	Put(ctx context.Context, p plan.Plan) error

	// Delete removes a plan.
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore persists subscriptions. Rows are never deleted; terminal
// subscriptions are retained for audit.
type SubscriptionStore interface {
	// Get retrieves a subscription by ID.
	Get(ctx context.Context, id string) (subscription.Subscription, error)

	// GetByProviderRef retrieves a subscription by its payment-provider ref.
	GetByProviderRef(ctx context.Context, ref string) (subscription.Subscription, error)

	// GetLiveByOwner retrieves the owner's PENDING or ACTIVE subscription.
	GetLiveByOwner(ctx context.Context, ownerID string) (subscription.Subscription, error)

	// Create stores a new subscription at version 1.
	Create(ctx context.Context, sub subscription.Subscription) error

	// Update replaces the row if its stored version equals expectedVersion,
	// bumping the version. Returns ErrVersionConflict otherwise. This is the
	// storage-level atomic update primitive transitions are built on.
	Update(ctx context.Context, sub subscription.Subscription, expectedVersion int64) error

	// ListRolloverDue returns ACTIVE/SUSPENDED/PENDING subscriptions whose
	// period end (or creation, for PENDING) is at or before cutoff. The
	// result is finite; limit <= 0 means no cap.
	ListRolloverDue(ctx context.Context, cutoff time.Time, limit int) ([]subscription.Subscription, error)
}

// UsageStore persists per-period usage counters. Increments must be atomic
// per (subscription, component, period): concurrent calls must not lose
// updates.
type UsageStore interface {
	// Get retrieves a counter; ErrNotFound if none exists for the period.
	Get(ctx context.Context, subID, componentID string, periodStart time.Time) (usage.Counter, error)

	// Increment atomically adds amount to the counter for the period,
	// creating it at amount if absent, and returns the new value.
	Increment(ctx context.Context, subID, componentID string, periodStart, periodEnd time.Time, amount int64) (int64, error)

	// Reset creates zero counters for the given components and period.
	// Prior-period counters are left untouched (superseded, not cleared).
	Reset(ctx context.Context, subID string, componentIDs []string, periodStart, periodEnd time.Time) error

	// PeriodTotals returns component totals for one subscription period,
	// used for the prior-period report at rollover.
	PeriodTotals(ctx context.Context, subID string, periodStart time.Time) (map[string]int64, error)
}

// EventLedger provides idempotency for external events.
type EventLedger interface {
	// RecordIfNew atomically records eventID and reports whether this call
	// was the first to see it. The check and the record are one step; two
	// concurrent deliveries of the same id must not both get true.
	RecordIfNew(ctx context.Context, eventID string) (bool, error)
}

// -----------------------------------------------------------------------------
// Notification Ports
// -----------------------------------------------------------------------------

// ThresholdNotice reports a usage warning boundary crossing.
type ThresholdNotice struct {
	OwnerID     string
	ComponentID string
	Used        int64
	Limit       int64
	Boundary    int // percent: 80, 90 or 100
}

// StateNotice reports a subscription status change.
type StateNotice struct {
	OwnerID        string
	SubscriptionID string
	OldStatus      subscription.Status
	NewStatus      subscription.Status
}

// ReportNotice carries the prior-period usage summary sent at rollover.
type ReportNotice struct {
	OwnerID        string
	SubscriptionID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Totals         map[string]int64
}

// Notifier delivers owner-facing notifications. Implementations must not
// block the calling request path on slow transports.
type Notifier interface {
	ThresholdCrossed(ctx context.Context, n ThresholdNotice) error
	StateChanged(ctx context.Context, n StateNotice) error
	PeriodReport(ctx context.Context, n ReportNotice) error
}
