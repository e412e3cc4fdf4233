// Package subscription provides the subscription value type and the pure
// lifecycle state machine that drives it.
package subscription

import "time"

// Status represents subscription state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Live reports whether the status counts against the one-live-subscription-
// per-owner invariant.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusActive
}

// Subscription represents an owner's enrollment in a plan (value type).
// The period is a half-open interval [PeriodStart, PeriodEnd).
type Subscription struct {
	ID                string
	OwnerID           string
	PlanID            string
	ProviderRef       string // subscription id at the payment provider
	Status            Status
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64 // optimistic concurrency token, managed by the store
}

// InPeriod reports whether t falls inside the current usage period.
func (s Subscription) InPeriod(t time.Time) bool {
	return !t.Before(s.PeriodStart) && t.Before(s.PeriodEnd)
}

// PeriodExpired reports whether the current period has ended as of now.
func (s Subscription) PeriodExpired(now time.Time) bool {
	return !s.PeriodEnd.IsZero() && !now.Before(s.PeriodEnd)
}
