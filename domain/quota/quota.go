// Package quota provides pure functions for quota admission decisions.
// All functions are deterministic with no side effects.
package quota

import (
	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/domain/subscription"
)

// DenyReason classifies why admission was refused.
type DenyReason string

const (
	DenyFeatureNotInPlan      DenyReason = "feature_not_in_plan"
	DenyQuotaExceeded         DenyReason = "quota_exceeded"
	DenyNoActiveSubscription  DenyReason = "no_active_subscription"
	DenySubscriptionSuspended DenyReason = "subscription_suspended"
	DenySubscriptionCancelled DenyReason = "subscription_cancelled"
)

// Decision is the outcome of an admission check (value type).
// It always carries enough structure for the caller to render an
// actionable message; it is never a bare boolean.
type Decision struct {
	Allowed   bool
	Reason    DenyReason // empty when allowed
	Used      int64
	Limit     *int64 // nil = unbounded grant
	Remaining *int64 // nil when unbounded or denied
	PlanID    string
}

// Deny builds a denial decision.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// DenyForStatus maps a non-admissible subscription status to the denial
// the caller should surface. Only ACTIVE subscriptions admit.
func DenyForStatus(st subscription.Status) Decision {
	switch st {
	case subscription.StatusSuspended:
		return Deny(DenySubscriptionSuspended)
	case subscription.StatusCancelled:
		return Deny(DenySubscriptionCancelled)
	default:
		return Deny(DenyNoActiveSubscription)
	}
}

// Check decides admission for a component grant given the current-period
// usage. The read is advisory: concurrent admits may all observe capacity,
// so overshoot is bounded by in-flight concurrency (accepted trade-off;
// see Admission). This is a PURE function.
func Check(grant plan.FeatureGrant, used int64) Decision {
	if !grant.Enabled {
		d := Deny(DenyFeatureNotInPlan)
		d.PlanID = grant.PlanID
		return d
	}

	if grant.Unbounded() {
		return Decision{
			Allowed: true,
			Used:    used,
			PlanID:  grant.PlanID,
		}
	}

	limit := *grant.Limit
	if used >= limit {
		return Decision{
			Allowed: false,
			Reason:  DenyQuotaExceeded,
			Used:    used,
			Limit:   grant.Limit,
			PlanID:  grant.PlanID,
		}
	}

	remaining := limit - used
	return Decision{
		Allowed:   true,
		Used:      used,
		Limit:     grant.Limit,
		Remaining: &remaining,
		PlanID:    grant.PlanID,
	}
}
