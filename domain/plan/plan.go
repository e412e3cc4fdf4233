// Package plan provides plan and feature-grant value types and pure functions.
// A plan is an ordered set of feature grants; each grant enables one metered
// component and optionally caps it with a per-period limit.
package plan

import "time"

// LimitKind names the unit a grant's limit counts.
type LimitKind string

const (
	LimitKindRequests  LimitKind = "requests"
	LimitKindDocuments LimitKind = "documents"
	LimitKindUnits     LimitKind = "units"
)

// FeatureGrant is the plan-specific enablement and limit for one component.
// Limit == nil means unbounded.
type FeatureGrant struct {
	PlanID      string
	ComponentID string
	Enabled     bool
	Limit       *int64
	LimitKind   LimitKind
}

// Unbounded reports whether the grant has no usage ceiling.
func (g FeatureGrant) Unbounded() bool {
	return g.Limit == nil
}

// Plan represents a subscription tier (value type).
type Plan struct {
	ID          string
	Name        string
	Description string
	PeriodDays  int // length of a usage period; 0 means DefaultPeriodDays
	IsDefault   bool
	Enabled     bool
	Grants      []FeatureGrant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultPeriodDays is the period length used when a plan does not set one.
const DefaultPeriodDays = 30

// Period returns the plan's usage period length.
func (p Plan) Period() time.Duration {
	days := p.PeriodDays
	if days <= 0 {
		days = DefaultPeriodDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Grant returns the grant for a component, if the plan has one.
// A plan holds at most one grant per component; the first match wins.
func (p Plan) Grant(componentID string) (FeatureGrant, bool) {
	for _, g := range p.Grants {
		if g.ComponentID == componentID {
			return g, true
		}
	}
	return FeatureGrant{}, false
}

// EnabledComponents returns the component IDs of all enabled grants,
// in grant order.
func (p Plan) EnabledComponents() []string {
	var ids []string
	for _, g := range p.Grants {
		if g.Enabled {
			ids = append(ids, g.ComponentID)
		}
	}
	return ids
}

// Limit is a convenience constructor for bounded grants.
func Limit(n int64) *int64 {
	return &n
}
