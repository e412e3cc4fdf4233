// Package app contains the core services: plan catalog, quota admission,
// usage recording, the subscription lifecycle and the rollover pass.
// Business rules live in domain/; I/O happens at the edges via ports.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// Catalog is a read-through cache over the plan store. Plan data is mutated
// outside this core; the cache is dropped wholesale via Invalidate (wired to
// config reload) rather than tracking per-row freshness.
type Catalog struct {
	mu     sync.RWMutex
	cache  map[string]plan.Plan
	store  ports.PlanStore
	logger zerolog.Logger
}

// NewCatalog creates a plan catalog backed by store.
func NewCatalog(store ports.PlanStore, logger zerolog.Logger) *Catalog {
	return &Catalog{
		cache:  make(map[string]plan.Plan),
		store:  store,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Plan returns the plan with the given id, reading through to the store on
// cache miss.
func (c *Catalog) Plan(ctx context.Context, id string) (plan.Plan, error) {
	c.mu.RLock()
	p, ok := c.cache[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := c.store.Get(ctx, id)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("get plan %s: %w", id, err)
	}

	c.mu.Lock()
	c.cache[id] = p
	c.mu.Unlock()

	return p, nil
}

// Grant resolves the feature grant for (planID, componentID).
// The second return is false when the plan has no grant for the component.
func (c *Catalog) Grant(ctx context.Context, planID, componentID string) (plan.FeatureGrant, bool, error) {
	p, err := c.Plan(ctx, planID)
	if err != nil {
		return plan.FeatureGrant{}, false, err
	}
	g, ok := p.Grant(componentID)
	return g, ok, nil
}

// Invalidate drops the cache. Called when plan configuration changes.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	n := len(c.cache)
	c.cache = make(map[string]plan.Plan)
	c.mu.Unlock()

	c.logger.Debug().Int("entries", n).Msg("plan catalog invalidated")
}
