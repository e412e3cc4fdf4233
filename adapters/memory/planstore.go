// Package memory provides in-memory store implementations, used for tests
// and single-node deployments without persistence.
package memory

import (
	"context"
	"sync"

	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/ports"
)

// PlanStore is an in-memory implementation of ports.PlanStore.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[string]plan.Plan
}

// NewPlanStore creates a new in-memory plan store.
func NewPlanStore() *PlanStore {
	return &PlanStore{plans: make(map[string]plan.Plan)}
}

// Get retrieves a plan by ID.
func (s *PlanStore) Get(ctx context.Context, id string) (plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return plan.Plan{}, ports.ErrNotFound
	}
	return p, nil
}

// List returns all plans.
func (s *PlanStore) List(ctx context.Context) ([]plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]plan.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	return out, nil
}

// Put creates or replaces a plan.
func (s *PlanStore) Put(ctx context.Context, p plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plans[p.ID] = p
	return nil
}

// Delete removes a plan.
func (s *PlanStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.plans, id)
	return nil
}

// Ensure interface compliance.
var _ ports.PlanStore = (*PlanStore)(nil)
