package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/subgate/domain/subscription"
	"github.com/artpar/subgate/ports"
)

// SubscriptionStore is an in-memory implementation of
// ports.SubscriptionStore with optimistic versioning. The version check and
// the write happen under one lock, matching the atomicity a relational
// store provides with a conditional UPDATE.
type SubscriptionStore struct {
	mu         sync.RWMutex
	subs       map[string]subscription.Subscription
	byProvider map[string]string // provider ref -> subscription id
}

// NewSubscriptionStore creates a new in-memory subscription store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		subs:       make(map[string]subscription.Subscription),
		byProvider: make(map[string]string),
	}
}

// Get retrieves a subscription by ID.
func (s *SubscriptionStore) Get(ctx context.Context, id string) (subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return subscription.Subscription{}, ports.ErrNotFound
	}
	return sub, nil
}

// GetByProviderRef retrieves a subscription by its provider ref.
func (s *SubscriptionStore) GetByProviderRef(ctx context.Context, ref string) (subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byProvider[ref]
	if !ok {
		return subscription.Subscription{}, ports.ErrNotFound
	}
	return s.subs[id], nil
}

// GetLiveByOwner retrieves the owner's PENDING or ACTIVE subscription.
func (s *SubscriptionStore) GetLiveByOwner(ctx context.Context, ownerID string) (subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.OwnerID == ownerID && sub.Status.Live() {
			return sub, nil
		}
	}
	return subscription.Subscription{}, ports.ErrNotFound
}

// Create stores a new subscription.
func (s *SubscriptionStore) Create(ctx context.Context, sub subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.ID] = sub
	if sub.ProviderRef != "" {
		s.byProvider[sub.ProviderRef] = sub.ID
	}
	return nil
}

// Update replaces the row if the stored version matches expectedVersion,
// bumping the version by one.
func (s *SubscriptionStore) Update(ctx context.Context, sub subscription.Subscription, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.subs[sub.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ports.ErrVersionConflict
	}

	sub.Version = expectedVersion + 1
	s.subs[sub.ID] = sub
	if sub.ProviderRef != "" {
		s.byProvider[sub.ProviderRef] = sub.ID
	}
	return nil
}

// ListRolloverDue returns live and suspended subscriptions whose period end
// (or creation time, for PENDING) is at or before cutoff.
func (s *SubscriptionStore) ListRolloverDue(ctx context.Context, cutoff time.Time, limit int) ([]subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []subscription.Subscription
	for _, sub := range s.subs {
		if limit > 0 && len(due) >= limit {
			break
		}
		switch sub.Status {
		case subscription.StatusActive, subscription.StatusSuspended:
			if !sub.PeriodEnd.IsZero() && !cutoff.Before(sub.PeriodEnd) {
				due = append(due, sub)
			}
		case subscription.StatusPending:
			if !cutoff.Before(sub.CreatedAt) {
				due = append(due, sub)
			}
		}
	}
	return due, nil
}

// Clear removes all subscriptions (for testing).
func (s *SubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[string]subscription.Subscription)
	s.byProvider = make(map[string]string)
}

// Ensure interface compliance.
var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)
