package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/artpar/subgate/domain/usage"
	"github.com/artpar/subgate/ports"
)

// usageShard is a single shard of the usage store.
type usageShard struct {
	mu       sync.Mutex
	counters map[string]usage.Counter
}

// UsageStore is a sharded in-memory implementation of ports.UsageStore.
// Sharding reduces lock contention so a hot subscription does not serialize
// increments for everyone else.
type UsageStore struct {
	shards    []*usageShard
	numShards int
}

// NewUsageStore creates a new sharded in-memory usage store.
func NewUsageStore(numShards int) *UsageStore {
	if numShards <= 0 {
		numShards = 32
	}
	s := &UsageStore{
		shards:    make([]*usageShard, numShards),
		numShards: numShards,
	}
	for i := range s.shards {
		s.shards[i] = &usageShard{counters: make(map[string]usage.Counter)}
	}
	return s
}

// key generates the map key for a counter row.
func (s *UsageStore) key(subID, componentID string, periodStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", subID, componentID, periodStart.Unix())
}

// getShard returns the shard for a key.
func (s *UsageStore) getShard(key string) *usageShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Get retrieves a counter; ports.ErrNotFound if none exists.
func (s *UsageStore) Get(ctx context.Context, subID, componentID string, periodStart time.Time) (usage.Counter, error) {
	k := s.key(subID, componentID, periodStart)
	shard := s.getShard(k)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	c, ok := shard.counters[k]
	if !ok {
		return usage.Counter{}, ports.ErrNotFound
	}
	return c, nil
}

// Increment atomically adds amount to the counter, creating it at amount if
// absent, and returns the new value.
func (s *UsageStore) Increment(ctx context.Context, subID, componentID string, periodStart, periodEnd time.Time, amount int64) (int64, error) {
	k := s.key(subID, componentID, periodStart)
	shard := s.getShard(k)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	c, ok := shard.counters[k]
	if !ok {
		c = usage.Counter{
			SubscriptionID: subID,
			ComponentID:    componentID,
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
		}
	}
	c.Value += amount
	c.UpdatedAt = time.Now().UTC()
	shard.counters[k] = c

	return c.Value, nil
}

// Reset creates zero counters for the components and period. Existing rows
// for the period are preserved (reset races a concurrent first increment;
// the increment wins).
func (s *UsageStore) Reset(ctx context.Context, subID string, componentIDs []string, periodStart, periodEnd time.Time) error {
	for _, comp := range componentIDs {
		k := s.key(subID, comp, periodStart)
		shard := s.getShard(k)

		shard.mu.Lock()
		if _, ok := shard.counters[k]; !ok {
			shard.counters[k] = usage.Counter{
				SubscriptionID: subID,
				ComponentID:    comp,
				PeriodStart:    periodStart,
				PeriodEnd:      periodEnd,
				UpdatedAt:      time.Now().UTC(),
			}
		}
		shard.mu.Unlock()
	}
	return nil
}

// PeriodTotals returns component totals for one subscription period.
func (s *UsageStore) PeriodTotals(ctx context.Context, subID string, periodStart time.Time) (map[string]int64, error) {
	totals := make(map[string]int64)
	for _, shard := range s.shards {
		shard.mu.Lock()
		for _, c := range shard.counters {
			if c.SubscriptionID == subID && c.PeriodStart.Equal(periodStart) {
				totals[c.ComponentID] = c.Value
			}
		}
		shard.mu.Unlock()
	}
	return totals, nil
}

// Clear removes all counters (for testing).
func (s *UsageStore) Clear() {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.counters = make(map[string]usage.Counter)
		shard.mu.Unlock()
	}
}

// Len returns the total number of counters across shards (for testing).
func (s *UsageStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.counters)
		shard.mu.Unlock()
	}
	return total
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
