package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/subgate/domain/usage"
	"github.com/artpar/subgate/ports"
)

// UsageStore implements ports.UsageStore using SQLite. Increments go
// through a single upsert with RETURNING, so concurrent Record calls
// serialize in the database and never lose updates.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Get retrieves a counter; ports.ErrNotFound if none exists for the period.
func (s *UsageStore) Get(ctx context.Context, subID, componentID string, periodStart time.Time) (usage.Counter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subscription_id, component_id, period_start, period_end, value, updated_at
		FROM usage_counters
		WHERE subscription_id = ? AND component_id = ? AND period_start = ?
	`, subID, componentID, periodStart)

	var c usage.Counter
	err := row.Scan(&c.SubscriptionID, &c.ComponentID, &c.PeriodStart, &c.PeriodEnd, &c.Value, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return usage.Counter{}, ports.ErrNotFound
	}
	if err != nil {
		return usage.Counter{}, fmt.Errorf("scan counter: %w", err)
	}
	return c, nil
}

// Increment atomically adds amount to the counter, creating the row at
// amount if absent, and returns the new value.
func (s *UsageStore) Increment(ctx context.Context, subID, componentID string, periodStart, periodEnd time.Time, amount int64) (int64, error) {
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO usage_counters (subscription_id, component_id, period_start, period_end, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subscription_id, component_id, period_start) DO UPDATE SET
			value = value + excluded.value,
			updated_at = excluded.updated_at
		RETURNING value
	`, subID, componentID, periodStart, periodEnd, amount, now)

	var newValue int64
	if err := row.Scan(&newValue); err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return newValue, nil
}

// Reset creates zero counters for the components and period. Existing rows
// for the period are preserved.
func (s *UsageStore) Reset(ctx context.Context, subID string, componentIDs []string, periodStart, periodEnd time.Time) error {
	now := time.Now().UTC()
	for _, comp := range componentIDs {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO usage_counters
				(subscription_id, component_id, period_start, period_end, value, updated_at)
			VALUES (?, ?, ?, ?, 0, ?)
		`, subID, comp, periodStart, periodEnd, now)
		if err != nil {
			return fmt.Errorf("reset counter %s/%s: %w", subID, comp, err)
		}
	}
	return nil
}

// PeriodTotals returns component totals for one subscription period.
func (s *UsageStore) PeriodTotals(ctx context.Context, subID string, periodStart time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component_id, value FROM usage_counters
		WHERE subscription_id = ? AND period_start = ?
	`, subID, periodStart)
	if err != nil {
		return nil, fmt.Errorf("query period totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var comp string
		var value int64
		if err := rows.Scan(&comp, &value); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		totals[comp] = value
	}
	return totals, rows.Err()
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
