package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/subgate/domain/subscription"
	"github.com/artpar/subgate/ports"
)

// SubscriptionStore implements ports.SubscriptionStore using SQLite.
// Optimistic concurrency is enforced with a version column: the conditional
// UPDATE is the storage-level atomic primitive transitions are built on.
type SubscriptionStore struct {
	db *DB
}

// NewSubscriptionStore creates a new SQLite subscription store.
func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, owner_id, plan_id, provider_ref, status,
	period_start, period_end, cancel_at_period_end, cancelled_at,
	created_at, updated_at, version`

// Get retrieves a subscription by ID.
func (s *SubscriptionStore) Get(ctx context.Context, id string) (subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	return scanSubscription(row)
}

// GetByProviderRef retrieves a subscription by its provider ref.
func (s *SubscriptionStore) GetByProviderRef(ctx context.Context, ref string) (subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_ref = ? AND provider_ref != ''`, ref)
	return scanSubscription(row)
}

// GetLiveByOwner retrieves the owner's PENDING or ACTIVE subscription.
func (s *SubscriptionStore) GetLiveByOwner(ctx context.Context, ownerID string) (subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE owner_id = ? AND status IN ('pending', 'active')`, ownerID)
	return scanSubscription(row)
}

// Create stores a new subscription.
func (s *SubscriptionStore) Create(ctx context.Context, sub subscription.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, owner_id, plan_id, provider_ref, status,
			period_start, period_end, cancel_at_period_end, cancelled_at,
			created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.OwnerID, sub.PlanID, sub.ProviderRef, string(sub.Status),
		nullTime(sub.PeriodStart), nullTime(sub.PeriodEnd), sub.CancelAtPeriodEnd,
		sub.CancelledAt, sub.CreatedAt, sub.UpdatedAt, sub.Version)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Update replaces the row when the stored version matches expectedVersion,
// bumping the version atomically. ErrVersionConflict otherwise.
func (s *SubscriptionStore) Update(ctx context.Context, sub subscription.Subscription, expectedVersion int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			plan_id = ?, provider_ref = ?, status = ?,
			period_start = ?, period_end = ?, cancel_at_period_end = ?,
			cancelled_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, sub.PlanID, sub.ProviderRef, string(sub.Status),
		nullTime(sub.PeriodStart), nullTime(sub.PeriodEnd), sub.CancelAtPeriodEnd,
		sub.CancelledAt, sub.UpdatedAt, sub.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Row missing or version moved under us; disambiguate for callers.
		var exists int
		row := s.db.QueryRowContext(ctx, `SELECT 1 FROM subscriptions WHERE id = ?`, sub.ID)
		if err := row.Scan(&exists); err == sql.ErrNoRows {
			return ports.ErrNotFound
		}
		return ports.ErrVersionConflict
	}
	return nil
}

// ListRolloverDue returns live and suspended subscriptions whose period end
// (or creation time, for PENDING) is at or before cutoff.
func (s *SubscriptionStore) ListRolloverDue(ctx context.Context, cutoff time.Time, limit int) ([]subscription.Subscription, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no cap
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE (status IN ('active', 'suspended') AND period_end IS NOT NULL AND period_end <= ?)
		    OR (status = 'pending' AND created_at <= ?)
		 LIMIT ?`, cutoff, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query due subscriptions: %w", err)
	}
	defer rows.Close()

	var due []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscriptionRow(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, sub)
	}
	return due, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func scanSubscription(row *sql.Row) (subscription.Subscription, error) {
	sub, err := scanSubscriptionRow(row)
	if err == sql.ErrNoRows {
		return subscription.Subscription{}, ports.ErrNotFound
	}
	return sub, err
}

func scanSubscriptionRow(row rowScanner) (subscription.Subscription, error) {
	var sub subscription.Subscription
	var status string
	var periodStart, periodEnd, cancelledAt sql.NullTime
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.PlanID, &sub.ProviderRef, &status,
		&periodStart, &periodEnd, &sub.CancelAtPeriodEnd, &cancelledAt,
		&sub.CreatedAt, &sub.UpdatedAt, &sub.Version)
	if err != nil {
		return subscription.Subscription{}, err
	}
	sub.Status = subscription.Status(status)
	if periodStart.Valid {
		sub.PeriodStart = periodStart.Time
	}
	if periodEnd.Valid {
		sub.PeriodEnd = periodEnd.Time
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		sub.CancelledAt = &t
	}
	return sub, nil
}

// Ensure interface compliance.
var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)
