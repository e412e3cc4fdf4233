package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/ports"
)

// PlanStore implements ports.PlanStore using SQLite.
type PlanStore struct {
	db *DB
}

// NewPlanStore creates a new SQLite plan store.
func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

// Get retrieves a plan and its grants by ID.
func (s *PlanStore) Get(ctx context.Context, id string) (plan.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, period_days, is_default, enabled, created_at, updated_at
		FROM plans WHERE id = ?
	`, id)

	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return plan.Plan{}, ports.ErrNotFound
	}
	if err != nil {
		return plan.Plan{}, fmt.Errorf("scan plan: %w", err)
	}

	grants, err := s.grantsFor(ctx, p.ID)
	if err != nil {
		return plan.Plan{}, err
	}
	p.Grants = grants
	return p, nil
}

// List returns all plans with their grants.
func (s *PlanStore) List(ctx context.Context) ([]plan.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, period_days, is_default, enabled, created_at, updated_at
		FROM plans ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range plans {
		grants, err := s.grantsFor(ctx, plans[i].ID)
		if err != nil {
			return nil, err
		}
		plans[i].Grants = grants
	}
	return plans, nil
}

// Put creates or replaces a plan and its grants in one transaction.
func (s *PlanStore) Put(ctx context.Context, p plan.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, name, description, period_days, is_default, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			period_days = excluded.period_days,
			is_default = excluded.is_default,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Description, p.PeriodDays, p.IsDefault, p.Enabled, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM feature_grants WHERE plan_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear grants: %w", err)
	}
	for _, g := range p.Grants {
		var limit any
		if g.Limit != nil {
			limit = *g.Limit
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feature_grants (plan_id, component_id, enabled, usage_limit, limit_kind)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, g.ComponentID, g.Enabled, limit, string(g.LimitKind))
		if err != nil {
			return fmt.Errorf("insert grant %s/%s: %w", p.ID, g.ComponentID, err)
		}
	}

	return tx.Commit()
}

// Delete removes a plan (grants cascade).
func (s *PlanStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	return err
}

// grantsFor loads the feature grants of one plan.
func (s *PlanStore) grantsFor(ctx context.Context, planID string) ([]plan.FeatureGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, component_id, enabled, usage_limit, limit_kind
		FROM feature_grants WHERE plan_id = ? ORDER BY component_id
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []plan.FeatureGrant
	for rows.Next() {
		var g plan.FeatureGrant
		var limit sql.NullInt64
		var kind string
		if err := rows.Scan(&g.PlanID, &g.ComponentID, &g.Enabled, &limit, &kind); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		if limit.Valid {
			v := limit.Int64
			g.Limit = &v
		}
		g.LimitKind = plan.LimitKind(kind)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (plan.Plan, error) {
	var p plan.Plan
	var created, updated time.Time
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PeriodDays, &p.IsDefault, &p.Enabled, &created, &updated)
	if err != nil {
		return plan.Plan{}, err
	}
	p.CreatedAt = created
	p.UpdatedAt = updated
	return p, nil
}

// Ensure interface compliance.
var _ ports.PlanStore = (*PlanStore)(nil)
