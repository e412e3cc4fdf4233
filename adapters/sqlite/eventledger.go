package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/subgate/ports"
)

// EventLedger implements ports.EventLedger using SQLite. INSERT OR IGNORE
// against the primary key makes check-and-record one atomic statement.
type EventLedger struct {
	db *DB
}

// NewEventLedger creates a new SQLite event ledger.
func NewEventLedger(db *DB) *EventLedger {
	return &EventLedger{db: db}
}

// RecordIfNew atomically records eventID, reporting whether this call was
// the first to see it.
func (l *EventLedger) RecordIfNew(ctx context.Context, eventID string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_events (event_id, received_at) VALUES (?, ?)
	`, eventID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Ensure interface compliance.
var _ ports.EventLedger = (*EventLedger)(nil)
