package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/subgate/ports"
)

// EventLedger is an in-memory implementation of ports.EventLedger.
// The existence check and the record are one critical section, so two
// concurrent deliveries of the same event id cannot both be first.
type EventLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewEventLedger creates a new in-memory event ledger.
func NewEventLedger() *EventLedger {
	return &EventLedger{seen: make(map[string]time.Time)}
}

// RecordIfNew atomically records eventID, reporting whether this call was
// the first to see it.
func (l *EventLedger) RecordIfNew(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[eventID]; ok {
		return false, nil
	}
	l.seen[eventID] = time.Now().UTC()
	return true, nil
}

// Len returns the number of recorded event ids (for testing).
func (l *EventLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Ensure interface compliance.
var _ ports.EventLedger = (*EventLedger)(nil)
