package app

import (
	"context"
	"sync"
	"testing"
)

func TestRecord_IncrementsCounter(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")

	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 3); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 0); err != nil { // <= 0 counts as 1
		t.Fatalf("record: %v", err)
	}

	c, err := e.counters.Get(ctx, sub.ID, "invoice_ocr", sub.PeriodStart)
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if c.Value != 4 {
		t.Errorf("counter = %d, want 4", c.Value)
	}
}

func TestRecord_ThresholdFiresOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")

	// 0 -> 79: below every boundary.
	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 79); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := e.notifier.ThresholdCount(); n != 0 {
		t.Fatalf("no boundary crossed yet, got %d notices", n)
	}

	// 79 -> 82: crosses 80% exactly once.
	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 3); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := e.notifier.ThresholdCount(); n != 1 {
		t.Fatalf("expected exactly one notice for the 80%% boundary, got %d", n)
	}
	notice := e.notifier.Thresholds[0]
	if notice.Boundary != 80 || notice.Used != 82 || notice.Limit != 100 {
		t.Errorf("notice = %+v, want boundary=80 used=82 limit=100", notice)
	}

	// Further increments below the next boundary stay silent.
	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 5); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := e.notifier.ThresholdCount(); n != 1 {
		t.Errorf("boundary re-fired: got %d notices", n)
	}
}

func TestRecord_BatchCrossesMultipleBoundaries(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")

	// One batched increment 0 -> 95 crosses 80% and 90% together.
	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 95); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := e.notifier.ThresholdCount(); n != 2 {
		t.Fatalf("expected 2 notices (80, 90), got %d", n)
	}
	if e.notifier.Thresholds[0].Boundary != 80 || e.notifier.Thresholds[1].Boundary != 90 {
		t.Errorf("boundaries = %d, %d, want 80, 90",
			e.notifier.Thresholds[0].Boundary, e.notifier.Thresholds[1].Boundary)
	}
}

func TestRecord_HundredPercentAtLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")

	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 99); err != nil {
		t.Fatalf("record: %v", err)
	}
	e.notifier.Clear()

	// The increment that reaches the limit fires the 100% notice.
	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 1); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := e.notifier.ThresholdCount(); n != 1 {
		t.Fatalf("expected one 100%% notice, got %d", n)
	}
	if e.notifier.Thresholds[0].Boundary != 100 {
		t.Errorf("boundary = %d, want 100", e.notifier.Thresholds[0].Boundary)
	}
}

func TestRecord_NotifierFailureDoesNotFailRecord(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")
	e.notifier.ShouldFail = true

	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 85); err != nil {
		t.Fatalf("record should not fail on notifier error: %v", err)
	}

	c, err := e.counters.Get(ctx, sub.ID, "invoice_ocr", sub.PeriodStart)
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if c.Value != 85 {
		t.Errorf("counter = %d, want 85", c.Value)
	}
}

func TestRecord_UnboundedGrantNeverNotifies(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")

	if err := e.recorder.Record(ctx, sub.ID, "export_pdf", 1_000_000); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := e.notifier.ThresholdCount(); n != 0 {
		t.Errorf("unbounded grant crossed thresholds: %d notices", n)
	}
}

// Concurrent single-unit increments must neither lose updates nor fire a
// boundary more than once.
func TestRecord_ConcurrentIncrements(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")

	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 1); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	c, err := e.counters.Get(ctx, sub.ID, "invoice_ocr", sub.PeriodStart)
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if c.Value != 90 {
		t.Errorf("counter = %d, want 90 (lost updates)", c.Value)
	}

	var fired80, fired90 int
	for _, n := range e.notifier.Thresholds {
		switch n.Boundary {
		case 80:
			fired80++
		case 90:
			fired90++
		}
	}
	if fired80 != 1 || fired90 != 1 {
		t.Errorf("boundary notices: 80%%=%d 90%%=%d, want exactly one each", fired80, fired90)
	}
}

func TestRecord_GrantLookupFailureKeepsIncrement(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	sub := e.activeSubscription(t, "owner-1", "pro")

	// Pull the plan out from under the subscription so the grant lookup
	// after the increment fails.
	if err := e.plans.Delete(ctx, "pro"); err != nil {
		t.Fatalf("delete plan: %v", err)
	}
	e.catalog.Invalidate()

	if err := e.recorder.Record(ctx, sub.ID, "invoice_ocr", 85); err != nil {
		t.Fatalf("record with failing grant lookup: %v", err)
	}

	c, err := e.counters.Get(ctx, sub.ID, "invoice_ocr", sub.PeriodStart)
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if c.Value != 85 {
		t.Errorf("counter = %d, want 85", c.Value)
	}
	if got := e.notifier.ThresholdCount(); got != 0 {
		t.Errorf("threshold notices = %d, want 0", got)
	}
}
