package app

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/subgate/adapters/clock"
	"github.com/artpar/subgate/adapters/idgen"
	"github.com/artpar/subgate/adapters/memory"
	"github.com/artpar/subgate/adapters/notify"
	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/domain/subscription"
	"github.com/rs/zerolog"
)

var testStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// testEnv wires the services against in-memory adapters, a fake clock and a
// mock notifier.
type testEnv struct {
	plans     *memory.PlanStore
	subs      *memory.SubscriptionStore
	counters  *memory.UsageStore
	ledger    *memory.EventLedger
	notifier  *notify.Mock
	clock     *clock.Fake
	catalog   *Catalog
	admission *Admission
	recorder  *Recorder
	lifecycle *Lifecycle
	rollover  *Rollover
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		plans:    memory.NewPlanStore(),
		subs:     memory.NewSubscriptionStore(),
		counters: memory.NewUsageStore(0),
		ledger:   memory.NewEventLedger(),
		notifier: notify.NewMock(),
		clock:    clock.NewFake(testStart),
	}

	logger := zerolog.Nop()
	e.catalog = NewCatalog(e.plans, logger)
	e.admission = NewAdmission(e.subs, e.catalog, e.counters, logger)
	e.recorder = NewRecorder(e.subs, e.catalog, e.counters, e.notifier, logger)
	e.lifecycle = NewLifecycle(e.subs, e.catalog, e.counters, e.ledger, e.notifier, e.clock, idgen.NewSequential("sub-"), logger)
	e.rollover = NewRollover(e.subs, e.lifecycle, 7*24*time.Hour, 0, logger)

	e.seedPlan(t, plan.Plan{
		ID:      "pro",
		Name:    "Pro",
		Enabled: true,
		Grants: []plan.FeatureGrant{
			{PlanID: "pro", ComponentID: "invoice_ocr", Enabled: true, Limit: plan.Limit(100)},
			{PlanID: "pro", ComponentID: "export_pdf", Enabled: true},
			{PlanID: "pro", ComponentID: "legacy_scan", Enabled: false},
		},
	})

	return e
}

func (e *testEnv) seedPlan(t *testing.T, p plan.Plan) {
	t.Helper()
	if err := e.plans.Put(context.Background(), p); err != nil {
		t.Fatalf("seed plan %s: %v", p.ID, err)
	}
	e.catalog.Invalidate()
}

// activeSubscription subscribes owner to planID and walks it to ACTIVE via a
// provider activation event.
func (e *testEnv) activeSubscription(t *testing.T, ownerID, planID string) subscription.Subscription {
	t.Helper()
	ctx := context.Background()

	sub, err := e.lifecycle.Subscribe(ctx, ownerID, planID)
	if err != nil {
		t.Fatalf("subscribe %s to %s: %v", ownerID, planID, err)
	}

	ev := subscription.Event{
		ID:              "evt-activate-" + sub.ID,
		Type:            subscription.EventProviderActivated,
		SubscriptionRef: sub.ID,
		ReceivedAt:      e.clock.Now(),
	}
	if err := e.lifecycle.ApplyExternalEvent(ctx, ev); err != nil {
		t.Fatalf("activate %s: %v", sub.ID, err)
	}

	sub, err = e.subs.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("reload %s: %v", sub.ID, err)
	}
	if sub.Status != subscription.StatusActive {
		t.Fatalf("subscription %s status = %s, want active", sub.ID, sub.Status)
	}
	return sub
}
