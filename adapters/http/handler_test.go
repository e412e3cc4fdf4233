package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artpar/subgate/adapters/clock"
	httpadapter "github.com/artpar/subgate/adapters/http"
	"github.com/artpar/subgate/adapters/idgen"
	"github.com/artpar/subgate/adapters/memory"
	"github.com/artpar/subgate/adapters/metrics"
	"github.com/artpar/subgate/adapters/notify"
	"github.com/artpar/subgate/app"
	"github.com/artpar/subgate/domain/plan"
	"github.com/artpar/subgate/domain/subscription"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const webhookSecret = "hook-secret"

type apiEnv struct {
	server    *httptest.Server
	subs      *memory.SubscriptionStore
	counters  *memory.UsageStore
	lifecycle *app.Lifecycle
	clock     *clock.Fake
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	plans := memory.NewPlanStore()
	subs := memory.NewSubscriptionStore()
	counters := memory.NewUsageStore(0)
	ledger := memory.NewEventLedger()
	notifier := notify.NewMock()
	fake := clock.NewFake(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	logger := zerolog.Nop()

	if err := plans.Put(context.Background(), plan.Plan{
		ID:      "pro",
		Name:    "Pro",
		Enabled: true,
		Grants: []plan.FeatureGrant{
			{PlanID: "pro", ComponentID: "invoice_ocr", Enabled: true, Limit: plan.Limit(100)},
			{PlanID: "pro", ComponentID: "export_pdf", Enabled: true},
		},
	}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	catalog := app.NewCatalog(plans, logger)
	admission := app.NewAdmission(subs, catalog, counters, logger)
	recorder := app.NewRecorder(subs, catalog, counters, notifier, logger)
	lifecycle := app.NewLifecycle(subs, catalog, counters, ledger, notifier, fake, idgen.NewSequential("sub-"), logger)
	collector := metrics.NewWithRegistry(prometheus.NewRegistry())

	handler := httpadapter.NewHandler(admission, recorder, lifecycle, collector, logger)
	srv := httptest.NewServer(handler.Routes(webhookSecret))
	t.Cleanup(srv.Close)

	return &apiEnv{server: srv, subs: subs, counters: counters, lifecycle: lifecycle, clock: fake}
}

func (e *apiEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *apiEnv) active(t *testing.T, owner string) subscription.Subscription {
	t.Helper()
	ctx := context.Background()

	sub, err := e.lifecycle.Subscribe(ctx, owner, "pro")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ev := subscription.Event{
		ID:              "evt-setup-" + sub.ID,
		Type:            subscription.EventProviderActivated,
		SubscriptionRef: sub.ID,
		ReceivedAt:      e.clock.Now(),
	}
	if err := e.lifecycle.ApplyExternalEvent(ctx, ev); err != nil {
		t.Fatalf("activate: %v", err)
	}
	sub, _ = e.subs.Get(ctx, sub.ID)
	return sub
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	e := newAPIEnv(t)

	resp, err := http.Get(e.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAdmit_Allowed(t *testing.T) {
	e := newAPIEnv(t)
	sub := e.active(t, "owner-1")

	resp := e.post(t, "/v1/admit", map[string]string{
		"subscription_id": sub.ID,
		"component":       "invoice_ocr",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Allowed   bool   `json:"allowed"`
		Remaining *int64 `json:"remaining"`
	}
	decodeBody(t, resp, &body)
	if !body.Allowed {
		t.Error("expected allowed")
	}
	if body.Remaining == nil || *body.Remaining != 100 {
		t.Errorf("remaining = %v, want 100", body.Remaining)
	}
}

func TestAdmit_QuotaExceededIs429(t *testing.T) {
	e := newAPIEnv(t)
	sub := e.active(t, "owner-1")

	if _, err := e.counters.Increment(context.Background(), sub.ID, "invoice_ocr", sub.PeriodStart, sub.PeriodEnd, 100); err != nil {
		t.Fatalf("increment: %v", err)
	}

	resp := e.post(t, "/v1/admit", map[string]string{
		"subscription_id": sub.ID,
		"component":       "invoice_ocr",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}

	var body struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
		Used    int64  `json:"used"`
		Limit   *int64 `json:"limit"`
	}
	decodeBody(t, resp, &body)
	if body.Allowed || body.Reason != "quota_exceeded" {
		t.Errorf("body = %+v", body)
	}
	if body.Used != 100 || body.Limit == nil || *body.Limit != 100 {
		t.Errorf("denial should carry used and limit, got %+v", body)
	}
}

func TestAdmit_FeatureNotInPlanIs403(t *testing.T) {
	e := newAPIEnv(t)
	sub := e.active(t, "owner-1")

	resp := e.post(t, "/v1/admit", map[string]string{
		"subscription_id": sub.ID,
		"component":       "mystery_feature",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestAdmit_NoSubscriptionIs402(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.post(t, "/v1/admit", map[string]string{
		"subscription_id": "ghost",
		"component":       "invoice_ocr",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", resp.StatusCode)
	}
}

func TestAdmit_MissingFields(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.post(t, "/v1/admit", map[string]string{"component": "invoice_ocr"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecordUsage(t *testing.T) {
	e := newAPIEnv(t)
	sub := e.active(t, "owner-1")

	resp := e.post(t, "/v1/usage", map[string]any{
		"subscription_id": sub.ID,
		"component":       "invoice_ocr",
		"amount":          3,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	c, err := e.counters.Get(context.Background(), sub.ID, "invoice_ocr", sub.PeriodStart)
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if c.Value != 3 {
		t.Errorf("counter = %d, want 3", c.Value)
	}
}

func TestSubscribe_CreatedAndConflict(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.post(t, "/v1/subscriptions", map[string]string{
		"owner_id": "owner-1",
		"plan_id":  "pro",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &body)
	if body.ID == "" || body.Status != "pending" {
		t.Errorf("body = %+v", body)
	}

	resp = e.post(t, "/v1/subscriptions", map[string]string{
		"owner_id": "owner-1",
		"plan_id":  "pro",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second subscribe status = %d, want 409", resp.StatusCode)
	}
}

func TestSubscribe_UnknownPlanIs404(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.post(t, "/v1/subscriptions", map[string]string{
		"owner_id": "owner-1",
		"plan_id":  "nope",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancel(t *testing.T) {
	e := newAPIEnv(t)
	sub := e.active(t, "owner-1")

	req, _ := http.NewRequest(http.MethodDelete, e.server.URL+"/v1/subscriptions/"+sub.ID+"?immediate=true", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	got, _ := e.subs.Get(context.Background(), sub.ID)
	if got.Status != subscription.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	// A second cancel hits a terminal subscription.
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("repeat cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestCancel_UnknownSubscription(t *testing.T) {
	e := newAPIEnv(t)

	req, _ := http.NewRequest(http.MethodDelete, e.server.URL+"/v1/subscriptions/no-such-sub", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
