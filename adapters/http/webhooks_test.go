package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/artpar/subgate/adapters/notify"
	"github.com/artpar/subgate/domain/subscription"
)

func (e *apiEnv) deliver(t *testing.T, payload map[string]string, sign bool) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal delivery: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/v1/events/stripeish", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sign {
		req.Header.Set("X-Webhook-Signature", notify.SignPayload(body, webhookSecret))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deliver webhook: %v", err)
	}
	return resp
}

func TestWebhook_ActivatesSubscription(t *testing.T) {
	e := newAPIEnv(t)

	sub, err := e.lifecycle.Subscribe(context.Background(), "owner-1", "pro")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp := e.deliver(t, map[string]string{
		"event_id":         "evt-1",
		"type":             "subscription.activated",
		"subscription_ref": sub.ID,
	}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	got, _ := e.subs.Get(context.Background(), sub.ID)
	if got.Status != subscription.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.deliver(t, map[string]string{
		"event_id":         "evt-1",
		"type":             "subscription.activated",
		"subscription_ref": "sub-1",
	}, false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhook_DuplicateDeliveryAcknowledged(t *testing.T) {
	e := newAPIEnv(t)
	sub := e.active(t, "owner-1")

	payload := map[string]string{
		"event_id":         "evt-pf-1",
		"type":             "subscription.payment_failed",
		"subscription_ref": sub.ID,
	}
	for i := 0; i < 2; i++ {
		resp := e.deliver(t, payload, true)
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("delivery #%d status = %d, want 202", i+1, resp.StatusCode)
		}
	}

	got, _ := e.subs.Get(context.Background(), sub.ID)
	if got.Status != subscription.StatusSuspended {
		t.Errorf("status = %s, want suspended", got.Status)
	}
	// One transition: activation bumped to 2, suspension to 3; the duplicate
	// delivery must not bump again.
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}
}

func TestWebhook_UnhandledTypeAcknowledged(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.deliver(t, map[string]string{
		"event_id":         "evt-x",
		"type":             "invoice.finalized",
		"subscription_ref": "sub-1",
	}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202 for unhandled event types", resp.StatusCode)
	}
}

func TestWebhook_MissingFields(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.deliver(t, map[string]string{
		"type": "subscription.activated",
	}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
