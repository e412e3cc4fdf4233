package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// WebhookNotifier delivers notifications as signed JSON POSTs to a
// configured endpoint.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier creates a webhook-backed notifier.
func NewWebhookNotifier(url, secret string, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// SignPayload signs a payload with the shared secret using HMAC-SHA256.
// This is a PURE function.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ThresholdCrossed posts a usage warning.
func (n *WebhookNotifier) ThresholdCrossed(ctx context.Context, notice ports.ThresholdNotice) error {
	return n.post(ctx, "usage.threshold_crossed", notice)
}

// StateChanged posts a subscription status change.
func (n *WebhookNotifier) StateChanged(ctx context.Context, notice ports.StateNotice) error {
	return n.post(ctx, "subscription.state_changed", notice)
}

// PeriodReport posts the prior-period usage summary.
func (n *WebhookNotifier) PeriodReport(ctx context.Context, notice ports.ReportNotice) error {
	return n.post(ctx, "subscription.period_report", notice)
}

func (n *WebhookNotifier) post(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(map[string]any{
		"type": eventType,
		"data": payload,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Subgate-Notifier/1.0")
	req.Header.Set("X-Notification-Type", eventType)
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", SignPayload(body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	n.logger.Debug().
		Str("type", eventType).
		Int("status", resp.StatusCode).
		Msg("notification delivered")
	return nil
}

// Ensure interface compliance.
var _ ports.Notifier = (*WebhookNotifier)(nil)
