package http

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/artpar/subgate/adapters/metrics"
	"github.com/artpar/subgate/adapters/notify"
	"github.com/artpar/subgate/app"
	"github.com/artpar/subgate/domain/subscription"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// WebhookHandler ingests payment-provider webhook deliveries. It is a thin
// decode-and-forward layer; idempotency and ordering tolerance live in the
// lifecycle service, so redeliveries always get a 2xx and are dropped there.
type WebhookHandler struct {
	lifecycle *app.Lifecycle
	metrics   *metrics.Collector
	secret    string
	logger    zerolog.Logger
}

// NewWebhookHandler creates the webhook ingestion handler.
func NewWebhookHandler(lifecycle *app.Lifecycle, collector *metrics.Collector, secret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		lifecycle: lifecycle,
		metrics:   collector,
		secret:    secret,
		logger:    logger.With().Str("component", "webhooks").Logger(),
	}
}

// Routes returns the chi router for webhook ingestion.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{provider}", h.handleDelivery)
	return r
}

// eventTypeMap translates provider event names to lifecycle event types.
var eventTypeMap = map[string]subscription.EventType{
	"subscription.activated":         subscription.EventProviderActivated,
	"subscription.payment_failed":    subscription.EventProviderPaymentFailed,
	"subscription.payment_recovered": subscription.EventProviderPaymentRecovered,
	"subscription.cancelled":         subscription.EventProviderCancelled,
}

type webhookDelivery struct {
	EventID         string `json:"event_id"`
	Type            string `json:"type"`
	SubscriptionRef string `json:"subscription_ref"`
}

func (h *WebhookHandler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if h.secret != "" {
		sig := r.Header.Get("X-Webhook-Signature")
		expected := notify.SignPayload(body, h.secret)
		if !hmac.Equal([]byte(sig), []byte(expected)) {
			h.logger.Warn().Str("provider", provider).Msg("webhook signature mismatch")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var delivery webhookDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if delivery.EventID == "" || delivery.SubscriptionRef == "" {
		writeError(w, http.StatusBadRequest, "event_id and subscription_ref are required")
		return
	}

	evType, ok := eventTypeMap[delivery.Type]
	if !ok {
		// Providers send event types we do not consume; acknowledge so they
		// stop redelivering.
		h.logger.Debug().Str("provider", provider).Str("type", delivery.Type).Msg("ignoring unhandled event type")
		h.metrics.EventsTotal.WithLabelValues(delivery.Type, "ignored").Inc()
		w.WriteHeader(http.StatusAccepted)
		return
	}

	ev := subscription.Event{
		ID:              delivery.EventID,
		Type:            evType,
		SubscriptionRef: delivery.SubscriptionRef,
		ReceivedAt:      time.Now().UTC(),
	}

	if err := h.lifecycle.ApplyExternalEvent(r.Context(), ev); err != nil {
		// Store-level failure; surface a 5xx so the operator sees it.
		h.logger.Error().Err(err).Str("event_id", ev.ID).Msg("event ingestion failed")
		h.metrics.EventsTotal.WithLabelValues(string(evType), "error").Inc()
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.metrics.EventsTotal.WithLabelValues(string(evType), "accepted").Inc()
	w.WriteHeader(http.StatusAccepted)
}
