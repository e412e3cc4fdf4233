// Package http is the transport adapter: it decodes requests, calls the
// core services and encodes results. No business rules live here.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/artpar/subgate/adapters/metrics"
	"github.com/artpar/subgate/app"
	"github.com/artpar/subgate/domain/quota"
	"github.com/artpar/subgate/domain/subscription"
	"github.com/artpar/subgate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler exposes the core over HTTP.
type Handler struct {
	admission *app.Admission
	recorder  *app.Recorder
	lifecycle *app.Lifecycle
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(
	admission *app.Admission,
	recorder *app.Recorder,
	lifecycle *app.Lifecycle,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		admission: admission,
		recorder:  recorder,
		lifecycle: lifecycle,
		metrics:   collector,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

// Routes returns the chi router for the core API.
func (h *Handler) Routes(webhookSecret string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/admit", h.handleAdmit)
		r.Post("/usage", h.handleRecord)
		r.Post("/subscriptions", h.handleSubscribe)
		r.Delete("/subscriptions/{id}", h.handleCancel)
		r.Mount("/events", NewWebhookHandler(h.lifecycle, h.metrics, webhookSecret, h.logger).Routes())
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type admitRequest struct {
	SubscriptionID string `json:"subscription_id"`
	Component      string `json:"component"`
}

type admitResponse struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Used      int64  `json:"used"`
	Limit     *int64 `json:"limit,omitempty"`
	Remaining *int64 `json:"remaining,omitempty"`
	PlanID    string `json:"plan_id,omitempty"`
}

func (h *Handler) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SubscriptionID == "" || req.Component == "" {
		writeError(w, http.StatusBadRequest, "subscription_id and component are required")
		return
	}

	decision, err := h.admission.Admit(r.Context(), req.SubscriptionID, req.Component)
	if err != nil {
		h.logger.Error().Err(err).Str("subscription_id", req.SubscriptionID).Msg("admit failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	outcome := "allowed"
	if !decision.Allowed {
		outcome = string(decision.Reason)
	}
	h.metrics.AdmitTotal.WithLabelValues(req.Component, outcome).Inc()

	status := http.StatusOK
	if !decision.Allowed {
		// Denials map to HTTP statuses the caller can branch on without
		// parsing the body.
		switch decision.Reason {
		case quota.DenyQuotaExceeded:
			status = http.StatusTooManyRequests
		case quota.DenyFeatureNotInPlan:
			status = http.StatusForbidden
		default:
			status = http.StatusPaymentRequired
		}
	}
	writeJSON(w, status, admitResponse{
		Allowed:   decision.Allowed,
		Reason:    string(decision.Reason),
		Used:      decision.Used,
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
		PlanID:    decision.PlanID,
	})
}

type recordRequest struct {
	SubscriptionID string `json:"subscription_id"`
	Component      string `json:"component"`
	Amount         int64  `json:"amount"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SubscriptionID == "" || req.Component == "" {
		writeError(w, http.StatusBadRequest, "subscription_id and component are required")
		return
	}

	if err := h.recorder.Record(r.Context(), req.SubscriptionID, req.Component, req.Amount); err != nil {
		h.logger.Error().Err(err).Str("subscription_id", req.SubscriptionID).Msg("record failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	amount := req.Amount
	if amount <= 0 {
		amount = 1
	}
	h.metrics.UsageRecorded.WithLabelValues(req.Component).Add(float64(amount))
	w.WriteHeader(http.StatusNoContent)
}

type subscribeRequest struct {
	OwnerID string `json:"owner_id"`
	PlanID  string `json:"plan_id"`
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OwnerID == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "owner_id and plan_id are required")
		return
	}

	sub, err := h.lifecycle.Subscribe(r.Context(), req.OwnerID, req.PlanID)
	switch {
	case errors.Is(err, app.ErrOwnerHasLiveSubscription):
		writeError(w, http.StatusConflict, "owner already has a live subscription")
		return
	case errors.Is(err, app.ErrPlanNotAvailable):
		writeError(w, http.StatusNotFound, "plan not available")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("owner_id", req.OwnerID).Msg("subscribe failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      sub.ID,
		"status":  string(sub.Status),
		"plan_id": sub.PlanID,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	immediate := r.URL.Query().Get("immediate") == "true"

	err := h.lifecycle.Cancel(r.Context(), id, immediate)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	case errors.Is(err, subscription.ErrInvalidTransition):
		h.logger.Warn().Err(err).Str("subscription_id", id).Bool("immediate", immediate).Msg("cancel rejected")
		writeError(w, http.StatusConflict, "subscription cannot be cancelled in its current state")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("subscription_id", id).Msg("cancel failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
