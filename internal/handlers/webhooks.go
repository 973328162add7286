package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oakline/api/internal/payments"
	"github.com/oakline/api/internal/platform/httpx"
	"github.com/oakline/api/internal/services"
)

const maxWebhookBody = 64 * 1024

// WebhookHandlers receives and verifies payment processor callbacks.
type WebhookHandlers struct {
	provider   payments.Provider
	settlement services.SettlementService
	logger     services.Logger
}

// NewWebhookHandlers constructs the webhook handlers.
func NewWebhookHandlers(provider payments.Provider, settlement services.SettlementService, logger services.Logger) *WebhookHandlers {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &WebhookHandlers{
		provider:   provider,
		settlement: settlement,
		logger:     logger,
	}
}

// Routes registers the webhook endpoints under the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

// handleStripe verifies the signature, hands the event to the settlement
// service, and always acks handled events so the processor stops retrying.
// Verification failures are the one 4xx path.
func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.provider == nil || h.settlement == nil {
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", "failed to read webhook payload", http.StatusBadRequest))
		return
	}

	event, err := h.provider.ConstructWebhookEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger(ctx, "webhook.stripe.verification_failed", map[string]any{"error": err.Error()})
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_SIGNATURE", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	if err := h.settlement.HandleEvent(ctx, event); err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			h.logger(ctx, "webhook.stripe.order_missing", map[string]any{
				"type":  event.Type,
				"error": err.Error(),
			})
			writeJSONResponse(w, http.StatusOK, map[string]string{"received": "true"})
			return
		}
		h.logger(ctx, "webhook.stripe.failed", map[string]any{
			"type":  event.Type,
			"error": err.Error(),
		})
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "failed to process webhook event", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"received": "true"})
}
