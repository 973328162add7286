package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/oakline/api/internal/payments"
	"github.com/oakline/api/internal/services"
)

type stubWebhookProvider struct {
	payments.Provider

	constructFunc func(payload []byte, signature string) (payments.WebhookEvent, error)
}

func (s *stubWebhookProvider) ConstructWebhookEvent(payload []byte, signature string) (payments.WebhookEvent, error) {
	if s.constructFunc == nil {
		return payments.WebhookEvent{}, errors.New("unexpected webhook")
	}
	return s.constructFunc(payload, signature)
}

type stubSettlementService struct {
	handleFunc func(ctx context.Context, event payments.WebhookEvent) error
}

func (s *stubSettlementService) HandleEvent(ctx context.Context, event payments.WebhookEvent) error {
	if s.handleFunc == nil {
		return nil
	}
	return s.handleFunc(ctx, event)
}

func newWebhookRouter(provider payments.Provider, settlement services.SettlementService) chi.Router {
	handlers := NewWebhookHandlers(provider, settlement, nil)
	r := chi.NewRouter()
	handlers.Routes(r)
	return r
}

func TestHandleStripeVerifiesAndDispatches(t *testing.T) {
	var gotSignature string
	provider := &stubWebhookProvider{
		constructFunc: func(payload []byte, signature string) (payments.WebhookEvent, error) {
			gotSignature = signature
			return payments.WebhookEvent{
				Type:   "payment_intent.succeeded",
				Intent: &payments.IntentSnapshot{ID: "pi_1", ClientSecret: "pi_1_secret"},
			}, nil
		},
	}
	var handled *payments.WebhookEvent
	settlement := &stubSettlementService{
		handleFunc: func(_ context.Context, event payments.WebhookEvent) error {
			handled = &event
			return nil
		},
	}

	router := newWebhookRouter(provider, settlement)

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{"type":"payment_intent.succeeded"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotSignature != "t=1,v1=abc" {
		t.Fatalf("signature header not forwarded, got %q", gotSignature)
	}
	if handled == nil || handled.Type != "payment_intent.succeeded" {
		t.Fatalf("event not dispatched: %+v", handled)
	}
}

func TestHandleStripeRejectsBadSignature(t *testing.T) {
	provider := &stubWebhookProvider{
		constructFunc: func([]byte, string) (payments.WebhookEvent, error) {
			return payments.WebhookEvent{}, errors.New("signature mismatch")
		},
	}
	settlement := &stubSettlementService{
		handleFunc: func(context.Context, payments.WebhookEvent) error {
			t.Fatalf("unverified event must not reach settlement")
			return nil
		},
	}

	router := newWebhookRouter(provider, settlement)

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "INVALID_SIGNATURE" {
		t.Fatalf("expected INVALID_SIGNATURE, got %v", body["error"])
	}
}

func TestHandleStripeAcksUnknownOrder(t *testing.T) {
	provider := &stubWebhookProvider{
		constructFunc: func([]byte, string) (payments.WebhookEvent, error) {
			return payments.WebhookEvent{Type: "payment_intent.succeeded"}, nil
		},
	}
	settlement := &stubSettlementService{
		handleFunc: func(context.Context, payments.WebhookEvent) error {
			return services.ErrOrderNotFound
		},
	}

	router := newWebhookRouter(provider, settlement)

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("events for unknown orders must be acked, got %d", rr.Code)
	}
}

func TestHandleStripeReportsProcessingFailure(t *testing.T) {
	provider := &stubWebhookProvider{
		constructFunc: func([]byte, string) (payments.WebhookEvent, error) {
			return payments.WebhookEvent{Type: "payment_intent.succeeded"}, nil
		},
	}
	settlement := &stubSettlementService{
		handleFunc: func(context.Context, payments.WebhookEvent) error {
			return errors.New("settle failed")
		},
	}

	router := newWebhookRouter(provider, settlement)

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 so the processor retries, got %d", rr.Code)
	}
}
