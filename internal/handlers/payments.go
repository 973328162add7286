package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oakline/api/internal/platform/httpx"
)

// PaymentsHandlers exposes the processor configuration the client SDK needs.
type PaymentsHandlers struct {
	publishableKey string
}

// NewPaymentsHandlers constructs the payments configuration handlers.
func NewPaymentsHandlers(publishableKey string) *PaymentsHandlers {
	return &PaymentsHandlers{
		publishableKey: strings.TrimSpace(publishableKey),
	}
}

// Routes registers the payments endpoints under the provided router.
func (h *PaymentsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/publishable-key", h.getPublishableKey)
}

func (h *PaymentsHandlers) getPublishableKey(w http.ResponseWriter, r *http.Request) {
	if h.publishableKey == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("ERROR", "publishable key not configured", http.StatusServiceUnavailable))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"publishableKey": h.publishableKey})
}
