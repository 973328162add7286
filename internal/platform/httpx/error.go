// Package httpx renders the JSON error envelope shared by every API surface.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/oakline/api/internal/platform/requestctx"
)

// Error is an API error with a machine code, a human message, and the HTTP
// status it maps to.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError builds an Error, clamping a zero status to 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    singleLine(code, 80),
		Message: singleLine(message, 512),
		Status:  status,
	}
}

type errorEnvelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteError renders the envelope as JSON. Request and trace identifiers are
// pulled from the context so handlers never thread them by hand.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	envelope := errorEnvelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: singleLine(middleware.GetReqID(ctx), 80),
		TraceID:   singleLine(requestctx.TraceID(ctx), 64),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// singleLine folds newlines into spaces and caps the length so a value from a
// request can never spray across log or response lines.
func singleLine(value string, limit int) string {
	replacer := strings.NewReplacer("\n", " ", "\r", " ")
	value = strings.TrimSpace(replacer.Replace(value))
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
