package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oakline/api/internal/platform/requestctx"
)

func TestWriteErrorRendersEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})

	rr := httptest.NewRecorder()
	WriteError(ctx, rr, NewError("CONTACT_NOT_FOUND", "no contact details saved", http.StatusNotFound))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %s", got)
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Status  int    `json:"status"`
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.Error != "CONTACT_NOT_FOUND" || body.Status != http.StatusNotFound {
		t.Fatalf("unexpected envelope %+v", body)
	}
	if body.TraceID != "trace-1" {
		t.Fatalf("trace id not propagated: %+v", body)
	}
}

func TestNewErrorFoldsNewlinesAndClampsStatus(t *testing.T) {
	err := NewError("INVALID_REQUEST", "line one\nline two", 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected zero status to clamp to 500, got %d", err.Status)
	}
	if err.Message != "line one line two" {
		t.Fatalf("newline not folded: %q", err.Message)
	}
}
