package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestMemoryStoreReserveLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := fixedTime

	first, err := store.Reserve(ctx, "user-1|key-1", "fp-1", now, time.Hour)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if first.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v", first.State)
	}

	pending, err := store.Reserve(ctx, "user-1|key-1", "fp-1", now, time.Hour)
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if pending.State != ReservationStatePending {
		t.Fatalf("expected pending while in flight, got %v", pending.State)
	}

	resp := Response{
		Status:  http.StatusCreated,
		Headers: http.Header{"Content-Type": {"application/json"}, "Content-Length": {"12"}},
		Body:    []byte(`{"ok":true}`),
	}
	if err := store.SaveResponse(ctx, "user-1|key-1", "fp-1", resp, now, time.Hour); err != nil {
		t.Fatalf("save response: %v", err)
	}

	replay, err := store.Reserve(ctx, "user-1|key-1", "fp-1", now.Add(time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("replay reserve: %v", err)
	}
	if replay.State != ReservationStateCompleted {
		t.Fatalf("expected completed record, got %v", replay.State)
	}
	if replay.Record.ResponseStatus != http.StatusCreated {
		t.Fatalf("stored status lost: %d", replay.Record.ResponseStatus)
	}
	if _, kept := replay.Record.ResponseHeaders["Content-Length"]; kept {
		t.Fatalf("content-length must not be captured for replay")
	}
	if got := string(replay.Record.ResponseBody); got != `{"ok":true}` {
		t.Fatalf("stored body lost: %s", got)
	}
}

func TestMemoryStoreFingerprintMismatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "user-1|key-1", "fp-1", fixedTime, time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.Reserve(ctx, "user-1|key-1", "fp-other", fixedTime, time.Hour); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}
}

func TestMemoryStoreExpiredKeyIsReusable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "user-1|key-1", "fp-1", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	later := fixedTime.Add(2 * time.Minute)
	again, err := store.Reserve(ctx, "user-1|key-1", "fp-2", later, time.Minute)
	if err != nil {
		t.Fatalf("reserve after expiry: %v", err)
	}
	if again.State != ReservationStateNew {
		t.Fatalf("expired key should be reusable, got %v", again.State)
	}
}

func TestMemoryStoreReleaseAllowsRetry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "user-1|key-1", "fp-1", fixedTime, time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Release(ctx, "user-1|key-1", "fp-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	retry, err := store.Reserve(ctx, "user-1|key-1", "fp-1", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	if retry.State != ReservationStateNew {
		t.Fatalf("released key should reserve fresh, got %v", retry.State)
	}
}
