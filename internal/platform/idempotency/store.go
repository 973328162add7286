// Package idempotency guards checkout submissions against duplicate delivery:
// a client retrying POST /transactions with the same Idempotency-Key gets the
// stored response back instead of a second payment intent.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status is the lifecycle state of a stored reservation.
type Status string

const (
	// DefaultTTL bounds how long a completed checkout response is replayable.
	DefaultTTL = 24 * time.Hour

	// StatusPending marks a key reserved by an in-flight request.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response is stored and replayable.
	StatusCompleted Status = "completed"
)

// ReservationState tells the middleware what to do with the request.
type ReservationState int

const (
	// ReservationStateNew lets the request proceed to the handler.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted replays the stored response.
	ReservationStateCompleted
	// ReservationStatePending rejects the request while another is in flight.
	ReservationStatePending
)

// Reservation is the outcome of reserving a key.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted reservation plus the response captured for replay.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the HTTP response captured after the handler ran.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations. Implementations must treat a lapsed record as
// absent so an expired key can be reused.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
}

// ErrFingerprintMismatch signals a key reused for a different request body,
// path, or caller.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// recordID derives the storage id from the scoped key. Hashing keeps
// client-chosen keys out of document ids and bounds their length.
func recordID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func lapsed(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

// Hop-by-hop and derived headers are not meaningful on replay.
var uncapturedHeaders = map[string]struct{}{
	"content-length":      {},
	"date":                {},
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

func captureHeaders(header http.Header) map[string][]string {
	captured := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if _, skip := uncapturedHeaders[strings.ToLower(canonical)]; skip {
			continue
		}
		captured[canonical] = append([]string(nil), values...)
	}
	if len(captured) == 0 {
		return nil
	}
	return captured
}

func replayHeaders(stored map[string][]string) http.Header {
	header := make(http.Header, len(stored))
	for name, values := range stored {
		header[name] = append([]string(nil), values...)
	}
	return header
}
