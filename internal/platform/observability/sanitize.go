package observability

import (
	"strings"
	"unicode"
)

const (
	defaultStringLimit = 256
	redactedValue      = "[REDACTED]"
)

// Field names whose values must never reach the logs: payment intent client
// secrets, processor credentials, webhook signatures, and auth material.
var sensitiveFields = map[string]struct{}{
	"clientsecret":     {},
	"client_secret":    {},
	"publishablekey":   {},
	"apikey":           {},
	"api_key":          {},
	"webhooksecret":    {},
	"webhook_secret":   {},
	"stripe-signature": {},
	"authorization":    {},
	"idempotency-key":  {},
	"token":            {},
	"password":         {},
}

// RedactField masks values of sensitive log fields and passes everything else
// through unchanged.
func RedactField(name string, value any) any {
	if _, sensitive := sensitiveFields[strings.ToLower(strings.TrimSpace(name))]; sensitive {
		return redactedValue
	}
	return value
}

// sanitizeString strips control characters and caps the length so header or
// path values cannot inject extra log lines.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, value)

	if runes := []rune(cleaned); len(runes) > limit {
		cleaned = string(runes[:limit])
	}
	return cleaned
}

// SanitizeRoute cleans a route pattern before it is logged or attached to a
// span.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method string.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID caps customer identifiers before logging.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, 64)
}
