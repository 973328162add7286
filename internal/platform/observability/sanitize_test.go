package observability

import "testing"

func TestRedactFieldMasksPaymentSecrets(t *testing.T) {
	cases := map[string]any{
		"clientSecret":     "pi_123_secret_456",
		"apiKey":           "sk_test_abc",
		"Stripe-Signature": "t=1,v1=deadbeef",
		"Authorization":    "Bearer eyJ...",
	}
	for name, value := range cases {
		if got := RedactField(name, value); got != "[REDACTED]" {
			t.Fatalf("field %s not redacted: %v", name, got)
		}
	}

	if got := RedactField("transactionId", "txn-1"); got != "txn-1" {
		t.Fatalf("plain field mangled: %v", got)
	}
	if got := RedactField("amount", int64(7436)); got != int64(7436) {
		t.Fatalf("non-string field mangled: %v", got)
	}
}

func TestSanitizeStringStripsControlCharacters(t *testing.T) {
	if got := sanitizeString("order\x00-1\x1b[31m", 64); got != "order-1[31m" {
		t.Fatalf("control characters survived: %q", got)
	}
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("empty route should map to /, got %q", got)
	}
	if got := SanitizeMethod("POST"); got != "POST" {
		t.Fatalf("method mangled: %q", got)
	}
}
