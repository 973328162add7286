package config

import (
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(envMap(map[string]string{
		"STRIPE_SECRET_KEY":    "sk_test_123",
		"FIRESTORE_PROJECT_ID": "demo-project",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Shop.Currency != "eur" {
		t.Fatalf("expected default currency eur, got %s", cfg.Shop.Currency)
	}
	if cfg.Shop.ShippingRatePerItem != "20.00" {
		t.Fatalf("expected default shipping rate 20.00, got %s", cfg.Shop.ShippingRatePerItem)
	}
}

func TestLoadRequiresStripeKey(t *testing.T) {
	if _, err := LoadFromEnv(envMap(map[string]string{
		"FIRESTORE_PROJECT_ID": "demo-project",
	})); err == nil {
		t.Fatalf("expected error for missing stripe key")
	}
}

func TestLoadRejectsBadShippingRate(t *testing.T) {
	if _, err := LoadFromEnv(envMap(map[string]string{
		"STRIPE_SECRET_KEY":           "sk_test_123",
		"FIRESTORE_PROJECT_ID":        "demo-project",
		"SHOP_SHIPPING_RATE_PER_ITEM": "twenty",
	})); err == nil {
		t.Fatalf("expected error for bad shipping rate")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFromEnv(envMap(map[string]string{
		"STRIPE_SECRET_KEY":    "sk_test_123",
		"FIRESTORE_PROJECT_ID": "demo-project",
		"PORT":                 "9090",
		"SHOP_CURRENCY":        "USD",
		"SERVER_READ_TIMEOUT":  "5s",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Shop.Currency != "usd" {
		t.Fatalf("expected currency folded to usd, got %s", cfg.Shop.Currency)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected 5s read timeout, got %s", cfg.Server.ReadTimeout)
	}
}
