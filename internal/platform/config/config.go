// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config aggregates every runtime setting the API consumes.
type Config struct {
	Environment string
	Server      ServerConfig
	Firestore   FirestoreConfig
	Firebase    FirebaseConfig
	PubSub      PubSubConfig
	Stripe      StripeConfig
	Shop        ShopConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirestoreConfig selects the Firestore project backing persistence.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// FirebaseConfig selects the identity project bearer tokens verify against.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// PubSubConfig selects the topic order settlement events are published to.
// An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
}

// StripeConfig carries the payment processor credentials.
type StripeConfig struct {
	APIKey         string
	PublishableKey string
	WebhookSecret  string
}

// ShopConfig carries the commerce settings.
type ShopConfig struct {
	Currency            string
	ShippingRatePerItem string
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

// LoadFromEnv reads configuration using the provided lookup, which makes the
// loader testable without mutating the process environment.
func LoadFromEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Config{
		Environment: envString(getenv, "APP_ENV", "development"),
		Server: ServerConfig{
			Addr:            ":" + envString(getenv, "PORT", "8080"),
			ReadTimeout:     envDuration(getenv, "SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    envDuration(getenv, "SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     envDuration(getenv, "SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: envDuration(getenv, "SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Firestore: FirestoreConfig{
			ProjectID:    envString(getenv, "FIRESTORE_PROJECT_ID", envString(getenv, "GOOGLE_CLOUD_PROJECT", "")),
			EmulatorHost: envString(getenv, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID:       envString(getenv, "FIREBASE_PROJECT_ID", envString(getenv, "GOOGLE_CLOUD_PROJECT", "")),
			CredentialsFile: envString(getenv, "FIREBASE_CREDENTIALS_FILE", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:        envString(getenv, "PUBSUB_PROJECT_ID", envString(getenv, "GOOGLE_CLOUD_PROJECT", "")),
			OrderEventsTopic: envString(getenv, "PUBSUB_ORDER_EVENTS_TOPIC", ""),
		},
		Stripe: StripeConfig{
			APIKey:         envString(getenv, "STRIPE_SECRET_KEY", ""),
			PublishableKey: envString(getenv, "STRIPE_PUBLISHABLE_KEY", ""),
			WebhookSecret:  envString(getenv, "STRIPE_WEBHOOK_SECRET", ""),
		},
		Shop: ShopConfig{
			Currency:            strings.ToLower(envString(getenv, "SHOP_CURRENCY", "eur")),
			ShippingRatePerItem: envString(getenv, "SHOP_SHIPPING_RATE_PER_ITEM", "20.00"),
		},
	}

	if cfg.Stripe.APIKey == "" {
		return Config{}, fmt.Errorf("config: STRIPE_SECRET_KEY is required")
	}
	if cfg.Firestore.ProjectID == "" && cfg.Firestore.EmulatorHost == "" {
		return Config{}, fmt.Errorf("config: FIRESTORE_PROJECT_ID is required")
	}
	if _, err := decimal.NewFromString(cfg.Shop.ShippingRatePerItem); err != nil {
		return Config{}, fmt.Errorf("config: SHOP_SHIPPING_RATE_PER_ITEM %q is not a decimal amount", cfg.Shop.ShippingRatePerItem)
	}
	if len(cfg.Shop.Currency) != 3 {
		return Config{}, fmt.Errorf("config: SHOP_CURRENCY %q is not a three-letter code", cfg.Shop.Currency)
	}

	return cfg, nil
}

func envString(getenv func(string) string, key, fallback string) string {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envDuration(getenv func(string) string, key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
