// Package payments defines the payment processor boundary: intents, tax
// calculations, tax records and webhook event verification.
package payments

import (
	"context"
	"time"
)

// TaxAddress is the address a tax calculation runs against. Country and
// State are the two-letter codes the processor expects.
type TaxAddress struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// TaxLineItem is one basket line expressed in minor currency units.
type TaxLineItem struct {
	Amount    int64
	Quantity  int64
	Reference string
}

// TaxCalculationInput carries everything needed to price tax for a basket.
type TaxCalculationInput struct {
	Currency     string
	Lines        []TaxLineItem
	ShippingCost int64
	Address      TaxAddress
}

// TaxCalculation is the processor's answer: an id to settle against later,
// the tax amount and tax-inclusive grand total in minor units, and the
// address actually taxed. AmountTotal is the processor's own arithmetic and
// is what the payment intent must charge.
type TaxCalculation struct {
	ID          string
	TaxAmount   int64
	AmountTotal int64
	Address     TaxAddress
}

// CreateIntentInput carries the parameters for a new payment intent.
type CreateIntentInput struct {
	Amount           int64
	Currency         string
	TransactionID    string
	TaxCalculationID string
}

// UpdateIntentInput refreshes an existing intent after a retried submission.
type UpdateIntentInput struct {
	IntentID         string
	Amount           int64
	TransactionID    string
	TaxCalculationID string
}

// PaymentIntent is the subset of the processor's intent the API consumes.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Status       string
}

// BalanceTransaction describes how the processor settled the charge.
type BalanceTransaction struct {
	Fee          int64
	ExchangeRate *float64
	AvailableOn  time.Time
}

// PaymentIntentDetails is an intent with its balance transaction expanded.
type PaymentIntentDetails struct {
	PaymentIntent
	Balance *BalanceTransaction
}

// TaxTransaction is the permanent tax record created at settlement.
type TaxTransaction struct {
	ID string
}

// IntentSnapshot is the payment intent state carried by a webhook event.
type IntentSnapshot struct {
	ID           string
	ClientSecret string
	Status       string
}

// WebhookEvent is a verified event received from the processor.
type WebhookEvent struct {
	Type   string
	Intent *IntentSnapshot
}

// Provider is the payment processor boundary.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, input UpdateIntentInput) (PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (PaymentIntentDetails, error)
	CalculateTax(ctx context.Context, input TaxCalculationInput) (TaxCalculation, error)
	RecordTaxTransaction(ctx context.Context, calculationID, reference string) (TaxTransaction, error)
	ConstructWebhookEvent(payload []byte, signature string) (WebhookEvent, error)
}
