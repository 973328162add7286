package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Update(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeTaxCalculationAPI interface {
	New(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error)
}

type stripeTaxTransactionAPI interface {
	CreateFromCalculation(params *stripe.TaxTransactionCreateFromCalculationParams) (*stripe.TaxTransaction, error)
}

type stripeClients struct {
	intents         stripePaymentIntentAPI
	taxCalculations stripeTaxCalculationAPI
	taxTransactions stripeTaxTransactionAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Clients       *stripeClients
}

// StripeProvider implements the Provider interface using Stripe APIs.
type StripeProvider struct {
	api           stripeClients
	webhookSecret string
	clock         func() time.Time
	logger        StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents:         sc.PaymentIntents,
			taxCalculations: sc.TaxCalculations,
			taxTransactions: sc.TaxTransactions,
		}
	}

	if clients.intents == nil || clients.taxCalculations == nil || clients.taxTransactions == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreatePaymentIntent creates a card payment intent for the given amount.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (PaymentIntent, error) {
	if p == nil {
		return PaymentIntent{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(input.Amount),
		Currency:           stripe.String(strings.ToLower(input.Currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	applyIntentMetadata(params, input.TransactionID, input.TaxCalculationID)

	intent, err := p.api.intents.New(params)
	if err != nil {
		return PaymentIntent{}, wrapStripeError("stripe: create payment intent", err)
	}
	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        input.Amount,
	})
	return paymentIntentFromStripe(intent), nil
}

// UpdatePaymentIntent refreshes the amount and metadata of an existing intent.
func (p *StripeProvider) UpdatePaymentIntent(ctx context.Context, input UpdateIntentInput) (PaymentIntent, error) {
	if p == nil {
		return PaymentIntent{}, errors.New("stripe: provider is nil")
	}
	if strings.TrimSpace(input.IntentID) == "" {
		return PaymentIntent{}, errors.New("stripe: intent id is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount: stripe.Int64(input.Amount),
	}
	params.Context = ctx
	applyIntentMetadata(params, input.TransactionID, input.TaxCalculationID)

	intent, err := p.api.intents.Update(input.IntentID, params)
	if err != nil {
		return PaymentIntent{}, wrapStripeError("stripe: update payment intent", err)
	}
	p.logger(ctx, "payments.stripe.intent.updated", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        input.Amount,
	})
	return paymentIntentFromStripe(intent), nil
}

// RetrievePaymentIntent fetches an intent with its balance transaction expanded.
func (p *StripeProvider) RetrievePaymentIntent(ctx context.Context, intentID string) (PaymentIntentDetails, error) {
	if p == nil {
		return PaymentIntentDetails{}, errors.New("stripe: provider is nil")
	}
	if strings.TrimSpace(intentID) == "" {
		return PaymentIntentDetails{}, errors.New("stripe: intent id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge.balance_transaction")

	intent, err := p.api.intents.Get(intentID, params)
	if err != nil {
		return PaymentIntentDetails{}, wrapStripeError("stripe: retrieve payment intent", err)
	}

	details := PaymentIntentDetails{PaymentIntent: paymentIntentFromStripe(intent)}
	if charge := intent.LatestCharge; charge != nil && charge.BalanceTransaction != nil {
		balance := &BalanceTransaction{
			Fee:         charge.BalanceTransaction.Fee,
			AvailableOn: time.Unix(charge.BalanceTransaction.AvailableOn, 0).UTC(),
		}
		if rate := charge.BalanceTransaction.ExchangeRate; rate != 0 {
			balance.ExchangeRate = &rate
		}
		details.Balance = balance
	}
	return details, nil
}

// CalculateTax runs a Stripe Tax calculation against the billing address.
func (p *StripeProvider) CalculateTax(ctx context.Context, input TaxCalculationInput) (TaxCalculation, error) {
	if p == nil {
		return TaxCalculation{}, errors.New("stripe: provider is nil")
	}
	if len(input.Lines) == 0 {
		return TaxCalculation{}, errors.New("stripe: tax calculation requires line items")
	}

	lineItems := make([]*stripe.TaxCalculationLineItemParams, 0, len(input.Lines))
	for _, line := range input.Lines {
		lineItems = append(lineItems, &stripe.TaxCalculationLineItemParams{
			Amount:    stripe.Int64(line.Amount),
			Quantity:  stripe.Int64(line.Quantity),
			Reference: stripe.String(line.Reference),
		})
	}

	params := &stripe.TaxCalculationParams{
		Currency:  stripe.String(strings.ToLower(input.Currency)),
		LineItems: lineItems,
		CustomerDetails: &stripe.TaxCalculationCustomerDetailsParams{
			Address: &stripe.AddressParams{
				Line1:      stripe.String(input.Address.Line1),
				Line2:      stripe.String(input.Address.Line2),
				City:       stripe.String(input.Address.City),
				State:      stripe.String(input.Address.State),
				PostalCode: stripe.String(input.Address.PostalCode),
				Country:    stripe.String(input.Address.Country),
			},
			AddressSource: stripe.String(string(stripe.TaxCalculationCustomerDetailsAddressSourceBilling)),
		},
	}
	if input.ShippingCost > 0 {
		params.ShippingCost = &stripe.TaxCalculationShippingCostParams{
			Amount: stripe.Int64(input.ShippingCost),
		}
	}
	params.Context = ctx
	params.AddExpand("line_items.data.tax_breakdown")

	calculation, err := p.api.taxCalculations.New(params)
	if err != nil {
		return TaxCalculation{}, wrapStripeError("stripe: calculate tax", err)
	}

	result := TaxCalculation{
		ID:          calculation.ID,
		TaxAmount:   calculation.TaxAmountExclusive,
		AmountTotal: calculation.AmountTotal,
	}
	if calculation.CustomerDetails != nil && calculation.CustomerDetails.Address != nil {
		addr := calculation.CustomerDetails.Address
		result.Address = TaxAddress{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	p.logger(ctx, "payments.stripe.tax.calculated", map[string]any{
		"calculation": result.ID,
		"taxAmount":   result.TaxAmount,
		"amountTotal": result.AmountTotal,
	})
	return result, nil
}

// RecordTaxTransaction creates the permanent tax record for a settled payment.
func (p *StripeProvider) RecordTaxTransaction(ctx context.Context, calculationID, reference string) (TaxTransaction, error) {
	if p == nil {
		return TaxTransaction{}, errors.New("stripe: provider is nil")
	}
	if strings.TrimSpace(calculationID) == "" {
		return TaxTransaction{}, errors.New("stripe: calculation id is required")
	}

	params := &stripe.TaxTransactionCreateFromCalculationParams{
		Calculation: stripe.String(calculationID),
		Reference:   stripe.String(reference),
	}
	params.Context = ctx

	record, err := p.api.taxTransactions.CreateFromCalculation(params)
	if err != nil {
		return TaxTransaction{}, wrapStripeError("stripe: record tax transaction", err)
	}
	p.logger(ctx, "payments.stripe.tax.recorded", map[string]any{
		"taxTransaction": record.ID,
		"reference":      reference,
	})
	return TaxTransaction{ID: record.ID}, nil
}

// ConstructWebhookEvent verifies the webhook signature and decodes the event.
// Without a configured secret the payload is trusted as-is, which only makes
// sense for local development.
func (p *StripeProvider) ConstructWebhookEvent(payload []byte, signature string) (WebhookEvent, error) {
	if p == nil {
		return WebhookEvent{}, errors.New("stripe: provider is nil")
	}

	var event stripe.Event
	if p.webhookSecret != "" {
		verified, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
		if err != nil {
			return WebhookEvent{}, fmt.Errorf("stripe: verify webhook signature: %w", err)
		}
		event = verified
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode webhook payload: %w", err)
	}

	return decodeWebhookEvent(event)
}

func decodeWebhookEvent(event stripe.Event) (WebhookEvent, error) {
	result := WebhookEvent{Type: string(event.Type)}
	if !strings.HasPrefix(result.Type, "payment_intent.") {
		return result, nil
	}
	if event.Data == nil {
		return WebhookEvent{}, errors.New("stripe: payment intent event without data")
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode payment intent event: %w", err)
	}
	result.Intent = &IntentSnapshot{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}
	return result, nil
}

func applyIntentMetadata(params *stripe.PaymentIntentParams, transactionID, taxCalculationID string) {
	if strings.TrimSpace(transactionID) != "" {
		params.AddMetadata("transactionId", transactionID)
	}
	if strings.TrimSpace(taxCalculationID) != "" {
		params.AddMetadata("calculation", taxCalculationID)
	}
}

func paymentIntentFromStripe(intent *stripe.PaymentIntent) PaymentIntent {
	if intent == nil {
		return PaymentIntent{}
	}
	return PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Status:       string(intent.Status),
	}
}
