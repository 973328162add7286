package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentAPI struct {
	newFunc    func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	updateFunc func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getFunc    func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.newFunc(params)
}

func (s *stubIntentAPI) Update(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.updateFunc(id, params)
}

func (s *stubIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.getFunc(id, params)
}

type stubTaxCalculationAPI struct {
	newFunc func(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error)
}

func (s *stubTaxCalculationAPI) New(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error) {
	return s.newFunc(params)
}

type stubTaxTransactionAPI struct {
	createFunc func(params *stripe.TaxTransactionCreateFromCalculationParams) (*stripe.TaxTransaction, error)
}

func (s *stubTaxTransactionAPI) CreateFromCalculation(params *stripe.TaxTransactionCreateFromCalculationParams) (*stripe.TaxTransaction, error) {
	return s.createFunc(params)
}

func newTestProvider(t *testing.T, clients stripeClients) *StripeProvider {
	t.Helper()
	if clients.intents == nil {
		clients.intents = &stubIntentAPI{}
	}
	if clients.taxCalculations == nil {
		clients.taxCalculations = &stubTaxCalculationAPI{}
	}
	if clients.taxTransactions == nil {
		clients.taxTransactions = &stubTaxTransactionAPI{}
	}
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &clients,
		Clock:   func() time.Time { return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestCreatePaymentIntentSetsCardAndMetadata(t *testing.T) {
	var captured *stripe.PaymentIntentParams
	provider := newTestProvider(t, stripeClients{
		intents: &stubIntentAPI{newFunc: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			captured = params
			return &stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: 12999}, nil
		}},
	})

	intent, err := provider.CreatePaymentIntent(context.Background(), CreateIntentInput{
		Amount:           12999,
		Currency:         "EUR",
		TransactionID:    "txn-1",
		TaxCalculationID: "taxcalc_1",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected client secret %q", intent.ClientSecret)
	}
	if captured == nil || *captured.Amount != 12999 {
		t.Fatalf("amount not forwarded")
	}
	if *captured.Currency != "eur" {
		t.Fatalf("currency should be lower-cased, got %q", *captured.Currency)
	}
	if len(captured.PaymentMethodTypes) != 1 || *captured.PaymentMethodTypes[0] != "card" {
		t.Fatalf("expected card payment method type")
	}
	if captured.Metadata["transactionId"] != "txn-1" || captured.Metadata["calculation"] != "taxcalc_1" {
		t.Fatalf("metadata not forwarded: %v", captured.Metadata)
	}
}

func TestCalculateTaxBuildsMinorUnitLines(t *testing.T) {
	var captured *stripe.TaxCalculationParams
	provider := newTestProvider(t, stripeClients{
		taxCalculations: &stubTaxCalculationAPI{newFunc: func(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error) {
			captured = params
			return &stripe.TaxCalculation{
				ID:                 "taxcalc_1",
				TaxAmountExclusive: 437,
				AmountTotal:        4435,
				CustomerDetails: &stripe.TaxCalculationCustomerDetails{
					Address: &stripe.Address{Country: "FR", City: "Paris"},
				},
			}, nil
		}},
	})

	calc, err := provider.CalculateTax(context.Background(), TaxCalculationInput{
		Currency: "eur",
		Lines: []TaxLineItem{
			{Amount: 1998, Quantity: 2, Reference: "sku-1"},
		},
		ShippingCost: 2000,
		Address:      TaxAddress{Line1: "1 Rue de Rivoli", City: "Paris", PostalCode: "75001", Country: "FR"},
	})
	if err != nil {
		t.Fatalf("calculate tax: %v", err)
	}

	if calc.ID != "taxcalc_1" || calc.TaxAmount != 437 || calc.AmountTotal != 4435 {
		t.Fatalf("unexpected calculation %+v", calc)
	}
	if calc.Address.Country != "FR" {
		t.Fatalf("expected resolved address country FR, got %q", calc.Address.Country)
	}
	if captured.ShippingCost == nil || *captured.ShippingCost.Amount != 2000 {
		t.Fatalf("shipping cost not forwarded")
	}
	if len(captured.LineItems) != 1 || *captured.LineItems[0].Amount != 1998 || *captured.LineItems[0].Quantity != 2 {
		t.Fatalf("line items not forwarded: %+v", captured.LineItems)
	}
	if *captured.CustomerDetails.AddressSource != "billing" {
		t.Fatalf("expected billing address source, got %q", *captured.CustomerDetails.AddressSource)
	}
}

func TestStripeErrorsCarryUpperCasedCode(t *testing.T) {
	provider := newTestProvider(t, stripeClients{
		taxCalculations: &stubTaxCalculationAPI{newFunc: func(*stripe.TaxCalculationParams) (*stripe.TaxCalculation, error) {
			return nil, &stripe.Error{Code: stripe.ErrorCode("customer_tax_location_invalid")}
		}},
	})

	_, err := provider.CalculateTax(context.Background(), TaxCalculationInput{
		Currency: "eur",
		Lines:    []TaxLineItem{{Amount: 100, Quantity: 1, Reference: "sku-1"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}

	code, ok := ErrorCode(err)
	if !ok || code != "CUSTOMER_TAX_LOCATION_INVALID" {
		t.Fatalf("expected upper-cased code, got %q ok=%v", code, ok)
	}
}

func TestRetrievePaymentIntentExpandsBalance(t *testing.T) {
	provider := newTestProvider(t, stripeClients{
		intents: &stubIntentAPI{getFunc: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			if id != "pi_1" {
				t.Fatalf("unexpected intent id %q", id)
			}
			found := false
			for _, expand := range params.Expand {
				if *expand == "latest_charge.balance_transaction" {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected balance transaction expand")
			}
			return &stripe.PaymentIntent{
				ID:     "pi_1",
				Status: stripe.PaymentIntentStatusSucceeded,
				LatestCharge: &stripe.Charge{
					BalanceTransaction: &stripe.BalanceTransaction{
						Fee:          87,
						ExchangeRate: 1.08,
						AvailableOn:  1709500000,
					},
				},
			}, nil
		}},
	})

	details, err := provider.RetrievePaymentIntent(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("retrieve intent: %v", err)
	}
	if details.Balance == nil || details.Balance.Fee != 87 {
		t.Fatalf("expected balance fee 87, got %+v", details.Balance)
	}
	if details.Balance.ExchangeRate == nil || *details.Balance.ExchangeRate != 1.08 {
		t.Fatalf("expected exchange rate 1.08")
	}
	if details.Balance.AvailableOn.IsZero() {
		t.Fatalf("expected available-on timestamp")
	}
}

func TestRecordTaxTransaction(t *testing.T) {
	provider := newTestProvider(t, stripeClients{
		taxTransactions: &stubTaxTransactionAPI{createFunc: func(params *stripe.TaxTransactionCreateFromCalculationParams) (*stripe.TaxTransaction, error) {
			if *params.Calculation != "taxcalc_1" || *params.Reference != "txn-1" {
				t.Fatalf("unexpected params %+v", params)
			}
			return &stripe.TaxTransaction{ID: "taxtxn_1"}, nil
		}},
	})

	record, err := provider.RecordTaxTransaction(context.Background(), "taxcalc_1", "txn-1")
	if err != nil {
		t.Fatalf("record tax transaction: %v", err)
	}
	if record.ID != "taxtxn_1" {
		t.Fatalf("unexpected record id %q", record.ID)
	}
}

func TestDecodeWebhookEventParsesIntent(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"id":            "pi_1",
		"client_secret": "pi_1_secret",
		"status":        "succeeded",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	event, err := decodeWebhookEvent(stripe.Event{
		Type: "payment_intent.succeeded",
		Data: &stripe.EventData{Raw: raw},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Intent == nil || event.Intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("expected intent snapshot, got %+v", event.Intent)
	}
}

func TestDecodeWebhookEventIgnoresOtherTypes(t *testing.T) {
	event, err := decodeWebhookEvent(stripe.Event{Type: "payment_method.attached"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Intent != nil {
		t.Fatalf("expected no intent snapshot for non-intent event")
	}
}

func TestConstructWebhookEventRejectsBadSignature(t *testing.T) {
	clients := stripeClients{
		intents:         &stubIntentAPI{},
		taxCalculations: &stubTaxCalculationAPI{},
		taxTransactions: &stubTaxTransactionAPI{},
	}
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients:       &clients,
		WebhookSecret: "whsec_test",
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := provider.ConstructWebhookEvent([]byte(`{}`), "t=1,v1=bogus"); err == nil {
		t.Fatalf("expected signature verification failure")
	} else if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: %v", err)
	}
}
