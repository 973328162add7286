// Package services implements the business workflows behind the API
// handlers. Services are constructed from Deps structs, validate their
// required collaborators up front, and report failures through sentinel
// errors the handler layer translates into HTTP responses.
package services

import (
	"context"
	"time"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/payments"
)

// Logger is the structured logging contract injected into services.
type Logger func(ctx context.Context, event string, fields map[string]any)

// PricedBasket is the outcome of pricing a submitted basket.
type PricedBasket struct {
	Lines    []domain.PricedLine
	Subtotal string
}

// PricingService resolves basket lines against the catalogue and computes
// exact decimal line totals.
type PricingService interface {
	PriceBasket(ctx context.Context, lines []domain.BasketLine) (PricedBasket, error)
}

// ShippingService estimates the shipping charge for priced lines sent to a
// destination address.
type ShippingService interface {
	Estimate(ctx context.Context, lines []domain.PricedLine, destination domain.Address) (string, error)
}

// CreateSalesTransactionCommand carries a checkout submission. ClientSecret
// is set when the client retries a submission it already holds an intent
// for. DeliveryAddress names the saved address to ship to ("billing" or
// "delivery"); empty defaults to billing.
type CreateSalesTransactionCommand struct {
	CustomerID      string
	Lines           []domain.BasketLine
	DeliveryAddress string
	ClientSecret    string
}

// SalesTransactionResult is returned to the client so it can confirm the
// payment. TaxAddress is the address the processor actually taxed against.
type SalesTransactionResult struct {
	TransactionID string
	ClientSecret  string
	Amounts       domain.OrderAmounts
	TaxAddress    domain.Address
}

// CustomerOrder is an order history entry with the customer-facing status.
type CustomerOrder struct {
	TransactionID string
	Status        string
	Amounts       domain.OrderAmounts
	Lines         []domain.PricedLine
	CreatedAt     time.Time
}

// TransactionService orchestrates the sales transaction workflow.
type TransactionService interface {
	CreateSalesTransaction(ctx context.Context, cmd CreateSalesTransactionCommand) (SalesTransactionResult, error)
	ListCustomerOrders(ctx context.Context, customerID string) ([]CustomerOrder, error)
}

// SettlementService reacts to verified payment processor events.
type SettlementService interface {
	HandleEvent(ctx context.Context, event payments.WebhookEvent) error
}

// FulfillmentService runs the post-purchase work for a settled order.
type FulfillmentService interface {
	Process(ctx context.Context, order domain.Order) error
}

// CatalogService exposes the public product listing.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// ContactService manages the customer's stored contact details.
type ContactService interface {
	GetContact(ctx context.Context, customerID string) (domain.Contact, error)
	SaveContact(ctx context.Context, contact domain.Contact) (domain.Contact, error)
}

// OrderSettledMessage is published after an order settles so downstream
// consumers (receipts, notifications) can react asynchronously.
type OrderSettledMessage struct {
	TransactionID string    `json:"transactionId"`
	CustomerID    string    `json:"customerId"`
	Total         string    `json:"total"`
	Currency      string    `json:"currency"`
	SettledAt     time.Time `json:"settledAt"`
}

// OrderEventPublisher publishes order lifecycle events to a message broker.
type OrderEventPublisher interface {
	PublishOrderSettled(ctx context.Context, message OrderSettledMessage) (string, error)
}
