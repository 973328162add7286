package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/payments"
	"github.com/oakline/api/internal/reference"
	"github.com/oakline/api/internal/repositories"
)

var (
	// ErrTransactionInvalidInput signals a malformed checkout submission.
	ErrTransactionInvalidInput = errors.New("transaction: invalid input")
	// ErrContactNotFound signals that the customer has not saved the
	// contact details the tax calculation needs.
	ErrContactNotFound = errors.New("transaction: contact not found")
)

// TransactionServiceDeps wires the orchestrator dependencies.
type TransactionServiceDeps struct {
	Orders   repositories.OrderRepository
	Users    repositories.UserRepository
	Contacts repositories.ContactRepository
	Pricing  PricingService
	Shipping ShippingService
	Payments payments.Provider
	Currency string
	Clock    func() time.Time
	Logger   Logger
}

type transactionService struct {
	orders   repositories.OrderRepository
	users    repositories.UserRepository
	contacts repositories.ContactRepository
	pricing  PricingService
	shipping ShippingService
	payments payments.Provider
	currency string
	clock    func() time.Time
	logger   Logger
}

// NewTransactionService constructs the sales transaction orchestrator.
func NewTransactionService(deps TransactionServiceDeps) (TransactionService, error) {
	if deps.Orders == nil {
		return nil, errors.New("transaction service requires order repository")
	}
	if deps.Users == nil {
		return nil, errors.New("transaction service requires user repository")
	}
	if deps.Contacts == nil {
		return nil, errors.New("transaction service requires contact repository")
	}
	if deps.Pricing == nil {
		return nil, errors.New("transaction service requires pricing service")
	}
	if deps.Shipping == nil {
		return nil, errors.New("transaction service requires shipping service")
	}
	if deps.Payments == nil {
		return nil, errors.New("transaction service requires payments provider")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		return nil, errors.New("transaction service requires currency")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &transactionService{
		orders:   deps.Orders,
		users:    deps.Users,
		contacts: deps.Contacts,
		pricing:  deps.Pricing,
		shipping: deps.Shipping,
		payments: deps.Payments,
		currency: currency,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateSalesTransaction prices the basket, estimates shipping, runs the tax
// calculation and reconciles the result against the pending order for the
// submission. Everything before the reconciliation step is read-only; the
// reconciliation performs exactly one order write.
func (s *transactionService) CreateSalesTransaction(ctx context.Context, cmd CreateSalesTransactionCommand) (SalesTransactionResult, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return SalesTransactionResult{}, fmt.Errorf("%w: customer id is required", ErrTransactionInvalidInput)
	}

	priced, err := s.pricing.PriceBasket(ctx, cmd.Lines)
	if err != nil {
		return SalesTransactionResult{}, err
	}
	subtotal, err := domain.ParseAmount(priced.Subtotal)
	if err != nil {
		return SalesTransactionResult{}, fmt.Errorf("transaction: subtotal: %w", err)
	}

	contact, err := s.contacts.Get(ctx, customerID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return SalesTransactionResult{}, fmt.Errorf("%w: %s", ErrContactNotFound, customerID)
		}
		return SalesTransactionResult{}, fmt.Errorf("transaction: load contact: %w", err)
	}

	user, err := s.users.Get(ctx, customerID)
	if err != nil {
		return SalesTransactionResult{}, fmt.Errorf("transaction: load user: %w", err)
	}

	deliveryAddress, err := selectDeliveryAddress(contact, cmd.DeliveryAddress)
	if err != nil {
		return SalesTransactionResult{}, err
	}

	shippingCharge, err := s.shipping.Estimate(ctx, priced.Lines, deliveryAddress)
	if err != nil {
		return SalesTransactionResult{}, fmt.Errorf("transaction: estimate shipping: %w", err)
	}
	shipping, err := domain.ParseAmount(shippingCharge)
	if err != nil {
		return SalesTransactionResult{}, fmt.Errorf("transaction: shipping charge: %w", err)
	}

	taxAddress, err := taxAddressFromContact(contact)
	if err != nil {
		return SalesTransactionResult{}, err
	}

	taxInput := payments.TaxCalculationInput{
		Currency:     s.currency,
		ShippingCost: domain.MinorUnits(shipping),
		Address:      taxAddress,
	}
	for _, line := range priced.Lines {
		unit, err := domain.ParseAmount(line.UnitPrice)
		if err != nil {
			return SalesTransactionResult{}, fmt.Errorf("transaction: line %s: %w", line.Code, err)
		}
		taxInput.Lines = append(taxInput.Lines, payments.TaxLineItem{
			Amount:    domain.MinorUnits(unit) * line.Quantity,
			Quantity:  line.Quantity,
			Reference: line.Code,
		})
	}

	calculation, err := s.payments.CalculateTax(ctx, taxInput)
	if err != nil {
		return SalesTransactionResult{}, err
	}

	// The intent charges the processor's own grand total, not a locally
	// recomputed sum, so the accounting matches to the minor unit.
	tax := domain.AmountFromMinor(calculation.TaxAmount)
	total := domain.AmountFromMinor(calculation.AmountTotal)
	amounts := domain.OrderAmounts{
		Subtotal: domain.FormatAmount(subtotal),
		Shipping: domain.FormatAmount(shipping),
		Tax:      domain.FormatAmount(tax),
		Total:    domain.FormatAmount(total),
	}

	snapshot := orderSnapshot{
		lines:           priced.Lines,
		amounts:         amounts,
		billingAddress:  contact.Billing,
		deliveryAddress: deliveryAddress,
	}
	order, err := s.reconcileOrder(ctx, customerID, user.Address, cmd.ClientSecret, snapshot, calculation)
	if err != nil {
		return SalesTransactionResult{}, err
	}

	s.logger(ctx, "transaction.created", map[string]any{
		"transactionId": order.TransactionID,
		"customerId":    customerID,
		"total":         amounts.Total,
	})

	return SalesTransactionResult{
		TransactionID: order.TransactionID,
		ClientSecret:  order.ClientSecret,
		Amounts:       amounts,
		TaxAddress: domain.Address{
			Line1:      calculation.Address.Line1,
			Line2:      calculation.Address.Line2,
			City:       calculation.Address.City,
			Region:     calculation.Address.State,
			PostalCode: calculation.Address.PostalCode,
			Country:    calculation.Address.Country,
		},
	}, nil
}

// orderSnapshot is everything a reconciliation write freezes onto the order:
// the priced lines, the amounts, and the addresses in force at calculation
// time.
type orderSnapshot struct {
	lines           []domain.PricedLine
	amounts         domain.OrderAmounts
	billingAddress  domain.Address
	deliveryAddress domain.Address
}

// reconcileOrder is the single write step. A retried submission updates the
// intent and overwrites the pending order; anything else creates both. When
// a concurrent submission wins the insert, the loser falls back to the
// update path instead of inserting a duplicate.
func (s *transactionService) reconcileOrder(
	ctx context.Context,
	customerID, customerAddress, clientSecret string,
	snapshot orderSnapshot,
	calculation payments.TaxCalculation,
) (domain.Order, error) {
	clientSecret = strings.TrimSpace(clientSecret)

	if clientSecret != "" {
		pending, err := s.orders.FindPending(ctx, customerID, clientSecret)
		switch {
		case err == nil:
			return s.updatePendingOrder(ctx, pending, snapshot, calculation)
		case repositories.IsNotFound(err):
			// Stale secret: fall through and start a fresh transaction.
		default:
			return domain.Order{}, fmt.Errorf("transaction: find pending order: %w", err)
		}
	}

	transactionID := domain.NewTransactionID(customerAddress)
	intent, err := s.payments.CreatePaymentIntent(ctx, payments.CreateIntentInput{
		Amount:           calculation.AmountTotal,
		Currency:         s.currency,
		TransactionID:    transactionID,
		TaxCalculationID: calculation.ID,
	})
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock()
	order := domain.Order{
		TransactionID:     transactionID,
		CustomerID:        customerID,
		PaymentIntentID:   intent.ID,
		ClientSecret:      intent.ClientSecret,
		TaxCalculationID:  calculation.ID,
		Currency:          s.currency,
		Lines:             snapshot.lines,
		Amounts:           snapshot.amounts,
		BillingAddress:    snapshot.billingAddress,
		DeliveryAddress:   snapshot.deliveryAddress,
		OrderStatus:       domain.OrderStatusProcessing,
		TransactionStatus: domain.TransactionStatusRequested,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := s.orders.CreatePending(ctx, order)
	if err != nil {
		if repositories.IsConflict(err) {
			pending, findErr := s.orders.FindPending(ctx, customerID, intent.ClientSecret)
			if findErr == nil {
				return s.updatePendingOrder(ctx, pending, snapshot, calculation)
			}
		}
		return domain.Order{}, fmt.Errorf("transaction: create pending order: %w", err)
	}
	return created, nil
}

func (s *transactionService) updatePendingOrder(
	ctx context.Context,
	pending domain.Order,
	snapshot orderSnapshot,
	calculation payments.TaxCalculation,
) (domain.Order, error) {
	if _, err := s.payments.UpdatePaymentIntent(ctx, payments.UpdateIntentInput{
		IntentID:         pending.PaymentIntentID,
		Amount:           calculation.AmountTotal,
		TransactionID:    pending.TransactionID,
		TaxCalculationID: calculation.ID,
	}); err != nil {
		return domain.Order{}, err
	}

	pending.TaxCalculationID = calculation.ID
	pending.Lines = snapshot.lines
	pending.Amounts = snapshot.amounts
	pending.BillingAddress = snapshot.billingAddress
	pending.DeliveryAddress = snapshot.deliveryAddress
	pending.UpdatedAt = s.clock()

	updated, err := s.orders.UpdatePending(ctx, pending)
	if err != nil {
		return domain.Order{}, fmt.Errorf("transaction: update pending order: %w", err)
	}
	return updated, nil
}

// ListCustomerOrders returns the customer's order history with the
// customer-facing status labels.
func (s *transactionService) ListCustomerOrders(ctx context.Context, customerID string) ([]CustomerOrder, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrTransactionInvalidInput)
	}

	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("transaction: list orders: %w", err)
	}

	result := make([]CustomerOrder, 0, len(orders))
	for _, order := range orders {
		result = append(result, CustomerOrder{
			TransactionID: order.TransactionID,
			Status:        domain.DisplayStatus(order.TransactionStatus),
			Amounts:       order.Amounts,
			Lines:         order.Lines,
			CreatedAt:     order.CreatedAt,
		})
	}
	return result, nil
}

// selectDeliveryAddress resolves the address the order ships to. An empty
// selector falls back to billing; selecting "delivery" without a saved
// delivery address is the same failure as having no contact at all.
func selectDeliveryAddress(contact domain.Contact, selector string) (domain.Address, error) {
	switch strings.TrimSpace(selector) {
	case "", domain.AddressSelectorBilling:
		return contact.Billing, nil
	case domain.AddressSelectorDelivery:
		if contact.Delivery == nil {
			return domain.Address{}, fmt.Errorf("%w: no delivery address saved", ErrContactNotFound)
		}
		return *contact.Delivery, nil
	default:
		return domain.Address{}, fmt.Errorf("%w: unknown address selector %q", ErrTransactionInvalidInput, selector)
	}
}

// taxAddressFromContact maps the stored billing address onto the processor's
// address shape: alpha-3 country folded to alpha-2, and for US addresses the
// spelled-out state name folded to its postal code.
func taxAddressFromContact(contact domain.Contact) (payments.TaxAddress, error) {
	country, ok := reference.CountryAlpha2(contact.Billing.Country)
	if !ok {
		return payments.TaxAddress{}, fmt.Errorf("%w: unknown country %q", ErrTransactionInvalidInput, contact.Billing.Country)
	}

	state := strings.TrimSpace(contact.Billing.Region)
	if country == "US" {
		if code, ok := reference.USStateCode(state); ok {
			state = code
		}
	}

	return payments.TaxAddress{
		Line1:      contact.Billing.Line1,
		Line2:      contact.Billing.Line2,
		City:       contact.Billing.City,
		State:      state,
		PostalCode: contact.Billing.PostalCode,
		Country:    country,
	}, nil
}
