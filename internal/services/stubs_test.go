package services

import (
	"context"
	"fmt"
	"time"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/payments"
	"github.com/oakline/api/internal/repositories"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
}

type stubRepositoryError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepositoryError) Error() string       { return "stub repository error" }
func (e *stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e *stubRepositoryError) IsConflict() bool    { return e.conflict }
func (e *stubRepositoryError) IsUnavailable() bool { return e.unavailable }

func notFoundErr() error {
	return &stubRepositoryError{notFound: true}
}

func conflictErr() error {
	return &stubRepositoryError{conflict: true}
}

type stubProductRepository struct {
	listActiveFunc     func(ctx context.Context) ([]domain.Product, error)
	getByCodesFunc     func(ctx context.Context, codes []string) (map[string]domain.Product, error)
	decrementStockFunc func(ctx context.Context, code string, quantity int64) error
}

func (s *stubProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	if s.listActiveFunc == nil {
		return nil, nil
	}
	return s.listActiveFunc(ctx)
}

func (s *stubProductRepository) GetByCodes(ctx context.Context, codes []string) (map[string]domain.Product, error) {
	if s.getByCodesFunc == nil {
		return map[string]domain.Product{}, nil
	}
	return s.getByCodesFunc(ctx, codes)
}

func (s *stubProductRepository) DecrementStock(ctx context.Context, code string, quantity int64) error {
	if s.decrementStockFunc == nil {
		return nil
	}
	return s.decrementStockFunc(ctx, code, quantity)
}

type stubContactRepository struct {
	getFunc    func(ctx context.Context, customerID string) (domain.Contact, error)
	upsertFunc func(ctx context.Context, contact domain.Contact) (domain.Contact, error)
}

func (s *stubContactRepository) Get(ctx context.Context, customerID string) (domain.Contact, error) {
	if s.getFunc == nil {
		return domain.Contact{}, notFoundErr()
	}
	return s.getFunc(ctx, customerID)
}

func (s *stubContactRepository) Upsert(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	if s.upsertFunc == nil {
		return contact, nil
	}
	return s.upsertFunc(ctx, contact)
}

type stubUserRepository struct {
	getFunc        func(ctx context.Context, uid string) (domain.User, error)
	updateNameFunc func(ctx context.Context, uid, firstName, lastName string) error
}

func (s *stubUserRepository) Get(ctx context.Context, uid string) (domain.User, error) {
	if s.getFunc == nil {
		return domain.User{UID: uid, Address: "addr-" + uid}, nil
	}
	return s.getFunc(ctx, uid)
}

func (s *stubUserRepository) UpdateName(ctx context.Context, uid, firstName, lastName string) error {
	if s.updateNameFunc == nil {
		return nil
	}
	return s.updateNameFunc(ctx, uid, firstName, lastName)
}

type stubOrderRepository struct {
	findPendingFunc       func(ctx context.Context, customerID, clientSecret string) (domain.Order, error)
	createPendingFunc     func(ctx context.Context, order domain.Order) (domain.Order, error)
	updatePendingFunc     func(ctx context.Context, order domain.Order) (domain.Order, error)
	findByClientSecret    func(ctx context.Context, clientSecret string) (domain.Order, error)
	transitionStatusFunc  func(ctx context.Context, transactionID string, from []string, to string) (domain.Order, error)
	settleFunc            func(ctx context.Context, settlement repositories.OrderSettlement) (domain.Order, error)
	markFulfilledFunc     func(ctx context.Context, transactionID string) (bool, error)
	listByCustomerFunc    func(ctx context.Context, customerID string) ([]domain.Order, error)
}

func (s *stubOrderRepository) FindPending(ctx context.Context, customerID, clientSecret string) (domain.Order, error) {
	if s.findPendingFunc == nil {
		return domain.Order{}, notFoundErr()
	}
	return s.findPendingFunc(ctx, customerID, clientSecret)
}

func (s *stubOrderRepository) CreatePending(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.createPendingFunc == nil {
		return order, nil
	}
	return s.createPendingFunc(ctx, order)
}

func (s *stubOrderRepository) UpdatePending(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.updatePendingFunc == nil {
		return order, nil
	}
	return s.updatePendingFunc(ctx, order)
}

func (s *stubOrderRepository) FindByClientSecret(ctx context.Context, clientSecret string) (domain.Order, error) {
	if s.findByClientSecret == nil {
		return domain.Order{}, notFoundErr()
	}
	return s.findByClientSecret(ctx, clientSecret)
}

func (s *stubOrderRepository) TransitionStatus(ctx context.Context, transactionID string, from []string, to string) (domain.Order, error) {
	if s.transitionStatusFunc == nil {
		return domain.Order{TransactionID: transactionID, TransactionStatus: to}, nil
	}
	return s.transitionStatusFunc(ctx, transactionID, from, to)
}

func (s *stubOrderRepository) Settle(ctx context.Context, settlement repositories.OrderSettlement) (domain.Order, error) {
	if s.settleFunc == nil {
		return domain.Order{TransactionID: settlement.TransactionID, TransactionStatus: domain.TransactionStatusSucceeded}, nil
	}
	return s.settleFunc(ctx, settlement)
}

func (s *stubOrderRepository) MarkFulfilled(ctx context.Context, transactionID string) (bool, error) {
	if s.markFulfilledFunc == nil {
		return true, nil
	}
	return s.markFulfilledFunc(ctx, transactionID)
}

func (s *stubOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	if s.listByCustomerFunc == nil {
		return nil, nil
	}
	return s.listByCustomerFunc(ctx, customerID)
}

type stubPaymentsProvider struct {
	createIntentFunc   func(ctx context.Context, input payments.CreateIntentInput) (payments.PaymentIntent, error)
	updateIntentFunc   func(ctx context.Context, input payments.UpdateIntentInput) (payments.PaymentIntent, error)
	retrieveIntentFunc func(ctx context.Context, intentID string) (payments.PaymentIntentDetails, error)
	calculateTaxFunc   func(ctx context.Context, input payments.TaxCalculationInput) (payments.TaxCalculation, error)
	recordTaxFunc      func(ctx context.Context, calculationID, reference string) (payments.TaxTransaction, error)
}

func (s *stubPaymentsProvider) CreatePaymentIntent(ctx context.Context, input payments.CreateIntentInput) (payments.PaymentIntent, error) {
	if s.createIntentFunc == nil {
		return payments.PaymentIntent{
			ID:           "pi_stub",
			ClientSecret: "pi_stub_secret",
			Amount:       input.Amount,
		}, nil
	}
	return s.createIntentFunc(ctx, input)
}

func (s *stubPaymentsProvider) UpdatePaymentIntent(ctx context.Context, input payments.UpdateIntentInput) (payments.PaymentIntent, error) {
	if s.updateIntentFunc == nil {
		return payments.PaymentIntent{ID: input.IntentID, Amount: input.Amount}, nil
	}
	return s.updateIntentFunc(ctx, input)
}

func (s *stubPaymentsProvider) RetrievePaymentIntent(ctx context.Context, intentID string) (payments.PaymentIntentDetails, error) {
	if s.retrieveIntentFunc == nil {
		return payments.PaymentIntentDetails{}, fmt.Errorf("unexpected retrieve for %s", intentID)
	}
	return s.retrieveIntentFunc(ctx, intentID)
}

func (s *stubPaymentsProvider) CalculateTax(ctx context.Context, input payments.TaxCalculationInput) (payments.TaxCalculation, error) {
	if s.calculateTaxFunc == nil {
		return payments.TaxCalculation{ID: "taxcalc_stub", Address: input.Address}, nil
	}
	return s.calculateTaxFunc(ctx, input)
}

func (s *stubPaymentsProvider) RecordTaxTransaction(ctx context.Context, calculationID, reference string) (payments.TaxTransaction, error) {
	if s.recordTaxFunc == nil {
		return payments.TaxTransaction{ID: "taxtxn_stub"}, nil
	}
	return s.recordTaxFunc(ctx, calculationID, reference)
}

func (s *stubPaymentsProvider) ConstructWebhookEvent(payload []byte, signature string) (payments.WebhookEvent, error) {
	return payments.WebhookEvent{}, nil
}
