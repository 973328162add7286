// Package repositories defines the persistence boundary for the API.
// Implementations classify their failures through RepositoryError so the
// service layer can react without knowing the backing store.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/oakline/api/internal/domain"
)

// RepositoryError classifies persistence failures.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err represents a conflicting write.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err represents a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// ProductRepository exposes the shop catalogue.
type ProductRepository interface {
	// ListActive returns the products currently offered for sale.
	ListActive(ctx context.Context) ([]domain.Product, error)
	// GetByCodes resolves product codes to catalogue entries. Codes absent
	// from the result were not found; callers decide how strict to be.
	GetByCodes(ctx context.Context, codes []string) (map[string]domain.Product, error)
	// DecrementStock reduces the stock level by quantity, clamped at zero.
	DecrementStock(ctx context.Context, code string, quantity int64) error
}

// ContactRepository stores the customer's contact and billing details.
type ContactRepository interface {
	Get(ctx context.Context, customerID string) (domain.Contact, error)
	Upsert(ctx context.Context, contact domain.Contact) (domain.Contact, error)
}

// UserRepository exposes the user profile records owned by the identity
// platform. Only the fields the shop needs are surfaced here.
type UserRepository interface {
	Get(ctx context.Context, uid string) (domain.User, error)
	UpdateName(ctx context.Context, uid, firstName, lastName string) error
}

// OrderSettlement carries the fields written by the single settlement update.
type OrderSettlement struct {
	TransactionID    string
	TaxRecordID      string
	ProcessingFee    string
	ExchangeRate     *float64
	FundsAvailableAt time.Time
}

// OrderRepository reconciles sales transactions against payment intents.
type OrderRepository interface {
	// FindPending returns the order awaiting payment for the customer and
	// client secret pair. A missing order is a normal outcome and surfaces
	// as a not-found RepositoryError.
	FindPending(ctx context.Context, customerID, clientSecret string) (domain.Order, error)
	// CreatePending inserts a new pending order. The insert runs inside a
	// transaction that re-checks for an existing pending order on the same
	// (customer, client secret) pair, so concurrent submissions surface as
	// a conflict instead of a duplicate.
	CreatePending(ctx context.Context, order domain.Order) (domain.Order, error)
	// UpdatePending overwrites the snapshot of an order still awaiting
	// payment. Updating an order in any other state is a conflict.
	UpdatePending(ctx context.Context, order domain.Order) (domain.Order, error)
	// FindByClientSecret resolves the order linked to a payment intent.
	FindByClientSecret(ctx context.Context, clientSecret string) (domain.Order, error)
	// TransitionStatus moves the transaction status to the target value when
	// the current status is one of from; otherwise it reports a conflict.
	TransitionStatus(ctx context.Context, transactionID string, from []string, to string) (domain.Order, error)
	// Settle records a successful payment in a single update: status,
	// tax record, processing fee, exchange rate and funds availability.
	Settle(ctx context.Context, settlement OrderSettlement) (domain.Order, error)
	// MarkFulfilled flips the fulfilment flag exactly once. The boolean
	// reports whether this call won the flip.
	MarkFulfilled(ctx context.Context, transactionID string) (bool, error)
	// ListByCustomer returns the customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
}
