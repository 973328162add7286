package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oakline/api/internal/domain"
	pfirestore "github.com/oakline/api/internal/platform/firestore"
	"github.com/oakline/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists sales transaction orders within Firestore. The
// transaction identifier doubles as the document identifier.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection),
		provider: provider,
	}, nil
}

type orderLineDocument struct {
	Code      string `firestore:"code"`
	Name      string `firestore:"name"`
	Quantity  int64  `firestore:"quantity"`
	UnitPrice string `firestore:"unitPrice"`
	LineTotal string `firestore:"lineTotal"`
	Digital   bool   `firestore:"digital"`
}

type orderDocument struct {
	CustomerID        string              `firestore:"customerId"`
	PaymentIntentID   string              `firestore:"paymentIntentId"`
	ClientSecret      string              `firestore:"clientSecret"`
	TaxCalculationID  string              `firestore:"taxCalculationId"`
	Currency          string              `firestore:"currency"`
	Lines             []orderLineDocument `firestore:"lines"`
	Subtotal          string              `firestore:"subtotal"`
	Shipping          string              `firestore:"shipping"`
	Tax               string              `firestore:"tax"`
	Total             string              `firestore:"total"`
	BillingAddress    addressDocument     `firestore:"billingAddress"`
	DeliveryAddress   addressDocument     `firestore:"deliveryAddress"`
	OrderStatus       string              `firestore:"orderStatus"`
	TransactionStatus string              `firestore:"transactionStatus"`
	TaxRecordID       string              `firestore:"taxRecordId"`
	ProcessingFee     string              `firestore:"processingFee"`
	ExchangeRate      *float64            `firestore:"exchangeRate"`
	FundsAvailableAt  time.Time           `firestore:"fundsAvailableAt"`
	Fulfilled         bool                `firestore:"fulfilled"`
	CreatedAt         time.Time           `firestore:"createdAt"`
	UpdatedAt         time.Time           `firestore:"updatedAt"`
}

// FindPending returns the order awaiting payment for the (customer, client
// secret) pair.
func (r *OrderRepository) FindPending(ctx context.Context, customerID, clientSecret string) (domain.Order, error) {
	customerID = strings.TrimSpace(customerID)
	clientSecret = strings.TrimSpace(clientSecret)
	if customerID == "" || clientSecret == "" {
		return domain.Order{}, errors.New("order repository: customer id and client secret are required")
	}

	docs, err := r.base.Query(ctx, pendingOrderQuery(customerID, clientSecret))
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findpending", status.Error(codes.NotFound, "no pending order"))
	}
	return orderFromDocument(docs[0].ID, docs[0].Data), nil
}

// CreatePending inserts a new pending order. The lookup for an existing
// pending order on the same pair and the insert run in one transaction, so
// concurrent submissions cannot both insert.
func (r *OrderRepository) CreatePending(ctx context.Context, order domain.Order) (domain.Order, error) {
	if strings.TrimSpace(order.TransactionID) == "" {
		return domain.Order{}, errors.New("order repository: transaction id is required")
	}
	doc := orderToDocument(order)
	doc.TransactionStatus = domain.TransactionStatusRequested
	if doc.OrderStatus == "" {
		doc.OrderStatus = domain.OrderStatusProcessing
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt

	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	ref, err := r.base.DocumentRef(ctx, order.TransactionID)
	if err != nil {
		return domain.Order{}, err
	}

	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		query := pendingOrderQuery(doc.CustomerID, doc.ClientSecret)(coll.Query)
		iter := tx.Documents(query)
		defer iter.Stop()
		if _, err := iter.Next(); err == nil {
			return status.Error(codes.AlreadyExists, "pending order already exists")
		} else if !errors.Is(err, iterator.Done) {
			return err
		}
		return tx.Create(ref, doc)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(order.TransactionID, doc), nil
}

// UpdatePending overwrites the snapshot of an order still awaiting payment.
func (r *OrderRepository) UpdatePending(ctx context.Context, order domain.Order) (domain.Order, error) {
	ref, err := r.base.DocumentRef(ctx, order.TransactionID)
	if err != nil {
		return domain.Order{}, err
	}

	var saved orderDocument
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current orderDocument
		if err := snapshot.DataTo(&current); err != nil {
			return err
		}
		if current.TransactionStatus != domain.TransactionStatusRequested {
			return status.Error(codes.FailedPrecondition, "order is no longer pending")
		}

		doc := orderToDocument(order)
		doc.TransactionStatus = domain.TransactionStatusRequested
		doc.OrderStatus = current.OrderStatus
		doc.Fulfilled = current.Fulfilled
		doc.CreatedAt = current.CreatedAt
		doc.UpdatedAt = time.Now().UTC()
		if !order.UpdatedAt.IsZero() {
			doc.UpdatedAt = order.UpdatedAt.UTC()
		}
		saved = doc
		return tx.Set(ref, doc)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(order.TransactionID, saved), nil
}

// FindByClientSecret resolves the order linked to a payment intent.
func (r *OrderRepository) FindByClientSecret(ctx context.Context, clientSecret string) (domain.Order, error) {
	clientSecret = strings.TrimSpace(clientSecret)
	if clientSecret == "" {
		return domain.Order{}, errors.New("order repository: client secret is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("clientSecret", "==", clientSecret).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findbysecret", status.Error(codes.NotFound, "no order for client secret"))
	}
	return orderFromDocument(docs[0].ID, docs[0].Data), nil
}

// TransitionStatus moves the transaction status when the current value is in from.
func (r *OrderRepository) TransitionStatus(ctx context.Context, transactionID string, from []string, to string) (domain.Order, error) {
	ref, err := r.base.DocumentRef(ctx, transactionID)
	if err != nil {
		return domain.Order{}, err
	}

	var saved orderDocument
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current orderDocument
		if err := snapshot.DataTo(&current); err != nil {
			return err
		}
		if !statusIn(current.TransactionStatus, from) {
			return status.Errorf(codes.FailedPrecondition, "transition to %s not allowed from %s", to, current.TransactionStatus)
		}
		now := time.Now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "transactionStatus", Value: to},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		current.TransactionStatus = to
		current.UpdatedAt = now
		saved = current
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(transactionID, saved), nil
}

// Settle records a successful payment in a single guarded update.
func (r *OrderRepository) Settle(ctx context.Context, settlement repositories.OrderSettlement) (domain.Order, error) {
	ref, err := r.base.DocumentRef(ctx, settlement.TransactionID)
	if err != nil {
		return domain.Order{}, err
	}

	var saved orderDocument
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current orderDocument
		if err := snapshot.DataTo(&current); err != nil {
			return err
		}
		allowed := []string{domain.TransactionStatusRequested, domain.TransactionStatusProcessing}
		if !statusIn(current.TransactionStatus, allowed) {
			return status.Errorf(codes.FailedPrecondition, "settlement not allowed from %s", current.TransactionStatus)
		}

		now := time.Now().UTC()
		updates := []firestore.Update{
			{Path: "transactionStatus", Value: domain.TransactionStatusSucceeded},
			{Path: "taxRecordId", Value: settlement.TaxRecordID},
			{Path: "processingFee", Value: settlement.ProcessingFee},
			{Path: "exchangeRate", Value: settlement.ExchangeRate},
			{Path: "fundsAvailableAt", Value: settlement.FundsAvailableAt.UTC()},
			{Path: "updatedAt", Value: now},
		}
		if err := tx.Update(ref, updates); err != nil {
			return err
		}
		current.TransactionStatus = domain.TransactionStatusSucceeded
		current.TaxRecordID = settlement.TaxRecordID
		current.ProcessingFee = settlement.ProcessingFee
		current.ExchangeRate = settlement.ExchangeRate
		current.FundsAvailableAt = settlement.FundsAvailableAt.UTC()
		current.UpdatedAt = now
		saved = current
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(settlement.TransactionID, saved), nil
}

// MarkFulfilled flips the fulfilment flag exactly once.
func (r *OrderRepository) MarkFulfilled(ctx context.Context, transactionID string) (bool, error) {
	ref, err := r.base.DocumentRef(ctx, transactionID)
	if err != nil {
		return false, err
	}

	won := false
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current orderDocument
		if err := snapshot.DataTo(&current); err != nil {
			return err
		}
		if current.Fulfilled {
			won = false
			return nil
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "fulfilled", Value: true},
			{Path: "updatedAt", Value: time.Now().UTC()},
		}); err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("order repository: customer id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("customerId", "==", customerID)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func pendingOrderQuery(customerID, clientSecret string) pfirestore.QueryBuilder {
	return func(query firestore.Query) firestore.Query {
		return query.
			Where("customerId", "==", customerID).
			Where("clientSecret", "==", clientSecret).
			Where("transactionStatus", "==", domain.TransactionStatusRequested).
			Limit(1)
	}
}

func statusIn(current string, allowed []string) bool {
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

func orderToDocument(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineDocument{
			Code:      line.Code,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			Digital:   line.Digital,
		})
	}
	return orderDocument{
		CustomerID:        strings.TrimSpace(order.CustomerID),
		PaymentIntentID:   strings.TrimSpace(order.PaymentIntentID),
		ClientSecret:      strings.TrimSpace(order.ClientSecret),
		TaxCalculationID:  strings.TrimSpace(order.TaxCalculationID),
		Currency:          strings.ToLower(strings.TrimSpace(order.Currency)),
		Lines:             lines,
		Subtotal:          order.Amounts.Subtotal,
		Shipping:          order.Amounts.Shipping,
		Tax:               order.Amounts.Tax,
		Total:             order.Amounts.Total,
		BillingAddress:    addressToDocument(order.BillingAddress),
		DeliveryAddress:   addressToDocument(order.DeliveryAddress),
		OrderStatus:       order.OrderStatus,
		TransactionStatus: order.TransactionStatus,
		TaxRecordID:       order.TaxRecordID,
		ProcessingFee:     order.ProcessingFee,
		ExchangeRate:      order.ExchangeRate,
		FundsAvailableAt:  order.FundsAvailableAt,
		Fulfilled:         order.Fulfilled,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	lines := make([]domain.PricedLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.PricedLine{
			Code:      line.Code,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			Digital:   line.Digital,
		})
	}
	return domain.Order{
		TransactionID:    id,
		CustomerID:       doc.CustomerID,
		PaymentIntentID:  doc.PaymentIntentID,
		ClientSecret:     doc.ClientSecret,
		TaxCalculationID: doc.TaxCalculationID,
		Currency:         doc.Currency,
		Lines:            lines,
		Amounts: domain.OrderAmounts{
			Subtotal: doc.Subtotal,
			Shipping: doc.Shipping,
			Tax:      doc.Tax,
			Total:    doc.Total,
		},
		BillingAddress:    addressFromDocument(doc.BillingAddress),
		DeliveryAddress:   addressFromDocument(doc.DeliveryAddress),
		OrderStatus:       doc.OrderStatus,
		TransactionStatus: doc.TransactionStatus,
		TaxRecordID:       doc.TaxRecordID,
		ProcessingFee:     doc.ProcessingFee,
		ExchangeRate:      doc.ExchangeRate,
		FundsAvailableAt:  doc.FundsAvailableAt,
		Fulfilled:         doc.Fulfilled,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}
