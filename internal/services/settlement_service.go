package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/payments"
	"github.com/oakline/api/internal/repositories"
)

// ErrOrderNotFound signals that a processor event references a payment the
// store has no order for.
var ErrOrderNotFound = errors.New("settlement: order not found")

// Webhook event types the settlement handler reacts to.
const (
	eventIntentCreated    = "payment_intent.created"
	eventIntentProcessing = "payment_intent.processing"
	eventIntentSucceeded  = "payment_intent.succeeded"
	eventIntentFailed     = "payment_intent.payment_failed"
)

// SettlementServiceDeps wires the settlement handler dependencies. Events is
// optional; without it no settled events are published.
type SettlementServiceDeps struct {
	Orders      repositories.OrderRepository
	Payments    payments.Provider
	Fulfillment FulfillmentService
	Events      OrderEventPublisher
	Clock       func() time.Time
	Logger      Logger
}

type settlementService struct {
	orders      repositories.OrderRepository
	payments    payments.Provider
	fulfillment FulfillmentService
	events      OrderEventPublisher
	clock       func() time.Time
	logger      Logger
}

// NewSettlementService constructs the webhook-driven settlement handler.
func NewSettlementService(deps SettlementServiceDeps) (SettlementService, error) {
	if deps.Orders == nil {
		return nil, errors.New("settlement service requires order repository")
	}
	if deps.Payments == nil {
		return nil, errors.New("settlement service requires payments provider")
	}
	if deps.Fulfillment == nil {
		return nil, errors.New("settlement service requires fulfillment service")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &settlementService{
		orders:      deps.Orders,
		payments:    deps.Payments,
		fulfillment: deps.Fulfillment,
		events:      deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// HandleEvent advances the payment state machine for a verified event.
// Unknown event types are acknowledged without side effects.
func (s *settlementService) HandleEvent(ctx context.Context, event payments.WebhookEvent) error {
	switch event.Type {
	case eventIntentCreated:
		return nil
	case eventIntentProcessing:
		return s.transition(ctx, event, []string{domain.TransactionStatusRequested}, domain.TransactionStatusProcessing)
	case eventIntentFailed:
		// A failure can land after a processing event, so both
		// pre-settlement states may move to failed.
		return s.transition(ctx, event, []string{domain.TransactionStatusRequested, domain.TransactionStatusProcessing}, domain.TransactionStatusFailed)
	case eventIntentSucceeded:
		return s.settle(ctx, event)
	default:
		s.logger(ctx, "settlement.event.ignored", map[string]any{"type": event.Type})
		return nil
	}
}

// transition moves an order between pre-settlement states. An order that
// already moved past every allowed source state is left alone so replayed
// events stay idempotent.
func (s *settlementService) transition(ctx context.Context, event payments.WebhookEvent, from []string, to string) error {
	order, err := s.lookupOrder(ctx, event)
	if err != nil {
		return err
	}

	_, err = s.orders.TransitionStatus(ctx, order.TransactionID, from, to)
	if err != nil {
		if repositories.IsConflict(err) {
			s.logger(ctx, "settlement.transition.skipped", map[string]any{
				"transactionId": order.TransactionID,
				"to":            to,
			})
			return nil
		}
		return fmt.Errorf("settlement: transition order: %w", err)
	}

	s.logger(ctx, "settlement.transitioned", map[string]any{
		"transactionId": order.TransactionID,
		"to":            to,
	})
	return nil
}

// settle records the tax transaction, captures the balance transaction
// details, performs the single settlement update, and triggers the
// post-purchase work.
func (s *settlementService) settle(ctx context.Context, event payments.WebhookEvent) error {
	order, err := s.lookupOrder(ctx, event)
	if err != nil {
		return err
	}

	var taxRecordID string
	if order.TaxCalculationID != "" {
		record, err := s.payments.RecordTaxTransaction(ctx, order.TaxCalculationID, order.TransactionID)
		if err != nil {
			return fmt.Errorf("settlement: record tax transaction: %w", err)
		}
		taxRecordID = record.ID
	} else {
		s.logger(ctx, "settlement.tax.missing_calculation", map[string]any{
			"transactionId": order.TransactionID,
		})
	}

	details, err := s.payments.RetrievePaymentIntent(ctx, order.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("settlement: retrieve payment intent: %w", err)
	}

	settlement := repositories.OrderSettlement{
		TransactionID: order.TransactionID,
		TaxRecordID:   taxRecordID,
	}
	if details.Balance != nil {
		settlement.ProcessingFee = domain.FormatMinor(details.Balance.Fee)
		settlement.ExchangeRate = details.Balance.ExchangeRate
		settlement.FundsAvailableAt = details.Balance.AvailableOn
	}

	settled, err := s.orders.Settle(ctx, settlement)
	if err != nil {
		if repositories.IsConflict(err) {
			s.logger(ctx, "settlement.already_settled", map[string]any{
				"transactionId": order.TransactionID,
			})
			return nil
		}
		return fmt.Errorf("settlement: settle order: %w", err)
	}

	s.logger(ctx, "settlement.succeeded", map[string]any{
		"transactionId": settled.TransactionID,
		"taxRecordId":   taxRecordID,
		"processingFee": settlement.ProcessingFee,
	})

	if err := s.fulfillment.Process(ctx, settled); err != nil {
		s.logger(ctx, "settlement.fulfillment.failed", map[string]any{
			"transactionId": settled.TransactionID,
			"error":         err.Error(),
		})
	}

	if s.events != nil {
		message := OrderSettledMessage{
			TransactionID: settled.TransactionID,
			CustomerID:    settled.CustomerID,
			Total:         settled.Amounts.Total,
			Currency:      settled.Currency,
			SettledAt:     s.clock(),
		}
		if _, err := s.events.PublishOrderSettled(ctx, message); err != nil {
			s.logger(ctx, "settlement.event.publish_failed", map[string]any{
				"transactionId": settled.TransactionID,
				"error":         err.Error(),
			})
		}
	}

	return nil
}

func (s *settlementService) lookupOrder(ctx context.Context, event payments.WebhookEvent) (domain.Order, error) {
	if event.Intent == nil || event.Intent.ClientSecret == "" {
		return domain.Order{}, fmt.Errorf("%w: event %s carries no payment intent", ErrOrderNotFound, event.Type)
	}

	order, err := s.orders.FindByClientSecret(ctx, event.Intent.ClientSecret)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Order{}, fmt.Errorf("%w: intent %s", ErrOrderNotFound, event.Intent.ID)
		}
		return domain.Order{}, fmt.Errorf("settlement: lookup order: %w", err)
	}
	return order, nil
}
