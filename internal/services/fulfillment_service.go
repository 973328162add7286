package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/repositories"
)

// FulfillmentServiceDeps wires the post-purchase processor dependencies.
type FulfillmentServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Logger   Logger
}

type fulfillmentService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	logger   Logger
}

// NewFulfillmentService constructs the post-purchase processor.
func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment service requires order repository")
	}
	if deps.Products == nil {
		return nil, errors.New("fulfillment service requires product repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &fulfillmentService{
		orders:   deps.Orders,
		products: deps.Products,
		logger:   logger,
	}, nil
}

// Process decrements stock for the physical lines of a settled order. The
// fulfilment flag flips exactly once, so a replayed settlement event never
// decrements twice. Per-line failures are logged and skipped; stock levels
// never go below zero.
func (s *fulfillmentService) Process(ctx context.Context, order domain.Order) error {
	won, err := s.orders.MarkFulfilled(ctx, order.TransactionID)
	if err != nil {
		return fmt.Errorf("fulfillment: mark fulfilled: %w", err)
	}
	if !won {
		s.logger(ctx, "fulfillment.skipped", map[string]any{
			"transactionId": order.TransactionID,
		})
		return nil
	}

	for _, line := range order.Lines {
		if line.Digital {
			continue
		}
		if err := s.products.DecrementStock(ctx, line.Code, line.Quantity); err != nil {
			s.logger(ctx, "fulfillment.stock.decrement_failed", map[string]any{
				"transactionId": order.TransactionID,
				"product":       line.Code,
				"error":         err.Error(),
			})
		}
	}

	s.logger(ctx, "fulfillment.processed", map[string]any{
		"transactionId": order.TransactionID,
		"lines":         len(order.Lines),
	})
	return nil
}
