package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oakline/api/internal/domain"
)

// ShippingServiceDeps wires the shipping estimator dependencies.
type ShippingServiceDeps struct {
	// RatePerItem is the flat per-item charge as a decimal string.
	RatePerItem string
	Logger      Logger
}

type shippingService struct {
	rate   decimal.Decimal
	logger Logger
}

// NewShippingService constructs the flat-rate shipping estimator.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	rate, err := domain.ParseAmount(deps.RatePerItem)
	if err != nil {
		return nil, fmt.Errorf("shipping service: invalid rate per item: %w", err)
	}
	if rate.IsNegative() {
		return nil, errors.New("shipping service: rate per item must not be negative")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingService{
		rate:   rate,
		logger: logger,
	}, nil
}

// Estimate charges the flat rate per physical item. Digital lines ship free,
// so an all-digital basket legitimately returns "0.00". The destination is
// accepted for future zone rates but does not change the charge today.
func (s *shippingService) Estimate(ctx context.Context, lines []domain.PricedLine, destination domain.Address) (string, error) {
	var physical int64
	for _, line := range lines {
		if line.Digital {
			continue
		}
		physical += line.Quantity
	}

	charge := s.rate.Mul(decimal.NewFromInt(physical))
	s.logger(ctx, "shipping.estimated", map[string]any{
		"physicalItems": physical,
		"country":       destination.Country,
		"charge":        domain.FormatAmount(charge),
	})
	return domain.FormatAmount(charge), nil
}
