package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/repositories"
)

var (
	// ErrPricingInvalidInput signals a malformed basket submission.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrProductNotFound signals that a basket line references an unknown
	// product code. The whole basket fails; there are no partial prices.
	ErrProductNotFound = errors.New("pricing: product not found")
)

// PricingServiceDeps wires the pricing service dependencies.
type PricingServiceDeps struct {
	Products repositories.ProductRepository
	Logger   Logger
}

type pricingService struct {
	products repositories.ProductRepository
	logger   Logger
}

// NewPricingService constructs the catalogue pricing service.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Products == nil {
		return nil, errors.New("pricing service requires product repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingService{
		products: deps.Products,
		logger:   logger,
	}, nil
}

func (s *pricingService) PriceBasket(ctx context.Context, lines []domain.BasketLine) (PricedBasket, error) {
	if len(lines) == 0 {
		return PricedBasket{}, fmt.Errorf("%w: basket is empty", ErrPricingInvalidInput)
	}

	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		code := strings.TrimSpace(line.Code)
		if code == "" {
			return PricedBasket{}, fmt.Errorf("%w: product code is required", ErrPricingInvalidInput)
		}
		if line.Quantity <= 0 {
			return PricedBasket{}, fmt.Errorf("%w: quantity for %s must be positive", ErrPricingInvalidInput, code)
		}
		codes = append(codes, code)
	}

	catalogue, err := s.products.GetByCodes(ctx, codes)
	if err != nil {
		return PricedBasket{}, fmt.Errorf("pricing: load products: %w", err)
	}

	priced := make([]domain.PricedLine, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		code := strings.TrimSpace(line.Code)
		product, ok := catalogue[code]
		if !ok {
			return PricedBasket{}, fmt.Errorf("%w: %s", ErrProductNotFound, code)
		}

		unitPrice, err := domain.ParseAmount(product.Price)
		if err != nil {
			return PricedBasket{}, fmt.Errorf("pricing: product %s has invalid price: %w", code, err)
		}

		lineTotal := unitPrice.Mul(decimal.NewFromInt(line.Quantity))
		subtotal = subtotal.Add(lineTotal)

		priced = append(priced, domain.PricedLine{
			Code:      code,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: domain.FormatAmount(unitPrice),
			LineTotal: domain.FormatAmount(lineTotal),
			Digital:   product.IsDigital(),
		})
	}

	s.logger(ctx, "pricing.basket.priced", map[string]any{
		"lines":    len(priced),
		"subtotal": domain.FormatAmount(subtotal),
	})

	return PricedBasket{
		Lines:    priced,
		Subtotal: domain.FormatAmount(subtotal),
	}, nil
}
