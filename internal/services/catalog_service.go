package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/repositories"
)

// CatalogServiceDeps wires the catalogue service dependencies.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	Logger   Logger
}

type catalogService struct {
	products repositories.ProductRepository
	logger   Logger
}

// NewCatalogService constructs the public catalogue service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service requires product repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products: deps.Products,
		logger:   logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return products, nil
}
