package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oakline/api/internal/domain"
	pfirestore "github.com/oakline/api/internal/platform/firestore"
)

const productCollection = "products"

// ProductRepository persists the shop catalogue within Firestore. The
// product code doubles as the document identifier.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base:     pfirestore.NewBaseRepository[productDocument](provider, productCollection),
		provider: provider,
	}, nil
}

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	Price       string    `firestore:"price"`
	Stock       int64     `firestore:"stock"`
	DownloadURL string    `firestore:"downloadUrl"`
	Active      bool      `firestore:"active"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ListActive returns the products currently offered for sale.
func (r *ProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("active", "==", true)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, productFromDocument(doc.ID, doc.Data))
	}
	return products, nil
}

// GetByCodes resolves product codes to catalogue entries. Unknown codes are
// simply absent from the result.
func (r *ProductRepository) GetByCodes(ctx context.Context, codes []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := result[code]; ok {
			continue
		}
		doc, err := r.base.Get(ctx, code)
		if err != nil {
			var repoErr *pfirestore.Error
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		result[code] = productFromDocument(doc.ID, doc.Data)
	}
	return result, nil
}

// DecrementStock reduces the stock level by quantity inside a transaction,
// clamped at zero so oversold lines never drive the level negative.
func (r *ProductRepository) DecrementStock(ctx context.Context, code string, quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(code))
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current productDocument
		if err := snapshot.DataTo(&current); err != nil {
			return status.Errorf(codes.Internal, "decode product %s: %v", code, err)
		}
		remaining := current.Stock - quantity
		if remaining < 0 {
			remaining = 0
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "stock", Value: remaining},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
}

func productFromDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		Code:        id,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       doc.Price,
		Stock:       doc.Stock,
		DownloadURL: doc.DownloadURL,
		Active:      doc.Active,
	}
}
