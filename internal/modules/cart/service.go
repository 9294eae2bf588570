package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

// Service manages customers' carts ahead of checkout.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*Cart, error)
	Replace(ctx context.Context, customerID uuid.UUID, items []Item) (*Cart, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
}

type service struct{ repo Repository }

func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*Cart, error) {
	return s.repo.Get(ctx, customerID)
}

func (s *service) Replace(ctx context.Context, customerID uuid.UUID, items []Item) (*Cart, error) {
	for i, it := range items {
		if it.ProductID == uuid.Nil {
			return nil, apperr.Validation("item %d: product_id is required", i)
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("item %d: quantity must be > 0", i)
		}
		if it.Price.IsNegative() {
			return nil, apperr.Validation("item %d: price must be >= 0", i)
		}
	}
	c := &Cart{CustomerID: customerID, Items: items}
	if err := s.repo.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) error {
	return s.repo.Clear(ctx, customerID)
}
