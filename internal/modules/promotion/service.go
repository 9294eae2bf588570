package promotion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

// Service is the price lookup used at checkout, plus registration of promotions.
type Service interface {
	Create(ctx context.Context, req CreatePromotionRequest) (*Promotion, error)
	ActiveFor(ctx context.Context, productID uuid.UUID, now time.Time) (*Promotion, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Promotion, error)
}

type service struct{ repo Repository }

func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) Create(ctx context.Context, req CreatePromotionRequest) (*Promotion, error) {
	if req.ProductID == uuid.Nil {
		return nil, apperr.Validation("product_id is required")
	}
	if req.DiscountedPrice.IsNegative() {
		return nil, apperr.Validation("discounted_price must be >= 0")
	}
	if req.ValidityEnd.Before(req.ValidityStart) {
		return nil, apperr.Validation("validity_end is before validity_start")
	}
	p := &Promotion{
		ID:              uuid.New(),
		ProductID:       req.ProductID,
		DiscountedPrice: req.DiscountedPrice,
		ValidityStart:   req.ValidityStart,
		ValidityEnd:     req.ValidityEnd,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) ActiveFor(ctx context.Context, productID uuid.UUID, now time.Time) (*Promotion, error) {
	return s.repo.ActiveFor(ctx, productID, now)
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Promotion, error) {
	return s.repo.ListByProduct(ctx, productID)
}
