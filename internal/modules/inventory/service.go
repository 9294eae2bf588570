package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
	"github.com/georgemunganga/printa-inventory/internal/platform/events"
	"github.com/georgemunganga/printa-inventory/internal/platform/keylock"
	"github.com/georgemunganga/printa-inventory/internal/platform/metrics"
)

// MutateFunc inspects the current product inside its critical section and returns
// the change to apply. Returning an error aborts without writing.
type MutateFunc func(p *Product) (Change, error)

// Service is the stock ledger: the only writer of product quantity and expiration.
// Every write is serialized per product.
type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)

	// ListProducts re-derives statuses before returning every product.
	ListProducts(ctx context.Context) ([]*Product, error)

	// ListEmpty returns the products currently holding zero units.
	ListEmpty(ctx context.Context) ([]*Product, error)

	// Adjust adds deltaUnits and returns the new quantity.
	Adjust(ctx context.Context, id uuid.UUID, deltaUnits int) (int, error)

	// SetQuantity force-sets the quantity, bypassing availability checks.
	SetQuantity(ctx context.Context, id uuid.UUID, qty int) (*Product, error)

	SetExpiration(ctx context.Context, id uuid.UUID, date *time.Time) (*Product, error)
	SetDiscontinued(ctx context.Context, id uuid.UUID, discontinued bool) (*Product, error)

	// Mutate runs fn and applies its Change while holding the product's lock, so a
	// read-decide-write sequence cannot interleave with other ledger writes.
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*Product, error)

	// RefreshStatuses re-derives every product's statuses and persists the ones that
	// changed. It returns only the updated products.
	RefreshStatuses(ctx context.Context) ([]*Product, error)

	// RefreshProductStatus re-derives one product's statuses and returns it.
	RefreshProductStatus(ctx context.Context, id uuid.UUID) (*Product, error)
}

type Option func(*service)

func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

func WithStatusRules(rules StatusRules) Option { return func(s *service) { s.rules = rules } }

type service struct {
	repo      Repository
	locks     *keylock.Locker
	logger    *zap.Logger
	metrics   *metrics.Registry
	publisher events.Publisher
	rules     StatusRules
	now       func() time.Time
}

// NewService creates the stock ledger service.
func NewService(repo Repository, logger *zap.Logger, m *metrics.Registry, publisher events.Publisher, opts ...Option) Service {
	s := &service{
		repo:      repo,
		locks:     keylock.New(),
		logger:    logger,
		metrics:   m,
		publisher: publisher,
		rules:     DefaultStatusRules(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if req.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if req.Quantity < 0 {
		return nil, apperr.Validation("quantity must be >= 0")
	}
	packSize := req.PackSize
	if packSize == 0 {
		packSize = 1
	}
	if packSize < 1 {
		return nil, apperr.Validation("pack_size must be >= 1")
	}

	p := &Product{
		ID:                  uuid.New(),
		Name:                req.Name,
		Quantity:            req.Quantity,
		PackSize:            packSize,
		PurchasePrice:       req.PurchasePrice,
		SellingPricePerUnit: req.SellingPricePerUnit,
		SellingPricePerPack: req.SellingPricePerPack,
		ExpirationDate:      req.ExpirationDate,
	}
	p.Statuses = s.rules.Derive(*p, s.now())
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListProducts(ctx context.Context) ([]*Product, error) {
	if _, err := s.RefreshStatuses(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *service) ListEmpty(ctx context.Context) ([]*Product, error) {
	return s.repo.ListByQuantity(ctx, 0)
}

func (s *service) Adjust(ctx context.Context, id uuid.UUID, deltaUnits int) (int, error) {
	p, err := s.Mutate(ctx, id, func(p *Product) (Change, error) {
		if p.Quantity+deltaUnits < 0 {
			return Change{}, fmt.Errorf("product %s (%s): available=%d requested=%d: %w",
				p.Name, p.ID, p.Quantity, -deltaUnits, apperr.ErrInsufficientStock)
		}
		return Change{Delta: deltaUnits}, nil
	})
	if err != nil {
		return 0, err
	}
	return p.Quantity, nil
}

func (s *service) SetQuantity(ctx context.Context, id uuid.UUID, qty int) (*Product, error) {
	if qty < 0 {
		return nil, apperr.Validation("quantity must be >= 0")
	}
	unlock := s.locks.Lock(id.String())
	defer unlock()

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.SetQuantity(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, before.Quantity, p)
	return p, nil
}

func (s *service) SetExpiration(ctx context.Context, id uuid.UUID, date *time.Time) (*Product, error) {
	return s.Mutate(ctx, id, func(*Product) (Change, error) {
		return Change{ReplaceExpiration: true, Expiration: date}, nil
	})
}

func (s *service) SetDiscontinued(ctx context.Context, id uuid.UUID, discontinued bool) (*Product, error) {
	if err := s.repo.SetDiscontinued(ctx, id, discontinued); err != nil {
		return nil, err
	}
	return s.RefreshProductStatus(ctx, id)
}

func (s *service) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*Product, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := fn(p)
	if err != nil {
		return nil, err
	}
	if c.IsZero() {
		return p, nil
	}
	updated, err := s.repo.Apply(ctx, id, c)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, p.Quantity, updated)
	return updated, nil
}

func (s *service) RefreshStatuses(ctx context.Context) ([]*Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var updated []*Product
	for _, p := range products {
		changed, err := s.refresh(ctx, p, now)
		if err != nil {
			return updated, err
		}
		if changed {
			updated = append(updated, p)
		}
	}
	return updated, nil
}

func (s *service) RefreshProductStatus(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.refresh(ctx, p, s.now()); err != nil {
		return nil, err
	}
	return p, nil
}

// refresh writes p's derived statuses back only when the set differs from the stored one.
func (s *service) refresh(ctx context.Context, p *Product, now time.Time) (bool, error) {
	derived := s.rules.Derive(*p, now)
	if SameStatuses(derived, p.Statuses) {
		return false, nil
	}
	if err := s.repo.UpdateStatuses(ctx, p.ID, derived); err != nil {
		return false, fmt.Errorf("update statuses for product %s: %w", p.ID, err)
	}
	p.Statuses = derived
	s.metrics.StatusUpdates.Inc()
	return true, nil
}

func (s *service) afterWrite(ctx context.Context, before int, p *Product) {
	s.metrics.StockAdjustments.Inc()
	s.logger.Debug("stock written",
		zap.String("product_id", p.ID.String()),
		zap.Int("before", before),
		zap.Int("after", p.Quantity),
	)
	if before > 0 && p.Quantity == 0 {
		e := events.New(events.StockDepleted, p.ID.String(), map[string]interface{}{
			"product_id": p.ID,
			"name":       p.Name,
		})
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("publish stock depleted event failed", zap.String("product_id", p.ID.String()), zap.Error(err))
		}
	}
}
