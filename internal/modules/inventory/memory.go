package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

type memoryRepo struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*Product
}

// NewMemoryRepository returns a map-backed Repository used when no database is configured.
func NewMemoryRepository() Repository {
	return &memoryRepo{products: make(map[uuid.UUID]*Product)}
}

func (r *memoryRepo) Create(_ context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	return cloneProduct(p), nil
}

func (r *memoryRepo) List(_ context.Context) ([]*Product, error) {
	return r.filter(func(*Product) bool { return true }), nil
}

func (r *memoryRepo) ListByQuantity(_ context.Context, qty int) ([]*Product, error) {
	return r.filter(func(p *Product) bool { return p.Quantity == qty }), nil
}

func (r *memoryRepo) Apply(_ context.Context, id uuid.UUID, c Change) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	if p.Quantity+c.Delta < 0 {
		return nil, fmt.Errorf("product %s: available=%d requested=%d: %w", id, p.Quantity, -c.Delta, apperr.ErrInsufficientStock)
	}
	p.Quantity += c.Delta
	if c.ReplaceExpiration {
		p.ExpirationDate = cloneTime(c.Expiration)
	}
	p.UpdatedAt = time.Now().UTC()
	return cloneProduct(p), nil
}

func (r *memoryRepo) SetQuantity(_ context.Context, id uuid.UUID, qty int) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	p.Quantity = qty
	p.UpdatedAt = time.Now().UTC()
	return cloneProduct(p), nil
}

func (r *memoryRepo) SetDiscontinued(_ context.Context, id uuid.UUID, discontinued bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return apperr.NotFound("product", id)
	}
	p.Discontinued = discontinued
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepo) UpdateStatuses(_ context.Context, id uuid.UUID, statuses []StatusLabel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return apperr.NotFound("product", id)
	}
	p.Statuses = append([]StatusLabel(nil), statuses...)
	return nil
}

func (r *memoryRepo) filter(keep func(*Product) bool) []*Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Product
	for _, p := range r.products {
		if keep(p) {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneProduct(p *Product) *Product {
	c := *p
	c.ExpirationDate = cloneTime(p.ExpirationDate)
	c.Statuses = append([]StatusLabel(nil), p.Statuses...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
