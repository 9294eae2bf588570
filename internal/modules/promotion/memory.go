package promotion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu         sync.RWMutex
	promotions map[uuid.UUID]*Promotion
}

func NewMemoryRepository() Repository {
	return &memoryRepo{promotions: make(map[uuid.UUID]*Promotion)}
}

func (r *memoryRepo) Create(_ context.Context, p *Promotion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	c := *p
	r.promotions[p.ID] = &c
	return nil
}

func (r *memoryRepo) ActiveFor(_ context.Context, productID uuid.UUID, now time.Time) (*Promotion, error) {
	var best *Promotion
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.promotions {
		if p.ProductID != productID || !p.ActiveAt(now) {
			continue
		}
		if best == nil || preferred(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func (r *memoryRepo) ListByProduct(_ context.Context, productID uuid.UUID) ([]*Promotion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Promotion
	for _, p := range r.promotions {
		if p.ProductID == productID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return preferred(out[i], out[j]) })
	return out, nil
}

// preferred orders a before b when a wins an overlap.
func preferred(a, b *Promotion) bool {
	if !a.ValidityStart.Equal(b.ValidityStart) {
		return a.ValidityStart.After(b.ValidityStart)
	}
	if c := a.DiscountedPrice.Cmp(b.DiscountedPrice); c != 0 {
		return c < 0
	}
	return a.ID.String() < b.ID.String()
}
