package purchasing

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
	mu      sync.RWMutex
	orders  map[uuid.UUID]*PurchaseOrder
	counter int64
}

func NewMemoryRepository() Repository {
	return &memoryRepo{orders: make(map[uuid.UUID]*PurchaseOrder)}
}

func (r *memoryRepo) Create(_ context.Context, po *PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	now := time.Now().UTC()
	po.OrderNumber = r.counter
	po.CreatedAt, po.UpdatedAt = now, now
	r.orders[po.ID] = clonePO(po)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	po, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound("purchase order", id)
	}
	return clonePO(po), nil
}

func (r *memoryRepo) List(_ context.Context, status Status) ([]*PurchaseOrder, error) {
	return r.filter(func(po *PurchaseOrder) bool { return status == "" || po.Status == status }), nil
}

func (r *memoryRepo) ListPendingByProduct(_ context.Context, productID uuid.UUID) ([]*PurchaseOrder, error) {
	return r.filter(func(po *PurchaseOrder) bool {
		_, ok := po.LineFor(productID)
		return ok && po.Status == StatusPending
	}), nil
}

func (r *memoryRepo) Update(_ context.Context, po *PurchaseOrder, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[po.ID]
	if !ok {
		return apperr.NotFound("purchase order", po.ID)
	}
	if stored.Status != expected {
		return fmt.Errorf("purchase order %d is %s, expected %s: %w",
			stored.OrderNumber, stored.Status, expected, apperr.ErrInvalidState)
	}
	po.OrderNumber = stored.OrderNumber
	po.CreatedAt = stored.CreatedAt
	po.UpdatedAt = time.Now().UTC()
	r.orders[po.ID] = clonePO(po)
	return nil
}

func (r *memoryRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.orders[id]
	if !ok {
		return false, apperr.NotFound("purchase order", id)
	}
	if po.Status != from {
		return false, nil
	}
	po.Status = to
	po.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return apperr.NotFound("purchase order", id)
	}
	delete(r.orders, id)
	return nil
}

func (r *memoryRepo) filter(keep func(*PurchaseOrder) bool) []*PurchaseOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*PurchaseOrder
	for _, po := range r.orders {
		if keep(po) {
			out = append(out, clonePO(po))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out
}

func clonePO(po *PurchaseOrder) *PurchaseOrder {
	c := *po
	c.Lines = make([]Line, len(po.Lines))
	for i, l := range po.Lines {
		if l.ExpirationDate != nil {
			t := *l.ExpirationDate
			l.ExpirationDate = &t
		}
		c.Lines[i] = l
	}
	return &c
}
