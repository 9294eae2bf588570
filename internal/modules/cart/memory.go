package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu    sync.RWMutex
	carts map[uuid.UUID][]Item
}

func NewMemoryRepository() Repository {
	return &memoryRepo{carts: make(map[uuid.UUID][]Item)}
}

func (r *memoryRepo) Get(_ context.Context, customerID uuid.UUID) (*Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := append([]Item(nil), r.carts[customerID]...)
	return &Cart{CustomerID: customerID, Items: items}, nil
}

func (r *memoryRepo) Put(_ context.Context, c *Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[c.CustomerID] = append([]Item(nil), c.Items...)
	return nil
}

func (r *memoryRepo) Clear(_ context.Context, customerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, customerID)
	return nil
}
