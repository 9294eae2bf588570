package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for orders.
type Repository interface {
	// Create persists a new order and its lines atomically in a transaction.
	Create(ctx context.Context, o *Order) error

	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// List returns orders newest first, optionally filtered by status.
	List(ctx context.Context, status OrderStatus) ([]*Order, error)

	// Update replaces the lines and totals.
	Update(ctx context.Context, o *Order) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}
