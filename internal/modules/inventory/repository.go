package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines product ledger storage. Implementations must make Apply a
// single conditional write: the quantity never drops below zero.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context) ([]*Product, error)

	// ListByQuantity returns products holding exactly qty units.
	ListByQuantity(ctx context.Context, qty int) ([]*Product, error)

	// Apply adds c.Delta to the quantity and optionally overwrites the expiration date.
	// Fails with apperr.ErrInsufficientStock when the result would be negative.
	Apply(ctx context.Context, id uuid.UUID, c Change) (*Product, error)

	// SetQuantity force-sets the quantity.
	SetQuantity(ctx context.Context, id uuid.UUID, qty int) (*Product, error)

	SetDiscontinued(ctx context.Context, id uuid.UUID, discontinued bool) error
	UpdateStatuses(ctx context.Context, id uuid.UUID, statuses []StatusLabel) error
}
