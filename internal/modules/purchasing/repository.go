package purchasing

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines purchase order storage.
type Repository interface {
	// Create assigns OrderNumber from the shared counter in the same transaction
	// as the insert.
	Create(ctx context.Context, po *PurchaseOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)

	// List returns every order, or only those in status when it is non-empty.
	List(ctx context.Context, status Status) ([]*PurchaseOrder, error)

	// ListPendingByProduct is the product's replenishment queue: pending orders with
	// a line for productID, oldest first, order number as tie-break.
	ListPendingByProduct(ctx context.Context, productID uuid.UUID) ([]*PurchaseOrder, error)

	// Update replaces the header fields and the full line set when the stored status
	// is still expected. Fails with apperr.ErrInvalidState otherwise.
	Update(ctx context.Context, po *PurchaseOrder, expected Status) error

	// TransitionStatus moves the order from one status to another and reports
	// whether the stored status was from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
