package cart

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores one cart per customer. Get returns an empty cart for an
// unknown customer.
type Repository interface {
	Get(ctx context.Context, customerID uuid.UUID) (*Cart, error)
	Put(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, customerID uuid.UUID) error
}
