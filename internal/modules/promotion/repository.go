package promotion

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository stores promotions. ActiveFor returns (nil, nil) when no promotion
// covers now. Overlaps resolve to the latest ValidityStart, then the lowest
// DiscountedPrice, then the lowest id.
type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	ActiveFor(ctx context.Context, productID uuid.UUID, now time.Time) (*Promotion, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Promotion, error)
}
