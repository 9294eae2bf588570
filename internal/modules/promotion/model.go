package promotion

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Promotion replaces a product's selling price while now lies within
// [ValidityStart, ValidityEnd]. Both bounds are inclusive.
type Promotion struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	ValidityStart   time.Time       `json:"validity_start"`
	ValidityEnd     time.Time       `json:"validity_end"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ActiveAt reports whether now falls inside the validity interval.
func (p *Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.ValidityStart) && !now.After(p.ValidityEnd)
}

type CreatePromotionRequest struct {
	ProductID       uuid.UUID       `json:"product_id"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	ValidityStart   time.Time       `json:"validity_start"`
	ValidityEnd     time.Time       `json:"validity_end"`
}
