package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusLabel is one display status derived from a product's stock and expiry.
type StatusLabel string

const (
	StatusPlaced       StatusLabel = "PLACED"
	StatusLowStock     StatusLabel = "LOW_STOCK"
	StatusExpiring     StatusLabel = "EXPIRING"
	StatusExpired      StatusLabel = "EXPIRED"
	StatusOutOfStock   StatusLabel = "OUT_OF_STOCK"
	StatusDiscontinued StatusLabel = "DISCONTINUED"
)

// Product is a sellable item and its stock ledger entry.
// Quantity is always in units, never packs.
type Product struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	PackSize            int             `json:"pack_size"`
	PurchasePrice       decimal.Decimal `json:"purchase_price"`
	SellingPricePerUnit decimal.Decimal `json:"selling_price_per_unit"`
	SellingPricePerPack decimal.Decimal `json:"selling_price_per_pack"`
	ExpirationDate      *time.Time      `json:"expiration_date,omitempty"`
	Statuses            []StatusLabel   `json:"statuses"`
	Discontinued        bool            `json:"discontinued"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Units converts a line quantity into ledger units.
func (p *Product) Units(quantity int, pack bool) int {
	return Units(quantity, pack, p.PackSize)
}

// Units converts quantity into units: packs are multiplied by packSize.
func Units(quantity int, pack bool, packSize int) int {
	if pack {
		return quantity * packSize
	}
	return quantity
}

// Change is one atomic ledger mutation. Delta is added to the quantity; when
// ReplaceExpiration is set the expiration date is overwritten with Expiration.
type Change struct {
	Delta             int
	ReplaceExpiration bool
	Expiration        *time.Time
}

func (c Change) IsZero() bool { return c.Delta == 0 && !c.ReplaceExpiration }

// CreateProductRequest holds data for registering a product in the ledger.
type CreateProductRequest struct {
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	PackSize            int             `json:"pack_size"`
	PurchasePrice       decimal.Decimal `json:"purchase_price"`
	SellingPricePerUnit decimal.Decimal `json:"selling_price_per_unit"`
	SellingPricePerPack decimal.Decimal `json:"selling_price_per_pack"`
	ExpirationDate      *time.Time      `json:"expiration_date,omitempty"`
}

// AdjustStockRequest is the payload for a signed unit adjustment.
type AdjustStockRequest struct {
	Delta int `json:"delta"`
}

// SetExpirationRequest is the payload for overwriting a product's expiration date.
type SetExpirationRequest struct {
	ExpirationDate *time.Time `json:"expiration_date"`
}

// SetDiscontinuedRequest toggles the manual discontinued flag.
type SetDiscontinuedRequest struct {
	Discontinued bool `json:"discontinued"`
}
