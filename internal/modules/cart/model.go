package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one cart line. Price is the unit or pack price captured when the item
// was added, matching Pack.
type Item struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Pack      bool            `json:"pack"`
	Price     decimal.Decimal `json:"price"`
}

// Cart is a customer's pending checkout.
type Cart struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Items      []Item    `json:"items"`
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }
