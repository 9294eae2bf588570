package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the state of a recorded sale.
type OrderStatus string

const (
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusReturned   OrderStatus = "RETURNED"
	StatusWrittenOff OrderStatus = "WRITTEN_OFF"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusReturned, StatusWrittenOff:
		return true
	}
	return false
}

// PaymentMethod represents how a sale was paid.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "CASH"
	PaymentCard        PaymentMethod = "CARD"
	PaymentMobileMoney PaymentMethod = "MOBILE_MONEY"
	PaymentVoucher     PaymentMethod = "VOUCHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobileMoney, PaymentVoucher:
		return true
	}
	return false
}

// Order is a recorded sale or disposal. Lines are price snapshots taken when the
// order was created.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        *uuid.UUID      `json:"customer_id,omitempty"` // nil for disposals
	Lines             []Line          `json:"lines"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Total             decimal.Decimal `json:"total"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
	AppliedPromotions []uuid.UUID     `json:"applied_promotions"`
	PaymentMethod     PaymentMethod   `json:"payment_method,omitempty"`
	CashReceived      decimal.Decimal `json:"cash_received"`
	Change            decimal.Decimal `json:"change"`
	Status            OrderStatus     `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// LineFor returns the index of the line for productID, or -1.
func (o *Order) LineFor(productID uuid.UUID) int {
	for i, l := range o.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Recalculate sets every line subtotal and discount and the order totals from
// SellingPricePerUnit × Quantity and (OriginalPrice − SellingPricePerUnit) × Quantity.
func (o *Order) Recalculate() {
	sum, discount := decimal.Zero, decimal.Zero
	for i := range o.Lines {
		l := &o.Lines[i]
		qty := decimal.NewFromInt(int64(l.Quantity))
		l.Subtotal = l.SellingPricePerUnit.Mul(qty)
		l.DiscountAmount = l.OriginalPrice.Sub(l.SellingPricePerUnit).Mul(qty)
		sum = sum.Add(l.Subtotal)
		discount = discount.Add(l.DiscountAmount)
	}
	o.Subtotal = sum
	o.Total = sum
	o.TotalDiscount = discount
}

// Line is a snapshot of one sold product. PackSize is informational: stock
// restoration always uses the product's current pack size.
type Line struct {
	ProductID           uuid.UUID       `json:"product_id"`
	Quantity            int             `json:"quantity"`
	Pack                bool            `json:"pack"`
	PackSize            int             `json:"pack_size"`
	PurchasePrice       decimal.Decimal `json:"purchase_price"`
	SellingPricePerUnit decimal.Decimal `json:"selling_price_per_unit"`
	OriginalPrice       decimal.Decimal `json:"original_price"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	Subtotal            decimal.Decimal `json:"subtotal"`
}

// CreateOrderRequest checks out the customer's current cart.
type CreateOrderRequest struct {
	CustomerID    uuid.UUID       `json:"customer_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CashReceived  decimal.Decimal `json:"cash_received"`
}

// AppliedPromotion records the promotion that priced a line.
type AppliedPromotion struct {
	PromotionID     uuid.UUID       `json:"promotion_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
}

type CreateOrderResult struct {
	Order             *Order             `json:"order"`
	TotalDiscount     decimal.Decimal    `json:"total_discount"`
	AppliedPromotions []AppliedPromotion `json:"applied_promotions"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// UpdateDetailRequest edits one line. Pack must match the stored line.
type UpdateDetailRequest struct {
	Quantity int  `json:"quantity"`
	Pack     bool `json:"pack"`
}

type DisposeLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Pack      bool      `json:"pack"`
}

// DisposeRequest records stock taken out of sale. Status defaults to WRITTEN_OFF.
type DisposeRequest struct {
	Status OrderStatus   `json:"status"`
	Lines  []DisposeLine `json:"lines"`
}
