package purchasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a purchase order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) Valid() bool { return s == StatusPending || s == StatusCompleted }

// PurchaseOrder is a supplier delivery that feeds the per-product replenishment queue
// while PENDING.
type PurchaseOrder struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber int64           `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	SupplierID  uuid.UUID       `json:"supplier_id"`
	Date        time.Time       `json:"date"`
	Lines       []Line          `json:"lines"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LineFor returns the first line for productID.
func (po *PurchaseOrder) LineFor(productID uuid.UUID) (Line, bool) {
	for _, l := range po.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// Line is one product on a purchase order. Cost is the price of one ordered item
// (a pack when Pack is set).
type Line struct {
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       int             `json:"quantity"`
	Pack           bool            `json:"pack"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	Cost           decimal.Decimal `json:"cost"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// LineRequest describes one line on create or update.
type LineRequest struct {
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       int             `json:"quantity"`
	Pack           bool            `json:"pack"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
}

type CreatePurchaseOrderRequest struct {
	SupplierID uuid.UUID     `json:"supplier_id"`
	Date       time.Time     `json:"date"`
	Status     Status        `json:"status,omitempty"`
	Lines      []LineRequest `json:"lines"`
}

// UpdatePurchaseOrderRequest replaces the line set. Nil fields keep the stored value.
type UpdatePurchaseOrderRequest struct {
	SupplierID *uuid.UUID    `json:"supplier_id,omitempty"`
	Date       *time.Time    `json:"date,omitempty"`
	Status     *Status       `json:"status,omitempty"`
	Lines      []LineRequest `json:"lines"`
}

// Skip reasons reported for lines that were not applied.
const (
	ReasonInStock           = "product_in_stock"
	ReasonMissingExpiration = "missing_expiration"
	ReasonProductNotFound   = "product_not_found"
	ReasonFailed            = "failed"
)

// LineOutcome reports what happened to one purchase order line.
type LineOutcome struct {
	Index      int        `json:"index"`
	ProductID  uuid.UUID  `json:"product_id"`
	UnitsAdded int        `json:"units_added,omitempty"`
	Expiration *time.Time `json:"expiration_date,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ReceiveResult is returned by manual receipt: partial success is a normal outcome.
type ReceiveResult struct {
	PurchaseOrder *PurchaseOrder `json:"purchase_order"`
	Added         []LineOutcome  `json:"added"`
	Skipped       []LineOutcome  `json:"skipped"`
}

// Outcome of a single replenishment pass for one product.
type Outcome string

const (
	OutcomeApplied           Outcome = "APPLIED"
	OutcomeNotEmpty          Outcome = "NOT_EMPTY"
	OutcomeQueueEmpty        Outcome = "QUEUE_EMPTY"
	OutcomeMissingExpiration Outcome = "MISSING_EXPIRATION"
	OutcomeFailed            Outcome = "FAILED"
)

type ReplenishResult struct {
	ProductID       uuid.UUID  `json:"product_id"`
	Outcome         Outcome    `json:"outcome"`
	PurchaseOrderID *uuid.UUID `json:"purchase_order_id,omitempty"`
	OrderNumber     int64      `json:"order_number,omitempty"`
	UnitsAdded      int        `json:"units_added,omitempty"`
	Completed       bool       `json:"completed"`
	Error           string     `json:"error,omitempty"`
}
