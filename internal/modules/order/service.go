package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
	"github.com/georgemunganga/printa-inventory/internal/modules/cart"
	"github.com/georgemunganga/printa-inventory/internal/modules/inventory"
	"github.com/georgemunganga/printa-inventory/internal/modules/promotion"
	"github.com/georgemunganga/printa-inventory/internal/modules/purchasing"
	"github.com/georgemunganga/printa-inventory/internal/platform/events"
	"github.com/georgemunganga/printa-inventory/internal/platform/keylock"
	"github.com/georgemunganga/printa-inventory/internal/platform/metrics"
)

const tracerName = "github.com/georgemunganga/printa-inventory/internal/modules/order"

// StockLedger is the part of the stock ledger fulfillment writes through.
type StockLedger interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*inventory.Product, error)
	Adjust(ctx context.Context, id uuid.UUID, deltaUnits int) (int, error)
	SetQuantity(ctx context.Context, id uuid.UUID, qty int) (*inventory.Product, error)
}

type Promotions interface {
	ActiveFor(ctx context.Context, productID uuid.UUID, now time.Time) (*promotion.Promotion, error)
}

type Carts interface {
	Get(ctx context.Context, customerID uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
}

type Replenisher interface {
	ReplenishProduct(ctx context.Context, productID uuid.UUID) (*purchasing.ReplenishResult, error)
}

// Service defines sale and disposal recording on top of the stock ledger.
type Service interface {
	// CreateOrder checks out the customer's cart. A rejected order leaves the ledger
	// unchanged.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, status OrderStatus) ([]*Order, error)

	// UpdateOrderStatus sets the status. COMPLETED to CANCELLED or RETURNED puts the
	// sold units back using each product's current pack size.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus) (*Order, error)

	// UpdateOrderDetail changes one line's quantity and moves the unit difference
	// through the ledger.
	UpdateOrderDetail(ctx context.Context, id, productID uuid.UUID, req UpdateDetailRequest) (*Order, error)

	// CreateDisposeOrder empties every listed product without an availability check.
	CreateDisposeOrder(ctx context.Context, req DisposeRequest) (*Order, error)

	// DeleteOrder removes the order, restoring a COMPLETED order's units first.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type Option func(*service)

func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

type service struct {
	repo        Repository
	ledger      StockLedger
	promotions  Promotions
	carts       Carts
	replenisher Replenisher
	locks       *keylock.Locker
	logger      *zap.Logger
	metrics     *metrics.Registry
	publisher   events.Publisher
	tracer      trace.Tracer
	now         func() time.Time
}

// NewService creates the order fulfillment service.
func NewService(repo Repository, ledger StockLedger, promotions Promotions, carts Carts, replenisher Replenisher,
	logger *zap.Logger, m *metrics.Registry, publisher events.Publisher, opts ...Option) Service {
	s := &service{
		repo:        repo,
		ledger:      ledger,
		promotions:  promotions,
		carts:       carts,
		replenisher: replenisher,
		locks:       keylock.New(),
		logger:      logger,
		metrics:     m,
		publisher:   publisher,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// decrement is one ledger write made by an order, kept so it can be undone.
type decrement struct {
	productID uuid.UUID
	units     int
}

func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (res *CreateOrderResult, err error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder",
		trace.WithAttributes(attribute.String("customer.id", req.CustomerID.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !req.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment_method %q (allowed: CASH, CARD, MOBILE_MONEY, VOUCHER)", req.PaymentMethod)
	}
	c, err := s.carts.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c.Empty() {
		return nil, apperr.ErrEmptyCart
	}

	// ── Pre-pass: resolve products and check availability ───────────────────
	products := make([]*inventory.Product, len(c.Items))
	required := map[uuid.UUID]int{}
	for i, item := range c.Items {
		if item.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be > 0 for product %s", item.ProductID)
		}
		p, err := s.ledger.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		products[i] = p
		required[p.ID] += p.Units(item.Quantity, item.Pack)
		if p.Quantity < required[p.ID] {
			s.metrics.OrdersRejected.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("product %s (%s): available=%d required=%d: %w",
				p.Name, p.ID, p.Quantity, required[p.ID], apperr.ErrInsufficientStock)
		}
	}

	// ── Pricing ─────────────────────────────────────────────────────────────
	now := s.now()
	customerID := req.CustomerID
	o := &Order{
		ID:                uuid.New(),
		CustomerID:        &customerID,
		PaymentMethod:     req.PaymentMethod,
		Status:            StatusCompleted,
		AppliedPromotions: []uuid.UUID{},
	}
	res = &CreateOrderResult{Order: o, AppliedPromotions: []AppliedPromotion{}}
	subtotal, totalDiscount := decimal.Zero, decimal.Zero
	for i, item := range c.Items {
		p := products[i]
		qty := decimal.NewFromInt(int64(item.Quantity))
		unitPrice, discount := item.Price, decimal.Zero

		promo, err := s.promotions.ActiveFor(ctx, p.ID, now)
		if err != nil {
			return nil, fmt.Errorf("look up promotion for product %s: %w", p.ID, err)
		}
		if promo != nil {
			unitPrice = promo.DiscountedPrice
			discount = item.Price.Sub(promo.DiscountedPrice).Mul(qty)
			totalDiscount = totalDiscount.Add(discount)
			o.AppliedPromotions = append(o.AppliedPromotions, promo.ID)
			res.AppliedPromotions = append(res.AppliedPromotions, AppliedPromotion{
				PromotionID:     promo.ID,
				ProductID:       p.ID,
				DiscountedPrice: promo.DiscountedPrice,
				DiscountAmount:  discount,
			})
		}

		lineSubtotal := unitPrice.Mul(qty)
		subtotal = subtotal.Add(lineSubtotal)
		o.Lines = append(o.Lines, Line{
			ProductID:           p.ID,
			Quantity:            item.Quantity,
			Pack:                item.Pack,
			PackSize:            p.PackSize,
			PurchasePrice:       p.PurchasePrice,
			SellingPricePerUnit: unitPrice,
			OriginalPrice:       item.Price,
			DiscountAmount:      discount,
			Subtotal:            lineSubtotal,
		})
	}
	o.Subtotal, o.Total, o.TotalDiscount = subtotal, subtotal, totalDiscount
	res.TotalDiscount = totalDiscount

	// ── Payment ─────────────────────────────────────────────────────────────
	if req.PaymentMethod == PaymentCash {
		if req.CashReceived.LessThan(subtotal) {
			s.metrics.OrdersRejected.WithLabelValues("insufficient_payment").Inc()
			return nil, fmt.Errorf("cash received %s is less than total %s: %w",
				req.CashReceived.StringFixed(2), subtotal.StringFixed(2), apperr.ErrInsufficientPayment)
		}
		o.CashReceived = req.CashReceived
		o.Change = req.CashReceived.Sub(subtotal)
	}

	// ── Decrement the ledger ────────────────────────────────────────────────
	var done []decrement
	var emptied []uuid.UUID
	for i, l := range o.Lines {
		units := products[i].Units(l.Quantity, l.Pack)
		left, err := s.ledger.Adjust(ctx, l.ProductID, -units)
		if err != nil {
			s.undo(ctx, done)
			s.metrics.OrdersRejected.WithLabelValues("insufficient_stock").Inc()
			return nil, err
		}
		done = append(done, decrement{productID: l.ProductID, units: units})
		if left == 0 {
			emptied = append(emptied, l.ProductID)
		}
	}

	// ── Persist ─────────────────────────────────────────────────────────────
	if err := s.repo.Create(ctx, o); err != nil {
		s.undo(ctx, done)
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	if err := s.carts.Clear(ctx, req.CustomerID); err != nil {
		s.logger.Warn("clear cart failed", zap.String("customer_id", req.CustomerID.String()), zap.Error(err))
	}

	s.metrics.OrdersCreated.Inc()
	s.logger.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Total.String()),
	)
	s.publish(ctx, events.New(events.OrderCreated, o.ID.String(), map[string]interface{}{
		"order_id": o.ID,
		"total":    o.Total,
		"lines":    len(o.Lines),
	}))
	s.replenish(ctx, emptied)
	span.SetAttributes(attribute.String("order.id", o.ID.String()))
	return res, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListOrders(ctx context.Context, status OrderStatus) ([]*Order, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown order status %q", status)
	}
	return s.repo.List(ctx, status)
}

func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unrecognized order status %q: %w", status, apperr.ErrInvalidState)
	}
	unlock := s.locks.Lock(id.String())
	defer unlock()

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	restoring := o.Status == StatusCompleted && (status == StatusCancelled || status == StatusReturned)
	undo := func() {}
	if restoring {
		if undo, err = s.restore(ctx, o); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		undo()
		return nil, err
	}
	if restoring {
		s.stockRestored(ctx, o)
	}
	o.Status = status
	return o, nil
}

func (s *service) UpdateOrderDetail(ctx context.Context, id, productID uuid.UUID, req UpdateDetailRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be > 0")
	}
	unlock := s.locks.Lock(id.String())
	defer unlock()

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusCompleted {
		return nil, fmt.Errorf("order %s is %s, only COMPLETED orders can be edited: %w", o.ID, o.Status, apperr.ErrInvalidState)
	}
	i := o.LineFor(productID)
	if i < 0 {
		return nil, apperr.NotFound("order line for product", productID)
	}
	line := &o.Lines[i]
	if req.Pack != line.Pack {
		return nil, apperr.Validation("pack cannot be changed on an existing line")
	}

	p, err := s.ledger.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	delta := p.Units(req.Quantity, line.Pack) - p.Units(line.Quantity, line.Pack)
	left := -1
	if delta != 0 {
		if left, err = s.ledger.Adjust(ctx, productID, -delta); err != nil {
			return nil, err
		}
	}

	line.Quantity = req.Quantity
	o.Recalculate()
	if err := s.repo.Update(ctx, o); err != nil {
		if delta != 0 {
			s.undo(ctx, []decrement{{productID: productID, units: delta}})
		}
		return nil, err
	}
	if left == 0 {
		s.replenish(ctx, []uuid.UUID{productID})
	}
	return o, nil
}

func (s *service) CreateDisposeOrder(ctx context.Context, req DisposeRequest) (*Order, error) {
	status := req.Status
	if status == "" {
		status = StatusWrittenOff
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unrecognized order status %q: %w", status, apperr.ErrInvalidState)
	}
	if len(req.Lines) == 0 {
		return nil, apperr.Validation("dispose order must contain at least one line")
	}

	products := make([]*inventory.Product, len(req.Lines))
	for i, dl := range req.Lines {
		if dl.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be > 0 for product %s", dl.ProductID)
		}
		p, err := s.ledger.GetProduct(ctx, dl.ProductID)
		if err != nil {
			return nil, err
		}
		products[i] = p
	}

	o := &Order{ID: uuid.New(), Status: status, AppliedPromotions: []uuid.UUID{}}
	for i, dl := range req.Lines {
		p := products[i]
		selling := p.PurchasePrice
		if status != StatusWrittenOff {
			selling = p.SellingPricePerUnit
			if dl.Pack {
				selling = p.SellingPricePerPack
			}
		}
		o.Lines = append(o.Lines, Line{
			ProductID:           p.ID,
			Quantity:            dl.Quantity,
			Pack:                dl.Pack,
			PackSize:            p.PackSize,
			PurchasePrice:       p.PurchasePrice,
			SellingPricePerUnit: selling,
			OriginalPrice:       selling,
		})
	}
	o.Recalculate()

	// Each product is forced to zero whatever it held.
	var emptied []uuid.UUID
	for _, p := range products {
		if _, err := s.ledger.SetQuantity(ctx, p.ID, 0); err != nil {
			return nil, fmt.Errorf("empty product %s: %w", p.ID, err)
		}
		emptied = append(emptied, p.ID)
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to persist dispose order: %w", err)
	}
	s.logger.Info("dispose order recorded",
		zap.String("order_id", o.ID.String()),
		zap.String("status", string(o.Status)),
		zap.Int("lines", len(o.Lines)),
	)
	s.replenish(ctx, emptied)
	return o, nil
}

func (s *service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	undo := func() {}
	if o.Status == StatusCompleted {
		if undo, err = s.restore(ctx, o); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		undo()
		return err
	}
	if o.Status == StatusCompleted {
		s.stockRestored(ctx, o)
	}
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// restore puts every line's units back, converted with the product's current
// pack size rather than the snapshot. If a line fails the lines already restored
// are taken out again. The returned undo takes out everything restored.
func (s *service) restore(ctx context.Context, o *Order) (func(), error) {
	var done []decrement
	undo := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if _, err := s.ledger.Adjust(ctx, done[i].productID, -done[i].units); err != nil {
				s.logger.Error("withdraw restored stock failed",
					zap.String("order_id", o.ID.String()),
					zap.String("product_id", done[i].productID.String()),
					zap.Int("units", done[i].units),
					zap.Error(err),
				)
			}
		}
	}

	for _, l := range o.Lines {
		p, err := s.ledger.GetProduct(ctx, l.ProductID)
		if err != nil {
			undo()
			return nil, fmt.Errorf("restore stock for order %s: %w", o.ID, err)
		}
		units := p.Units(l.Quantity, l.Pack)
		if _, err := s.ledger.Adjust(ctx, l.ProductID, units); err != nil {
			undo()
			return nil, fmt.Errorf("restore stock for order %s: %w", o.ID, err)
		}
		done = append(done, decrement{productID: l.ProductID, units: units})
	}
	return undo, nil
}

func (s *service) stockRestored(ctx context.Context, o *Order) {
	s.publish(ctx, events.New(events.OrderStockRestored, o.ID.String(), map[string]interface{}{
		"order_id": o.ID,
		"lines":    len(o.Lines),
	}))
}

func (s *service) undo(ctx context.Context, done []decrement) {
	for i := len(done) - 1; i >= 0; i-- {
		if _, err := s.ledger.Adjust(ctx, done[i].productID, done[i].units); err != nil {
			s.logger.Error("compensating stock adjustment failed",
				zap.String("product_id", done[i].productID.String()),
				zap.Int("units", done[i].units),
				zap.Error(err),
			)
		}
	}
}

// replenish refills the given products. Failures are logged and counted, never
// returned.
func (s *service) replenish(ctx context.Context, productIDs []uuid.UUID) {
	for _, id := range productIDs {
		if _, err := s.replenisher.ReplenishProduct(ctx, id); err != nil {
			s.metrics.ReplenishFailures.Inc()
			s.logger.Error("replenishment after stock change failed",
				zap.String("product_id", id.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
	}
}
