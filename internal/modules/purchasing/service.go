package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
	"github.com/georgemunganga/printa-inventory/internal/modules/inventory"
	"github.com/georgemunganga/printa-inventory/internal/platform/events"
	"github.com/georgemunganga/printa-inventory/internal/platform/keylock"
	"github.com/georgemunganga/printa-inventory/internal/platform/metrics"
)

// Service defines the purchase order lifecycle and the replenishment entry points.
type Service interface {
	// CreatePurchaseOrder numbers and stores a new order. An order created COMPLETED
	// applies its lines to the ledger.
	CreatePurchaseOrder(ctx context.Context, userID uuid.UUID, req CreatePurchaseOrderRequest) (*PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status Status) ([]*PurchaseOrder, error)

	// UpdatePurchaseOrder replaces the lines. A COMPLETED order has its old lines
	// reversed first and its new lines applied when the result is COMPLETED.
	UpdatePurchaseOrder(ctx context.Context, id uuid.UUID, req UpdatePurchaseOrderRequest) (*PurchaseOrder, error)

	// DeletePurchaseOrder removes the order, reversing a COMPLETED order's stock first.
	DeletePurchaseOrder(ctx context.Context, id uuid.UUID) error

	// ReceiveStock applies every line whose product is empty and reports the rest as
	// skipped. The order completes only when nothing was skipped.
	ReceiveStock(ctx context.Context, id uuid.UUID) (*ReceiveResult, error)

	// AddAllStock applies every line regardless of stock, then completes the order.
	AddAllStock(ctx context.Context, id uuid.UUID) (*ReceiveResult, error)

	ReplenishProduct(ctx context.Context, productID uuid.UUID) (*ReplenishResult, error)
	ReplenishAll(ctx context.Context) ([]*ReplenishResult, error)
}

type service struct {
	repo        Repository
	ledger      Ledger
	replenisher *Replenisher
	locks       *keylock.Locker
	logger      *zap.Logger
	metrics     *metrics.Registry
	publisher   events.Publisher
	now         func() time.Time
}

// NewService creates the purchase order service.
func NewService(repo Repository, ledger Ledger, replenisher *Replenisher, logger *zap.Logger, m *metrics.Registry, publisher events.Publisher) Service {
	return &service{
		repo:        repo,
		ledger:      ledger,
		replenisher: replenisher,
		locks:       replenisher.locks,
		logger:      logger,
		metrics:     m,
		publisher:   publisher,
		now:         time.Now,
	}
}

func (s *service) CreatePurchaseOrder(ctx context.Context, userID uuid.UUID, req CreatePurchaseOrderRequest) (*PurchaseOrder, error) {
	if req.SupplierID == uuid.Nil {
		return nil, apperr.Validation("supplier_id is required")
	}
	status := req.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, apperr.Validation("unknown purchase order status %q", status)
	}
	lines, total, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	date := req.Date
	if date.IsZero() {
		date = s.now().UTC()
	}

	po := &PurchaseOrder{
		ID:         uuid.New(),
		UserID:     userID,
		SupplierID: req.SupplierID,
		Date:       date,
		Lines:      lines,
		Status:     status,
		Total:      total,
	}
	if err := s.repo.Create(ctx, po); err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}
	s.metrics.POCreated.Inc()
	s.logger.Info("purchase order created",
		zap.String("purchase_order_id", po.ID.String()),
		zap.Int64("order_number", po.OrderNumber),
		zap.String("status", string(po.Status)),
	)

	if po.Status == StatusCompleted {
		_, skipped := s.applyLines(ctx, po.Lines)
		s.warnSkipped(po, skipped)
		s.metrics.POCompleted.Inc()
	}
	return po, nil
}

func (s *service) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListPurchaseOrders(ctx context.Context, status Status) ([]*PurchaseOrder, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown purchase order status %q", status)
	}
	return s.repo.List(ctx, status)
}

func (s *service) UpdatePurchaseOrder(ctx context.Context, id uuid.UUID, req UpdatePurchaseOrderRequest) (*PurchaseOrder, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, total, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Lines = lines
	updated.Total = total
	if req.SupplierID != nil {
		updated.SupplierID = *req.SupplierID
	}
	if req.Date != nil {
		updated.Date = *req.Date
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, apperr.Validation("unknown purchase order status %q", *req.Status)
		}
		updated.Status = *req.Status
	}

	// ── Reverse the stock the stored order put in ───────────────────────────
	undo := func() {}
	if existing.Status == StatusCompleted {
		if undo, err = s.reverseLines(ctx, existing.Lines); err != nil {
			return nil, fmt.Errorf("reverse purchase order %d: %w", existing.OrderNumber, err)
		}
	}

	if err := s.repo.Update(ctx, &updated, existing.Status); err != nil {
		undo()
		return nil, fmt.Errorf("update purchase order: %w", err)
	}

	// ── Re-apply the new lines ──────────────────────────────────────────────
	if updated.Status == StatusCompleted {
		_, skipped := s.applyLines(ctx, updated.Lines)
		s.warnSkipped(&updated, skipped)
		if existing.Status != StatusCompleted {
			s.metrics.POCompleted.Inc()
		}
	}
	return &updated, nil
}

func (s *service) DeletePurchaseOrder(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	po, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	undo := func() {}
	if po.Status == StatusCompleted {
		if undo, err = s.reverseLines(ctx, po.Lines); err != nil {
			return fmt.Errorf("reverse purchase order %d: %w", po.OrderNumber, err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		undo()
		return err
	}
	s.logger.Info("purchase order deleted",
		zap.String("purchase_order_id", id.String()),
		zap.Int64("order_number", po.OrderNumber),
	)
	return nil
}

func (s *service) ReceiveStock(ctx context.Context, id uuid.UUID) (*ReceiveResult, error) {
	ctx, span := s.replenisher.tracer.Start(ctx, "purchasing.ReceiveStock",
		trace.WithAttributes(attribute.String("purchase_order.id", id.String())))
	defer span.End()

	unlock := s.locks.Lock(id.String())
	defer unlock()

	po, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status == StatusCompleted {
		return nil, fmt.Errorf("purchase order %d is already completed: %w", po.OrderNumber, apperr.ErrInvalidState)
	}

	res := &ReceiveResult{Added: []LineOutcome{}, Skipped: []LineOutcome{}}
	for i, l := range po.Lines {
		l := l
		out := LineOutcome{Index: i, ProductID: l.ProductID}
		_, err := s.ledger.Mutate(ctx, l.ProductID, func(p *inventory.Product) (inventory.Change, error) {
			if p.Quantity > 0 {
				out.Reason = ReasonInStock
				return inventory.Change{}, nil
			}
			if l.ExpirationDate == nil {
				out.Reason = ReasonMissingExpiration
				return inventory.Change{}, nil
			}
			out.UnitsAdded = p.Units(l.Quantity, l.Pack)
			out.Expiration = l.ExpirationDate
			return inventory.Change{Delta: out.UnitsAdded, ReplaceExpiration: true, Expiration: l.ExpirationDate}, nil
		})
		if err != nil {
			out.Reason = skipReason(err)
			out.Error = err.Error()
			out.UnitsAdded = 0
		}
		if out.Reason != "" {
			s.metrics.ReplenishSkipped.WithLabelValues(out.Reason).Inc()
			res.Skipped = append(res.Skipped, out)
			continue
		}
		s.metrics.ReplenishApplied.Inc()
		s.replenisher.publish(ctx, stockReplenished(po, out))
		res.Added = append(res.Added, out)
	}

	if len(res.Skipped) == 0 {
		if _, err := s.replenisher.markCompleted(ctx, po); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("lines.added", len(res.Added)), attribute.Int("lines.skipped", len(res.Skipped)))

	if res.PurchaseOrder, err = s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) AddAllStock(ctx context.Context, id uuid.UUID) (*ReceiveResult, error) {
	ctx, span := s.replenisher.tracer.Start(ctx, "purchasing.AddAllStock",
		trace.WithAttributes(attribute.String("purchase_order.id", id.String())))
	defer span.End()

	unlock := s.locks.Lock(id.String())
	defer unlock()

	po, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status == StatusCompleted {
		return nil, fmt.Errorf("purchase order %d is already completed: %w", po.OrderNumber, apperr.ErrInvalidState)
	}

	// Claim the transition before touching stock: a lost claim applies nothing.
	claimed, err := s.repo.TransitionStatus(ctx, id, StatusPending, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("purchase order %d is no longer pending: %w", po.OrderNumber, apperr.ErrInvalidState)
	}

	res := &ReceiveResult{}
	res.Added, res.Skipped = s.applyLines(ctx, po.Lines)
	for _, out := range res.Added {
		s.replenisher.publish(ctx, stockReplenished(po, out))
	}
	s.warnSkipped(po, res.Skipped)
	s.replenisher.completed(ctx, po)
	if res.PurchaseOrder, err = s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) ReplenishProduct(ctx context.Context, productID uuid.UUID) (*ReplenishResult, error) {
	return s.replenisher.ReplenishProduct(ctx, productID)
}

func (s *service) ReplenishAll(ctx context.Context) ([]*ReplenishResult, error) {
	return s.replenisher.ReplenishAll(ctx)
}

// ── helpers ───────────────────────────────────────────────────────────────────

// buildLines validates the requested lines against the ledger and prices them.
// It runs before any mutation.
func (s *service) buildLines(ctx context.Context, reqs []LineRequest) ([]Line, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, apperr.Validation("purchase order must contain at least one line")
	}
	lines := make([]Line, 0, len(reqs))
	total := decimal.Zero
	for i, lr := range reqs {
		if lr.ProductID == uuid.Nil {
			return nil, decimal.Zero, apperr.Validation("line %d: product_id is required", i)
		}
		if lr.Quantity <= 0 {
			return nil, decimal.Zero, apperr.Validation("line %d: quantity must be > 0", i)
		}
		if lr.PurchasePrice.IsNegative() {
			return nil, decimal.Zero, apperr.Validation("line %d: purchase_price must be >= 0", i)
		}
		p, err := s.ledger.GetProduct(ctx, lr.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}

		cost := lr.PurchasePrice
		if lr.Pack {
			cost = cost.Mul(decimal.NewFromInt(int64(p.PackSize)))
		}
		subtotal := cost.Mul(decimal.NewFromInt(int64(lr.Quantity)))
		total = total.Add(subtotal)
		lines = append(lines, Line{
			ProductID:      lr.ProductID,
			Quantity:       lr.Quantity,
			Pack:           lr.Pack,
			ExpirationDate: lr.ExpirationDate,
			PurchasePrice:  lr.PurchasePrice,
			Cost:           cost,
			Subtotal:       subtotal,
		})
	}
	return lines, total, nil
}

// applyLines adds every line to the ledger, overwriting the expiration date when the
// line carries one. Failures are reported per line.
func (s *service) applyLines(ctx context.Context, lines []Line) (added, skipped []LineOutcome) {
	added, skipped = []LineOutcome{}, []LineOutcome{}
	for i, l := range lines {
		l := l
		out := LineOutcome{Index: i, ProductID: l.ProductID}
		_, err := s.ledger.Mutate(ctx, l.ProductID, func(p *inventory.Product) (inventory.Change, error) {
			out.UnitsAdded = p.Units(l.Quantity, l.Pack)
			out.Expiration = l.ExpirationDate
			return inventory.Change{
				Delta:             out.UnitsAdded,
				ReplaceExpiration: l.ExpirationDate != nil,
				Expiration:        l.ExpirationDate,
			}, nil
		})
		if err != nil {
			out.UnitsAdded = 0
			out.Reason = skipReason(err)
			out.Error = err.Error()
			skipped = append(skipped, out)
			continue
		}
		added = append(added, out)
	}
	return added, skipped
}

// reverseLines subtracts every line's units, converted with the product's current
// pack size. If any subtraction fails the ones already made are added back. The
// returned undo re-adds everything that was subtracted.
func (s *service) reverseLines(ctx context.Context, lines []Line) (func(), error) {
	type applied struct {
		productID uuid.UUID
		units     int
	}
	var done []applied
	undo := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if _, err := s.ledger.Adjust(ctx, done[i].productID, done[i].units); err != nil {
				s.logger.Error("restore reversed stock failed",
					zap.String("product_id", done[i].productID.String()),
					zap.Int("units", done[i].units),
					zap.Error(err),
				)
			}
		}
	}

	for _, l := range lines {
		l := l
		var units int
		_, err := s.ledger.Mutate(ctx, l.ProductID, func(p *inventory.Product) (inventory.Change, error) {
			units = p.Units(l.Quantity, l.Pack)
			if p.Quantity < units {
				return inventory.Change{}, fmt.Errorf("product %s (%s): available=%d to remove=%d: %w",
					p.Name, p.ID, p.Quantity, units, apperr.ErrInsufficientStock)
			}
			return inventory.Change{Delta: -units}, nil
		})
		if err != nil {
			undo()
			return nil, err
		}
		done = append(done, applied{productID: l.ProductID, units: units})
	}
	return undo, nil
}

func (s *service) warnSkipped(po *PurchaseOrder, skipped []LineOutcome) {
	for _, out := range skipped {
		s.logger.Warn("purchase order line not applied",
			zap.Int64("order_number", po.OrderNumber),
			zap.String("product_id", out.ProductID.String()),
			zap.String("reason", out.Reason),
			zap.String("error", out.Error),
		)
	}
}

func skipReason(err error) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return ReasonProductNotFound
	}
	return ReasonFailed
}

func stockReplenished(po *PurchaseOrder, out LineOutcome) events.Event {
	return events.New(events.StockReplenished, out.ProductID.String(), map[string]interface{}{
		"product_id":        out.ProductID,
		"purchase_order_id": po.ID,
		"order_number":      po.OrderNumber,
		"units":             out.UnitsAdded,
		"expiration_date":   out.Expiration,
	})
}
