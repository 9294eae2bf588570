package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
	"github.com/georgemunganga/printa-inventory/internal/modules/inventory"
	"github.com/georgemunganga/printa-inventory/internal/platform/events"
	"github.com/georgemunganga/printa-inventory/internal/platform/keylock"
	"github.com/georgemunganga/printa-inventory/internal/platform/metrics"
)

const tracerName = "github.com/georgemunganga/printa-inventory/internal/modules/purchasing"

// Ledger is the part of the stock ledger purchasing writes through.
type Ledger interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*inventory.Product, error)
	ListEmpty(ctx context.Context) ([]*inventory.Product, error)
	Adjust(ctx context.Context, id uuid.UUID, deltaUnits int) (int, error)
	Mutate(ctx context.Context, id uuid.UUID, fn inventory.MutateFunc) (*inventory.Product, error)
}

// Replenisher refills depleted products from their queue of pending purchase
// orders, one line per zero-stock transition. Its purchase order locks are shared
// with the lifecycle service, so every status change of one order is serialized.
type Replenisher struct {
	repo      Repository
	locks     *keylock.Locker
	ledger    Ledger
	logger    *zap.Logger
	metrics   *metrics.Registry
	publisher events.Publisher
	tracer    trace.Tracer
}

func NewReplenisher(repo Repository, ledger Ledger, logger *zap.Logger, m *metrics.Registry, publisher events.Publisher) *Replenisher {
	return &Replenisher{
		repo:      repo,
		locks:     keylock.New(),
		ledger:    ledger,
		logger:    logger,
		metrics:   m,
		publisher: publisher,
		tracer:    otel.Tracer(tracerName),
	}
}

// ReplenishProduct applies the oldest pending purchase order line for productID when
// the product holds exactly zero units. The zero check and the apply happen under
// the product's ledger lock, nested inside the head order's lock. A line without an
// expiration date stops the pass and is reported in the result, not as an error.
func (r *Replenisher) ReplenishProduct(ctx context.Context, productID uuid.UUID) (*ReplenishResult, error) {
	ctx, span := r.tracer.Start(ctx, "purchasing.ReplenishProduct",
		trace.WithAttributes(attribute.String("product.id", productID.String())))
	defer span.End()

	// A stale head left the pending queue, so the loop ends with the queue.
	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		res, stale, err := r.replenishOnce(ctx, productID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
		if !stale {
			span.SetAttributes(attribute.String("replenish.outcome", string(res.Outcome)))
			return res, nil
		}
	}
}

// replenishOnce peeks the queue head and takes its purchase order lock before the
// ledger lock, the same order the lifecycle operations use. stale reports that the
// head changed before the ledger lock was acquired.
func (r *Replenisher) replenishOnce(ctx context.Context, productID uuid.UUID) (*ReplenishResult, bool, error) {
	queue, err := r.repo.ListPendingByProduct(ctx, productID)
	if err != nil {
		return nil, false, fmt.Errorf("load replenishment queue: %w", err)
	}
	var peeked uuid.UUID
	if len(queue) > 0 {
		peeked = queue[0].ID
		unlock := r.locks.Lock(peeked.String())
		defer unlock()
	}

	res := &ReplenishResult{ProductID: productID}
	stale := false
	var source *PurchaseOrder
	var line Line

	_, err = r.ledger.Mutate(ctx, productID, func(p *inventory.Product) (inventory.Change, error) {
		if p.Quantity != 0 {
			res.Outcome = OutcomeNotEmpty
			return inventory.Change{}, nil
		}
		queue, err := r.repo.ListPendingByProduct(ctx, productID)
		if err != nil {
			return inventory.Change{}, fmt.Errorf("load replenishment queue: %w", err)
		}
		if len(queue) == 0 {
			res.Outcome = OutcomeQueueEmpty
			return inventory.Change{}, nil
		}

		head := queue[0]
		if head.ID != peeked {
			stale = true
			return inventory.Change{}, nil
		}
		id := head.ID
		res.PurchaseOrderID = &id
		res.OrderNumber = head.OrderNumber
		line, _ = head.LineFor(productID)
		if line.ExpirationDate == nil {
			res.Outcome = OutcomeMissingExpiration
			return inventory.Change{}, nil
		}

		source = head
		res.Outcome = OutcomeApplied
		res.UnitsAdded = p.Units(line.Quantity, line.Pack)
		return inventory.Change{Delta: res.UnitsAdded, ReplaceExpiration: true, Expiration: line.ExpirationDate}, nil
	})
	if err != nil {
		return nil, false, err
	}
	if stale {
		return nil, true, nil
	}

	switch res.Outcome {
	case OutcomeMissingExpiration:
		r.metrics.ReplenishSkipped.WithLabelValues(ReasonMissingExpiration).Inc()
		r.logger.Warn("replenishment stopped: purchase order line has no expiration date",
			zap.String("product_id", productID.String()),
			zap.Int64("order_number", res.OrderNumber),
		)
	case OutcomeApplied:
		r.metrics.ReplenishApplied.Inc()
		r.logger.Info("product replenished",
			zap.String("product_id", productID.String()),
			zap.Int64("order_number", res.OrderNumber),
			zap.Int("units", res.UnitsAdded),
		)
		r.publish(ctx, events.New(events.StockReplenished, productID.String(), map[string]interface{}{
			"product_id":        productID,
			"purchase_order_id": source.ID,
			"order_number":      source.OrderNumber,
			"units":             res.UnitsAdded,
			"expiration_date":   line.ExpirationDate,
		}))

		completed, err := r.completeIfSufficient(ctx, source)
		if err != nil {
			return res, false, err
		}
		res.Completed = completed
	}
	return res, false, nil
}

// ReplenishAll runs one pass over every product currently holding zero units.
// Per-product failures are captured in the results.
func (r *Replenisher) ReplenishAll(ctx context.Context) ([]*ReplenishResult, error) {
	ctx, span := r.tracer.Start(ctx, "purchasing.ReplenishAll")
	defer span.End()

	empty, err := r.ledger.ListEmpty(ctx)
	if err != nil {
		return nil, fmt.Errorf("list empty products: %w", err)
	}
	results := make([]*ReplenishResult, 0, len(empty))
	for _, p := range empty {
		res, err := r.ReplenishProduct(ctx, p.ID)
		if err != nil {
			r.metrics.ReplenishSkipped.WithLabelValues(ReasonFailed).Inc()
			r.logger.Error("replenishment failed", zap.String("product_id", p.ID.String()), zap.Error(err))
			res = &ReplenishResult{ProductID: p.ID, Outcome: OutcomeFailed, Error: err.Error()}
		}
		results = append(results, res)
	}
	span.SetAttributes(attribute.Int("replenish.products", len(results)))
	return results, nil
}

// completeIfSufficient marks po COMPLETED when every line's product currently holds
// at least the line's unit requirement. Only stock levels are checked, not where
// the stock came from.
func (r *Replenisher) completeIfSufficient(ctx context.Context, po *PurchaseOrder) (bool, error) {
	for _, l := range po.Lines {
		p, err := r.ledger.GetProduct(ctx, l.ProductID)
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if p.Quantity < p.Units(l.Quantity, l.Pack) {
			return false, nil
		}
	}
	return r.markCompleted(ctx, po)
}

// markCompleted moves po from PENDING to COMPLETED and reports whether this call
// made the transition.
func (r *Replenisher) markCompleted(ctx context.Context, po *PurchaseOrder) (bool, error) {
	changed, err := r.repo.TransitionStatus(ctx, po.ID, StatusPending, StatusCompleted)
	if err != nil || !changed {
		return false, err
	}
	r.completed(ctx, po)
	return true, nil
}

// completed records a PENDING to COMPLETED transition already made by the caller.
func (r *Replenisher) completed(ctx context.Context, po *PurchaseOrder) {
	r.metrics.POCompleted.Inc()
	r.logger.Info("purchase order completed",
		zap.String("purchase_order_id", po.ID.String()),
		zap.Int64("order_number", po.OrderNumber),
	)
	r.publish(ctx, events.New(events.PurchaseOrderCompleted, po.ID.String(), map[string]interface{}{
		"purchase_order_id": po.ID,
		"order_number":      po.OrderNumber,
	}))
}

func (r *Replenisher) publish(ctx context.Context, e events.Event) {
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.logger.Warn("publish event failed", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
	}
}
