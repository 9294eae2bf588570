package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
	"github.com/georgemunganga/printa-inventory/internal/modules/cart"
	"github.com/georgemunganga/printa-inventory/internal/modules/inventory"
	"github.com/georgemunganga/printa-inventory/internal/modules/promotion"
	"github.com/georgemunganga/printa-inventory/internal/modules/purchasing"
	"github.com/georgemunganga/printa-inventory/internal/platform/events"
	"github.com/georgemunganga/printa-inventory/internal/platform/metrics"
)

var now = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc        Service
	repo       Repository
	ledger     inventory.Service
	promotions promotion.Service
	carts      cart.Service
	purchasing purchasing.Service
	metrics    *metrics.Registry
	publisher  *events.MemoryPublisher
	customer   uuid.UUID
}

type failingReplenisher struct{}

func (failingReplenisher) ReplenishProduct(context.Context, uuid.UUID) (*purchasing.ReplenishResult, error) {
	return nil, errors.New("queue unavailable")
}

func newFixture(t *testing.T, replenisher ...Replenisher) *fixture {
	t.Helper()
	f := &fixture{
		repo:       NewMemoryRepository(),
		promotions: promotion.NewService(promotion.NewMemoryRepository()),
		carts:      cart.NewService(cart.NewMemoryRepository()),
		metrics:    metrics.NewRegistry(),
		publisher:  events.NewMemoryPublisher(),
		customer:   uuid.New(),
	}
	clock := func() time.Time { return now }
	f.ledger = inventory.NewService(inventory.NewMemoryRepository(), zap.NewNop(), f.metrics, f.publisher, inventory.WithClock(clock))
	poRepo := purchasing.NewMemoryRepository()
	r := purchasing.NewReplenisher(poRepo, f.ledger, zap.NewNop(), f.metrics, f.publisher)
	f.purchasing = purchasing.NewService(poRepo, f.ledger, r, zap.NewNop(), f.metrics, f.publisher)

	var rep Replenisher = f.purchasing
	if len(replenisher) > 0 {
		rep = replenisher[0]
	}
	f.svc = NewService(f.repo, f.ledger, f.promotions, f.carts, rep, zap.NewNop(), f.metrics, f.publisher, WithClock(clock))
	return f
}

func (f *fixture) product(t *testing.T, qty, packSize int) *inventory.Product {
	t.Helper()
	p, err := f.ledger.CreateProduct(context.Background(), inventory.CreateProductRequest{
		Name:                "Soap",
		Quantity:            qty,
		PackSize:            packSize,
		PurchasePrice:       decimal.NewFromInt(4),
		SellingPricePerUnit: decimal.NewFromInt(10),
		SellingPricePerPack: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) fillCart(t *testing.T, items ...cart.Item) {
	t.Helper()
	_, err := f.carts.Replace(context.Background(), f.customer, items)
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.ledger.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) checkout(t *testing.T, method PaymentMethod, cash int64) *CreateOrderResult {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: f.customer, PaymentMethod: method, CashReceived: decimal.NewFromInt(cash),
	})
	require.NoError(t, err)
	return res
}

func TestCreateOrder_AppliesActivePromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 10, 1)
	promo, err := f.promotions.Create(ctx, promotion.CreatePromotionRequest{
		ProductID:       p.ID,
		DiscountedPrice: decimal.NewFromInt(8),
		ValidityStart:   now.Add(-time.Hour),
		ValidityEnd:     now.Add(time.Hour),
	})
	require.NoError(t, err)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 3, Price: decimal.NewFromInt(10)})

	res := f.checkout(t, PaymentCard, 0)
	line := res.Order.Lines[0]
	require.True(t, decimal.NewFromInt(8).Equal(line.SellingPricePerUnit))
	require.True(t, decimal.NewFromInt(10).Equal(line.OriginalPrice))
	require.True(t, decimal.NewFromInt(6).Equal(line.DiscountAmount))
	require.True(t, decimal.NewFromInt(24).Equal(res.Order.Subtotal))
	require.True(t, decimal.NewFromInt(24).Equal(res.Order.Total))
	require.True(t, decimal.NewFromInt(6).Equal(res.TotalDiscount))
	require.Len(t, res.AppliedPromotions, 1)
	require.Equal(t, promo.ID, res.AppliedPromotions[0].PromotionID)
	require.Equal(t, StatusCompleted, res.Order.Status)

	require.Equal(t, 7, f.quantity(t, p.ID))
	c, err := f.carts.Get(ctx, f.customer)
	require.NoError(t, err)
	require.True(t, c.Empty())
	require.Len(t, f.publisher.OfType(events.OrderCreated), 1)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OrdersCreated))
}

func TestCreateOrder_UsesCartPriceWithoutPromotion(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 50, 12)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 2, Pack: true, Price: decimal.NewFromInt(95)})

	res := f.checkout(t, PaymentMobileMoney, 0)
	require.True(t, decimal.NewFromInt(190).Equal(res.Order.Subtotal))
	require.True(t, res.TotalDiscount.IsZero())
	require.Empty(t, res.AppliedPromotions)
	require.Equal(t, 26, f.quantity(t, p.ID))
	require.Equal(t, 12, res.Order.Lines[0].PackSize)
}

func TestCreateOrder_InsufficientStockLeavesLedgerUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, 10, 1)
	b := f.product(t, 5, 1)
	f.fillCart(t,
		cart.Item{ProductID: a.ID, Quantity: 2, Price: decimal.NewFromInt(10)},
		cart.Item{ProductID: b.ID, Quantity: 6, Price: decimal.NewFromInt(10)},
	)

	_, err := f.svc.CreateOrder(ctx, CreateOrderRequest{CustomerID: f.customer, PaymentMethod: PaymentCard})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	require.Contains(t, err.Error(), b.ID.String())
	require.Equal(t, 10, f.quantity(t, a.ID))
	require.Equal(t, 5, f.quantity(t, b.ID))

	c, err := f.carts.Get(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
}

func TestCreateOrder_RepeatedProductCountsTogether(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, 5, 1)
	f.fillCart(t,
		cart.Item{ProductID: p.ID, Quantity: 3, Price: decimal.NewFromInt(10)},
		cart.Item{ProductID: p.ID, Quantity: 3, Price: decimal.NewFromInt(10)},
	)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: f.customer, PaymentMethod: PaymentCard})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	require.Equal(t, 5, f.quantity(t, p.ID))
}

func TestCreateOrder_CashPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 20, 1)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 5, Price: decimal.NewFromInt(10)})

	_, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: f.customer, PaymentMethod: PaymentCash, CashReceived: decimal.NewFromInt(40),
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientPayment)
	require.Equal(t, 20, f.quantity(t, p.ID))

	res := f.checkout(t, PaymentCash, 60)
	require.True(t, decimal.NewFromInt(10).Equal(res.Order.Change))
	require.True(t, decimal.NewFromInt(60).Equal(res.Order.CashReceived))
	require.Equal(t, 15, f.quantity(t, p.ID))
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, CreateOrderRequest{CustomerID: f.customer, PaymentMethod: PaymentCard})
	require.ErrorIs(t, err, apperr.ErrEmptyCart)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateOrder(ctx, CreateOrderRequest{CustomerID: f.customer, PaymentMethod: "CHEQUE"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	f.fillCart(t, cart.Item{ProductID: uuid.New(), Quantity: 1})
	_, err = f.svc.CreateOrder(ctx, CreateOrderRequest{CustomerID: f.customer, PaymentMethod: PaymentCard})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateOrder_ReplenishesEmptiedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 3, 6)
	exp := now.Add(90 * 24 * time.Hour)
	_, err := f.purchasing.CreatePurchaseOrder(ctx, uuid.New(), purchasing.CreatePurchaseOrderRequest{
		SupplierID: uuid.New(),
		Lines:      []purchasing.LineRequest{{ProductID: p.ID, Quantity: 2, Pack: true, ExpirationDate: &exp}},
	})
	require.NoError(t, err)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 3, Price: decimal.NewFromInt(10)})

	f.checkout(t, PaymentCard, 0)

	got, err := f.ledger.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 12, got.Quantity)
	require.True(t, exp.Equal(*got.ExpirationDate))
}

func TestCreateOrder_ReplenishFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t, failingReplenisher{})
	p := f.product(t, 2, 1)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 2, Price: decimal.NewFromInt(10)})

	res := f.checkout(t, PaymentCard, 0)
	require.NotNil(t, res.Order)
	require.Equal(t, 0, f.quantity(t, p.ID))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReplenishFailures))
}

func TestUpdateOrderStatus_CancelRestoresWithCurrentPackSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 30, 12)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 2, Pack: true, Price: decimal.NewFromInt(100)})
	res := f.checkout(t, PaymentCard, 0)
	require.Equal(t, 6, f.quantity(t, p.ID))

	// the snapshot's pack size is not used for restoration
	stored, err := f.repo.GetByID(ctx, res.Order.ID)
	require.NoError(t, err)
	stored.Lines[0].PackSize = 6
	require.NoError(t, f.repo.Update(ctx, stored))

	o, err := f.svc.UpdateOrderStatus(ctx, res.Order.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, o.Status)
	require.Equal(t, 30, f.quantity(t, p.ID))
	require.Len(t, f.publisher.OfType(events.OrderStockRestored), 1)

	// only a transition out of COMPLETED restores stock
	_, err = f.svc.UpdateOrderStatus(ctx, res.Order.ID, StatusReturned)
	require.NoError(t, err)
	require.Equal(t, 30, f.quantity(t, p.ID))
}

// restockFailingLedger rejects putting units back for one product.
type restockFailingLedger struct {
	StockLedger
	product uuid.UUID
}

func (l restockFailingLedger) Adjust(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	if id == l.product && delta > 0 {
		return 0, errors.New("ledger unavailable")
	}
	return l.StockLedger.Adjust(ctx, id, delta)
}

func TestUpdateOrderStatus_FailedRestoreWithdrawsEarlierLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, 10, 1)
	b := f.product(t, 10, 1)
	f.fillCart(t,
		cart.Item{ProductID: a.ID, Quantity: 2, Price: decimal.NewFromInt(10)},
		cart.Item{ProductID: b.ID, Quantity: 3, Price: decimal.NewFromInt(10)},
	)
	res := f.checkout(t, PaymentCard, 0)

	flaky := NewService(f.repo, restockFailingLedger{StockLedger: f.ledger, product: b.ID},
		f.promotions, f.carts, f.purchasing, zap.NewNop(), f.metrics, f.publisher, WithClock(func() time.Time { return now }))
	_, err := flaky.UpdateOrderStatus(ctx, res.Order.ID, StatusCancelled)
	require.Error(t, err)
	require.Equal(t, 8, f.quantity(t, a.ID))
	require.Equal(t, 7, f.quantity(t, b.ID))
	require.Empty(t, f.publisher.OfType(events.OrderStockRestored))

	stored, err := f.repo.GetByID(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)

	// a retry restores every line exactly once
	_, err = f.svc.UpdateOrderStatus(ctx, res.Order.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, 10, f.quantity(t, a.ID))
	require.Equal(t, 10, f.quantity(t, b.ID))
}

func TestUpdateOrderStatus_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateOrderStatus(context.Background(), uuid.New(), "SHIPPED")
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.UpdateOrderStatus(context.Background(), uuid.New(), StatusCancelled)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateOrderDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 10, 1)
	other := f.product(t, 10, 1)
	f.fillCart(t,
		cart.Item{ProductID: p.ID, Quantity: 2, Price: decimal.NewFromInt(10)},
		cart.Item{ProductID: other.ID, Quantity: 1, Price: decimal.NewFromInt(7)},
	)
	res := f.checkout(t, PaymentCard, 0)
	require.Equal(t, 8, f.quantity(t, p.ID))

	o, err := f.svc.UpdateOrderDetail(ctx, res.Order.ID, p.ID, UpdateDetailRequest{Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, 5, f.quantity(t, p.ID))
	require.True(t, decimal.NewFromInt(57).Equal(o.Total), o.Total.String())

	o, err = f.svc.UpdateOrderDetail(ctx, res.Order.ID, p.ID, UpdateDetailRequest{Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, 9, f.quantity(t, p.ID))
	require.True(t, decimal.NewFromInt(17).Equal(o.Subtotal))

	_, err = f.svc.UpdateOrderDetail(ctx, res.Order.ID, p.ID, UpdateDetailRequest{Quantity: 11})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	require.Equal(t, 9, f.quantity(t, p.ID))

	_, err = f.svc.UpdateOrderDetail(ctx, res.Order.ID, p.ID, UpdateDetailRequest{Quantity: 1, Pack: true})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.UpdateOrderDetail(ctx, res.Order.ID, uuid.New(), UpdateDetailRequest{Quantity: 1})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateOrderDetail_RecomputesDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 10, 1)
	_, err := f.promotions.Create(ctx, promotion.CreatePromotionRequest{
		ProductID:       p.ID,
		DiscountedPrice: decimal.NewFromInt(8),
		ValidityStart:   now.Add(-time.Hour),
		ValidityEnd:     now.Add(time.Hour),
	})
	require.NoError(t, err)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 3, Price: decimal.NewFromInt(10)})
	res := f.checkout(t, PaymentCard, 0)
	require.True(t, decimal.NewFromInt(6).Equal(res.Order.TotalDiscount))

	o, err := f.svc.UpdateOrderDetail(ctx, res.Order.ID, p.ID, UpdateDetailRequest{Quantity: 5})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(o.Lines[0].DiscountAmount), o.Lines[0].DiscountAmount.String())
	require.True(t, decimal.NewFromInt(10).Equal(o.TotalDiscount))
	require.True(t, decimal.NewFromInt(40).Equal(o.Total))

	stored, err := f.svc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(stored.TotalDiscount))
}

func TestCreateDisposeOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, 7, 1)
	b := f.product(t, 30, 12)

	o, err := f.svc.CreateDisposeOrder(ctx, DisposeRequest{Lines: []DisposeLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1, Pack: true},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusWrittenOff, o.Status)
	require.Nil(t, o.CustomerID)
	require.Equal(t, 0, f.quantity(t, a.ID))
	require.Equal(t, 0, f.quantity(t, b.ID))
	for _, l := range o.Lines {
		require.True(t, decimal.NewFromInt(4).Equal(l.SellingPricePerUnit))
		require.True(t, decimal.NewFromInt(4).Equal(l.PurchasePrice))
	}
	require.True(t, decimal.NewFromInt(12).Equal(o.Total))

	c := f.product(t, 3, 12)
	o, err = f.svc.CreateDisposeOrder(ctx, DisposeRequest{Status: StatusReturned, Lines: []DisposeLine{
		{ProductID: c.ID, Quantity: 1, Pack: true},
	}})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(100).Equal(o.Lines[0].SellingPricePerUnit))

	_, err = f.svc.CreateDisposeOrder(ctx, DisposeRequest{Status: "LOST", Lines: []DisposeLine{{ProductID: c.ID, Quantity: 1}}})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 10, 1)
	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 4, Price: decimal.NewFromInt(10)})
	res := f.checkout(t, PaymentCard, 0)
	require.Equal(t, 6, f.quantity(t, p.ID))

	require.NoError(t, f.svc.DeleteOrder(ctx, res.Order.ID))
	require.Equal(t, 10, f.quantity(t, p.ID))
	_, err := f.svc.GetOrder(ctx, res.Order.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	f.fillCart(t, cart.Item{ProductID: p.ID, Quantity: 4, Price: decimal.NewFromInt(10)})
	res = f.checkout(t, PaymentCard, 0)
	_, err = f.svc.UpdateOrderStatus(ctx, res.Order.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, 10, f.quantity(t, p.ID))
	require.NoError(t, f.svc.DeleteOrder(ctx, res.Order.ID))
	require.Equal(t, 10, f.quantity(t, p.ID))
}
