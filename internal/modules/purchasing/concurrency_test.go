package purchasing

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/printa-inventory/internal/apperr"
)

// hookedRepo runs afterGet once, right after the first GetByID, and closes peeked
// after the first replenishment queue read.
type hookedRepo struct {
	Repository
	afterGet func()
	getOnce  sync.Once
	peekOnce sync.Once
	peeked   chan struct{}
}

func newHookedRepo() *hookedRepo {
	return &hookedRepo{Repository: NewMemoryRepository(), peeked: make(chan struct{})}
}

func (h *hookedRepo) GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := h.Repository.GetByID(ctx, id)
	if h.afterGet != nil {
		h.getOnce.Do(h.afterGet)
	}
	return po, err
}

func (h *hookedRepo) ListPendingByProduct(ctx context.Context, productID uuid.UUID) ([]*PurchaseOrder, error) {
	queue, err := h.Repository.ListPendingByProduct(ctx, productID)
	h.peekOnce.Do(func() { close(h.peeked) })
	return queue, err
}

// replenishAfterRead starts a replenishment pass for productID as soon as the next
// lifecycle operation has read its order, and lets that operation continue once the
// pass has seen the queue. The returned func waits for the pass.
func (h *hookedRepo) replenishAfterRead(t *testing.T, svc Service, productID uuid.UUID) func() *ReplenishResult {
	done := make(chan *ReplenishResult, 1)
	h.afterGet = func() {
		go func() {
			res, err := svc.ReplenishProduct(context.Background(), productID)
			assert.NoError(t, err)
			done <- res
		}()
		<-h.peeked
	}
	return func() *ReplenishResult { return <-done }
}

func TestAddAllStock_ReplenishmentDuringReceiptAppliesOnce(t *testing.T) {
	repo := newHookedRepo()
	f := newFixtureWith(t, repo)
	ctx := context.Background()
	p := f.product(t, 0, 1)
	po := f.order(t, "", LineRequest{ProductID: p, Quantity: 10, ExpirationDate: expiry(1)})

	wait := repo.replenishAfterRead(t, f.svc, p)
	res, err := f.svc.AddAllStock(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)

	pass := wait()
	require.NotNil(t, pass)
	require.Equal(t, OutcomeNotEmpty, pass.Outcome)
	require.Equal(t, 10, f.quantity(t, p))
	require.Equal(t, StatusCompleted, f.status(t, po.ID))
}

func TestUpdatePurchaseOrder_ReplenishmentDuringEditKeepsCompletion(t *testing.T) {
	repo := newHookedRepo()
	f := newFixtureWith(t, repo)
	ctx := context.Background()
	p := f.product(t, 0, 1)
	po := f.order(t, "", LineRequest{ProductID: p, Quantity: 10, ExpirationDate: expiry(1)})

	wait := repo.replenishAfterRead(t, f.svc, p)
	updated, err := f.svc.UpdatePurchaseOrder(ctx, po.ID, UpdatePurchaseOrderRequest{
		Lines: []LineRequest{{ProductID: p, Quantity: 4, ExpirationDate: expiry(1)}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, updated.Status)

	// the pass waited for the edit and applied the edited line
	pass := wait()
	require.NotNil(t, pass)
	require.Equal(t, OutcomeApplied, pass.Outcome)
	require.Equal(t, 4, pass.UnitsAdded)
	require.True(t, pass.Completed)
	require.Equal(t, StatusCompleted, f.status(t, po.ID))

	// selling out again must not reuse the same order
	_, err = f.ledger.Adjust(ctx, p, -4)
	require.NoError(t, err)
	again, err := f.svc.ReplenishProduct(ctx, p)
	require.NoError(t, err)
	require.Equal(t, OutcomeQueueEmpty, again.Outcome)
	require.Equal(t, 0, f.quantity(t, p))
}

func TestReceiveStock_ReplenishmentDuringReceiptAppliesOnce(t *testing.T) {
	repo := newHookedRepo()
	f := newFixtureWith(t, repo)
	p := f.product(t, 0, 1)
	po := f.order(t, "", LineRequest{ProductID: p, Quantity: 10, ExpirationDate: expiry(1)})

	wait := repo.replenishAfterRead(t, f.svc, p)
	res, err := f.svc.ReceiveStock(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)

	pass := wait()
	require.NotNil(t, pass)
	require.Equal(t, OutcomeNotEmpty, pass.Outcome)
	require.Equal(t, 10, f.quantity(t, p))
	require.Equal(t, StatusCompleted, f.status(t, po.ID))
}

func TestDeletePurchaseOrder_ReplenishmentDuringDeleteFindsNothing(t *testing.T) {
	repo := newHookedRepo()
	f := newFixtureWith(t, repo)
	p := f.product(t, 0, 1)
	po := f.order(t, "", LineRequest{ProductID: p, Quantity: 10, ExpirationDate: expiry(1)})

	wait := repo.replenishAfterRead(t, f.svc, p)
	require.NoError(t, f.svc.DeletePurchaseOrder(context.Background(), po.ID))

	pass := wait()
	require.NotNil(t, pass)
	require.Equal(t, OutcomeQueueEmpty, pass.Outcome)
	require.Equal(t, 0, f.quantity(t, p))
}

func TestAddAllStock_LostClaimAppliesNothing(t *testing.T) {
	repo := newHookedRepo()
	f := newFixtureWith(t, repo)
	ctx := context.Background()
	p := f.product(t, 0, 1)
	po := f.order(t, "", LineRequest{ProductID: p, Quantity: 10, ExpirationDate: expiry(1)})

	repo.afterGet = func() {
		changed, err := repo.Repository.TransitionStatus(ctx, po.ID, StatusPending, StatusCompleted)
		assert.NoError(t, err)
		assert.True(t, changed)
	}
	_, err := f.svc.AddAllStock(ctx, po.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	require.Equal(t, 0, f.quantity(t, p))
}

func TestUpdatePurchaseOrder_StaleStatusIsRejected(t *testing.T) {
	repo := newHookedRepo()
	f := newFixtureWith(t, repo)
	ctx := context.Background()
	p := f.product(t, 0, 1)
	po := f.order(t, "", LineRequest{ProductID: p, Quantity: 10, ExpirationDate: expiry(1)})

	repo.afterGet = func() {
		_, err := repo.Repository.TransitionStatus(ctx, po.ID, StatusPending, StatusCompleted)
		assert.NoError(t, err)
	}
	_, err := f.svc.UpdatePurchaseOrder(ctx, po.ID, UpdatePurchaseOrderRequest{
		Lines: []LineRequest{{ProductID: p, Quantity: 4}},
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	stored, err := f.svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, 10, stored.Lines[0].Quantity)
}

func TestReplenishProduct_ConcurrentWithLifecycleOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, 0, 1)
	var orders []*PurchaseOrder
	for i := 0; i < 10; i++ {
		orders = append(orders, f.order(t, "", LineRequest{ProductID: p, Quantity: 1, ExpirationDate: expiry(i)}))
	}

	var wg sync.WaitGroup
	for _, po := range orders {
		po := po
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.ReplenishProduct(ctx, p)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.AddAllStock(ctx, po.ID)
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrInvalidState)
			}
		}()
	}
	wg.Wait()

	// every order contributed its single unit exactly once
	require.Equal(t, 10, f.quantity(t, p))
	for _, po := range orders {
		require.Equal(t, StatusCompleted, f.status(t, po.ID))
	}
}

func TestMemoryRepository_UpdateChecksStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	po := &PurchaseOrder{ID: uuid.New(), Status: StatusPending, Lines: []Line{{ProductID: uuid.New(), Quantity: 1}}}
	require.NoError(t, repo.Create(ctx, po))

	stale := *po
	changed, err := repo.TransitionStatus(ctx, po.ID, StatusPending, StatusCompleted)
	require.NoError(t, err)
	require.True(t, changed)

	err = repo.Update(ctx, &stale, StatusPending)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	err = repo.Update(ctx, &PurchaseOrder{ID: uuid.New()}, StatusPending)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
