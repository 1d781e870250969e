package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryInvRepo struct {
	batches map[int64]Batch
	stock   map[int64]float64
	flagged map[int64]int
}

func newMemoryInvRepo() *memoryInvRepo {
	return &memoryInvRepo{
		batches: map[int64]Batch{},
		stock:   map[int64]float64{},
		flagged: map[int64]int{},
	}
}

func (m *memoryInvRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryInvTx{repo: m})
}

func (m *memoryInvRepo) GetBatch(ctx context.Context, id int64) (Batch, error) {
	b, ok := m.batches[id]
	if !ok {
		return Batch{}, ErrBatchNotFound
	}
	return b, nil
}

func (m *memoryInvRepo) GetActiveBatchesByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range m.batches {
		if b.ProductID == productID && b.Sellable() {
			out = append(out, b)
		}
	}
	return out, nil
}

type memoryInvTx struct {
	repo *memoryInvRepo
}

func (t *memoryInvTx) UpdateBatchPrices(ctx context.Context, batchID int64, selling, wholesale float64) error {
	b, ok := t.repo.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	b.SellingPrice = selling
	b.WholesalePrice = wholesale
	t.repo.batches[batchID] = b
	return nil
}

func (t *memoryInvTx) DeactivateBatch(ctx context.Context, batchID int64) error {
	b, ok := t.repo.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	b.IsActive = false
	t.repo.batches[batchID] = b
	return nil
}

func (t *memoryInvTx) AdjustProductStock(ctx context.Context, productID int64, delta float64) error {
	t.repo.stock[productID] += delta
	return nil
}

func (t *memoryInvTx) RefreshMultiPriceFlag(ctx context.Context, productID int64) error {
	t.repo.flagged[productID]++
	return nil
}

func TestUpdateBatchPrices(t *testing.T) {
	repo := newMemoryInvRepo()
	repo.batches[1] = Batch{ID: 1, ProductID: 9, ProductPrice: 100, SellingPrice: 90, WholesalePrice: 80, Qty: 10, Remaining: 10, IsActive: true}
	svc := NewService(repo, nil)

	batch, err := svc.UpdateBatchPrices(context.Background(), UpdateBatchPricesInput{
		BatchID: 1, SellingPrice: 95, WholesalePrice: 85, ActorID: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 95.0, batch.SellingPrice)
	assert.Equal(t, 85.0, batch.WholesalePrice)
	assert.Equal(t, 100.0, batch.ProductPrice, "MRP never changes on a price edit")
	assert.Equal(t, 1, repo.flagged[9], "multi-price flag refreshed inside the edit")
}

func TestUpdateBatchPricesRejectsNonPositive(t *testing.T) {
	svc := NewService(newMemoryInvRepo(), nil)
	_, err := svc.UpdateBatchPrices(context.Background(), UpdateBatchPricesInput{BatchID: 1, SellingPrice: 0, WholesalePrice: 50})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestUpdateBatchPricesRejectsInactive(t *testing.T) {
	repo := newMemoryInvRepo()
	repo.batches[1] = Batch{ID: 1, ProductID: 9, Remaining: 5, IsActive: false}
	svc := NewService(repo, nil)

	_, err := svc.UpdateBatchPrices(context.Background(), UpdateBatchPricesInput{BatchID: 1, SellingPrice: 10, WholesalePrice: 9})
	assert.ErrorIs(t, err, ErrBatchInactive)
}

func TestDeactivateBatchRemovesRemainingStock(t *testing.T) {
	repo := newMemoryInvRepo()
	repo.batches[1] = Batch{ID: 1, ProductID: 9, Qty: 10, Remaining: 4, IsActive: true}
	repo.stock[9] = 20
	svc := NewService(repo, nil)

	require.NoError(t, svc.DeactivateBatch(context.Background(), 1, 2))

	assert.False(t, repo.batches[1].IsActive)
	assert.Equal(t, 16.0, repo.stock[9])
	assert.Equal(t, 1, repo.flagged[9])

	// second attempt fails, stock untouched
	assert.ErrorIs(t, svc.DeactivateBatch(context.Background(), 1, 2), ErrBatchInactive)
	assert.Equal(t, 16.0, repo.stock[9])
}

func TestPriceVariantsRequiresProduct(t *testing.T) {
	svc := NewService(newMemoryInvRepo(), nil)
	_, err := svc.PriceVariants(context.Background(), 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPriceVariantsGroupsRepoBatches(t *testing.T) {
	repo := newMemoryInvRepo()
	repo.batches[1] = Batch{ID: 1, ProductID: 9, ProductPrice: 100, SellingPrice: 90, WholesalePrice: 80, Qty: 10, Remaining: 10, IsActive: true}
	repo.batches[2] = Batch{ID: 2, ProductID: 9, ProductPrice: 100, SellingPrice: 90, WholesalePrice: 80, Qty: 5, Remaining: 5, IsActive: true}
	repo.batches[3] = Batch{ID: 3, ProductID: 9, ProductPrice: 110, SellingPrice: 99, WholesalePrice: 88, Qty: 5, Remaining: 0, IsActive: true}
	svc := NewService(repo, nil)

	variants, err := svc.PriceVariants(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, variants, 1, "exhausted tier is not offered")
	assert.Equal(t, 15.0, variants[0].TotalStock)
}
