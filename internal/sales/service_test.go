package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySalesRepo struct {
	sales     map[int64]Sale
	items     map[int64][]SaleItem
	payments  map[int64][]SalePayment
	stock     map[int64]float64
	batches   map[int64]*memoryBatch
	customers map[int64]*CustomerSnapshot
	nextID    int64
	beforeTx  func()
}

type memoryBatch struct {
	remaining float64
	qty       float64
}

func newMemorySalesRepo() *memorySalesRepo {
	return &memorySalesRepo{
		sales:     map[int64]Sale{},
		items:     map[int64][]SaleItem{},
		payments:  map[int64][]SalePayment{},
		stock:     map[int64]float64{},
		batches:   map[int64]*memoryBatch{},
		customers: map[int64]*CustomerSnapshot{},
	}
}

func (m *memorySalesRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.beforeTx != nil {
		m.beforeTx()
	}
	return fn(ctx, &memorySalesTx{repo: m})
}

func (m *memorySalesRepo) GetSale(ctx context.Context, id int64) (Sale, []SaleItem, []SalePayment, error) {
	sale, ok := m.sales[id]
	if !ok {
		return Sale{}, nil, nil, ErrNotFound
	}
	return sale, m.items[id], m.payments[id], nil
}

func (m *memorySalesRepo) ListHeldSales(ctx context.Context, cashierID int64) ([]Sale, error) {
	var out []Sale
	for _, sale := range m.sales {
		if !sale.IsHeld {
			continue
		}
		if cashierID != 0 && sale.CashierID != cashierID {
			continue
		}
		out = append(out, sale)
	}
	return out, nil
}

type memorySalesTx struct {
	repo *memorySalesRepo
}

func (t *memorySalesTx) CreateSale(ctx context.Context, sale Sale) (int64, error) {
	t.repo.nextID++
	sale.ID = t.repo.nextID
	t.repo.sales[sale.ID] = sale
	return sale.ID, nil
}

func (t *memorySalesTx) InsertSaleItem(ctx context.Context, item SaleItem) error {
	t.repo.items[item.SaleID] = append(t.repo.items[item.SaleID], item)
	return nil
}

func (t *memorySalesTx) InsertSalePayment(ctx context.Context, payment SalePayment) error {
	t.repo.payments[payment.SaleID] = append(t.repo.payments[payment.SaleID], payment)
	return nil
}

func (t *memorySalesTx) AdjustProductStock(ctx context.Context, productID int64, delta float64) error {
	t.repo.stock[productID] += delta
	return nil
}

func (t *memorySalesTx) ConsumeBatch(ctx context.Context, batchID int64, qty float64) error {
	b, ok := t.repo.batches[batchID]
	if !ok || b.remaining < qty {
		return ErrInsufficientStock
	}
	b.remaining -= qty
	return nil
}

func (t *memorySalesTx) RestoreBatch(ctx context.Context, batchID int64, qty float64) error {
	b, ok := t.repo.batches[batchID]
	if !ok {
		return nil
	}
	b.remaining += qty
	if b.remaining > b.qty {
		b.remaining = b.qty
	}
	return nil
}

func (t *memorySalesTx) GetCustomerForUpdate(ctx context.Context, id int64) (CustomerSnapshot, error) {
	c, ok := t.repo.customers[id]
	if !ok {
		return CustomerSnapshot{}, ErrNotFound
	}
	return *c, nil
}

func (t *memorySalesTx) UpdateCustomerCounters(ctx context.Context, id int64, creditDelta float64, pointsDelta int64) error {
	c := t.repo.customers[id]
	c.CreditBalance += creditDelta
	if c.CreditBalance < 0 {
		c.CreditBalance = 0
	}
	c.LoyaltyPoints += pointsDelta
	if c.LoyaltyPoints < 0 {
		c.LoyaltyPoints = 0
	}
	return nil
}

func (t *memorySalesTx) SetSaleAwards(ctx context.Context, saleID int64, points int64, creditUsed float64) error {
	sale := t.repo.sales[saleID]
	sale.PointsAwarded = points
	sale.CreditUsed = creditUsed
	t.repo.sales[saleID] = sale
	return nil
}

func (t *memorySalesTx) MarkVoided(ctx context.Context, saleID int64, at time.Time) error {
	sale := t.repo.sales[saleID]
	if sale.IsVoided {
		return ErrAlreadyVoided
	}
	sale.IsVoided = true
	sale.VoidedAt = at
	t.repo.sales[saleID] = sale
	return nil
}

func (t *memorySalesTx) DeleteSale(ctx context.Context, saleID int64) error {
	delete(t.repo.sales, saleID)
	delete(t.repo.items, saleID)
	delete(t.repo.payments, saleID)
	return nil
}

type memoryIdempotency struct {
	keys   map[string]bool
	failed []string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]bool{}}
}

var errDuplicateKey = errors.New("duplicate idempotency key")

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return errDuplicateKey
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func TestCreateSaleLoyaltyCustomer(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.stock[10] = 50
	repo.batches[5] = &memoryBatch{remaining: 30, qty: 30}
	repo.customers[3] = &CustomerSnapshot{ID: 3, Type: CustomerTypeLoyalty}
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID:  1,
		CustomerID: 3,
		Items: []SaleItemInput{
			{ProductID: 10, BatchID: 5, Qty: 2, UnitPrice: 130},
		},
		Payments: []SalePaymentInput{{Type: TenderTypeCash, Amount: 300}},
	})
	require.NoError(t, err)

	assert.Equal(t, 260.0, sale.FinalAmount)
	assert.Equal(t, 40.0, sale.Change)
	assert.Equal(t, int64(2), sale.PointsAwarded)
	assert.Equal(t, int64(2), repo.customers[3].LoyaltyPoints)
	assert.Equal(t, 48.0, repo.stock[10])
	assert.Equal(t, 28.0, repo.batches[5].remaining)
}

func TestCreateSaleDiscountClamped(t *testing.T) {
	repo := newMemorySalesRepo()
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID:     1,
		Items:         []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 50}},
		Payments:      []SalePaymentInput{{Type: TenderTypeCash, Amount: 1}},
		DiscountType:  DiscountTypeAmount,
		DiscountValue: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, sale.DiscountAmount)
	assert.Equal(t, 0.0, sale.FinalAmount)
}

func TestCreateSaleRejectsUnderpayment(t *testing.T) {
	svc := NewService(newMemorySalesRepo(), nil, nil)
	_, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID: 1,
		Items:     []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 100}},
		Payments:  []SalePaymentInput{{Type: TenderTypeCash, Amount: 60}},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateSaleCreditRequiresCustomer(t *testing.T) {
	svc := NewService(newMemorySalesRepo(), nil, nil)
	_, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID: 1,
		Items:     []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 100}},
		Payments:  []SalePaymentInput{{Type: TenderTypeCredit, Amount: 100}},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateSaleCreditTenderRaisesBalance(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.customers[4] = &CustomerSnapshot{ID: 4, Type: "wholesale"}
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID:  1,
		CustomerID: 4,
		Items:      []SaleItemInput{{ProductID: 10, Qty: 4, UnitPrice: 50}},
		Payments:   []SalePaymentInput{{Type: TenderTypeCredit, Amount: 200}},
	})
	require.NoError(t, err)

	assert.Equal(t, 200.0, sale.CreditUsed)
	assert.Equal(t, int64(0), sale.PointsAwarded)
	assert.Equal(t, 200.0, repo.customers[4].CreditBalance)
}

func TestCreateSaleInsufficientBatchStockRollsBack(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.batches[5] = &memoryBatch{remaining: 1, qty: 10}
	idem := newMemoryIdempotency()
	svc := NewService(repo, nil, idem)

	_, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID:      1,
		Items:          []SaleItemInput{{ProductID: 10, BatchID: 5, Qty: 3, UnitPrice: 10}},
		Payments:       []SalePaymentInput{{Type: TenderTypeCash, Amount: 30}},
		IdempotencyKey: "till-1-seq-9",
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	// key released so the till can retry after fixing the cart
	assert.False(t, idem.keys["till-1-seq-9"])
}

func TestCreateSaleDuplicateSubmission(t *testing.T) {
	repo := newMemorySalesRepo()
	idem := newMemoryIdempotency()
	svc := NewService(repo, nil, idem)

	input := CreateSaleInput{
		CashierID:      1,
		Items:          []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 10}},
		Payments:       []SalePaymentInput{{Type: TenderTypeCash, Amount: 10}},
		IdempotencyKey: "till-1-seq-1",
	}
	_, err := svc.CreateSale(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.CreateSale(context.Background(), input)
	assert.ErrorIs(t, err, errDuplicateKey)
	assert.Len(t, repo.sales, 1)
}

func TestHeldSaleKeepsCartOnly(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.stock[10] = 50
	repo.customers[3] = &CustomerSnapshot{ID: 3, Type: CustomerTypeLoyalty}
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID:  1,
		CustomerID: 3,
		Items:      []SaleItemInput{{ProductID: 10, Qty: 5, UnitPrice: 40}},
		Hold:       true,
	})
	require.NoError(t, err)

	assert.True(t, sale.IsHeld)
	assert.Equal(t, 50.0, repo.stock[10], "held sale must not consume stock")
	assert.Equal(t, int64(0), repo.customers[3].LoyaltyPoints)
	assert.Empty(t, repo.payments[sale.ID])
}

func TestResumeHeldSale(t *testing.T) {
	repo := newMemorySalesRepo()
	svc := NewService(repo, nil, nil)

	held, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID: 1,
		Items:     []SaleItemInput{{ProductID: 10, Qty: 2, UnitPrice: 15}},
		Hold:      true,
	})
	require.NoError(t, err)

	sale, items, err := svc.ResumeHeldSale(context.Background(), held.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, held.ID, sale.ID)
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].Qty)

	// resumed sale is gone from storage
	_, _, err = svc.ResumeHeldSale(context.Background(), held.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResumeRejectsCompletedSale(t *testing.T) {
	repo := newMemorySalesRepo()
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID: 1,
		Items:     []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 10}},
		Payments:  []SalePaymentInput{{Type: TenderTypeCash, Amount: 10}},
	})
	require.NoError(t, err)

	_, _, err = svc.ResumeHeldSale(context.Background(), sale.ID, 1)
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestVoidSaleReversesStoredAmounts(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.stock[10] = 100
	repo.batches[5] = &memoryBatch{remaining: 40, qty: 40}
	repo.customers[3] = &CustomerSnapshot{ID: 3, Type: CustomerTypeLoyalty}
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID:  1,
		CustomerID: 3,
		Items:      []SaleItemInput{{ProductID: 10, BatchID: 5, Qty: 3, UnitPrice: 100}},
		Payments:   []SalePaymentInput{{Type: TenderTypeCard, Amount: 300, CardLastFour: "4242"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), repo.customers[3].LoyaltyPoints)
	assert.Equal(t, 97.0, repo.stock[10])

	require.NoError(t, svc.VoidSale(context.Background(), sale.ID, 2))

	assert.Equal(t, 100.0, repo.stock[10])
	assert.Equal(t, 40.0, repo.batches[5].remaining)
	assert.Equal(t, int64(0), repo.customers[3].LoyaltyPoints)
	stored := repo.sales[sale.ID]
	assert.True(t, stored.IsVoided)
	assert.False(t, stored.VoidedAt.IsZero())
}

func TestVoidSaleClampsWhenPointsAlreadySpent(t *testing.T) {
	repo := newMemorySalesRepo()
	repo.customers[3] = &CustomerSnapshot{ID: 3, Type: CustomerTypeLoyalty}
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID:  1,
		CustomerID: 3,
		Items:      []SaleItemInput{{ProductID: 10, Qty: 5, UnitPrice: 100}},
		Payments:   []SalePaymentInput{{Type: TenderTypeCash, Amount: 500}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), repo.customers[3].LoyaltyPoints)

	// customer redeemed some points between sale and void
	repo.customers[3].LoyaltyPoints = 2

	require.NoError(t, svc.VoidSale(context.Background(), sale.ID, 2))
	assert.Equal(t, int64(0), repo.customers[3].LoyaltyPoints, "reversal clamps at zero")
}

func TestVoidSaleIsTerminal(t *testing.T) {
	repo := newMemorySalesRepo()
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID: 1,
		Items:     []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 10}},
		Payments:  []SalePaymentInput{{Type: TenderTypeCash, Amount: 10}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.VoidSale(context.Background(), sale.ID, 2))
	assert.ErrorIs(t, svc.VoidSale(context.Background(), sale.ID, 2), ErrAlreadyVoided)
}

func TestVoidSaleLosesRaceToConcurrentVoid(t *testing.T) {
	repo := newMemorySalesRepo()
	svc := NewService(repo, nil, nil)

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID: 1,
		Items:     []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 10}},
		Payments:  []SalePaymentInput{{Type: TenderTypeCash, Amount: 10}},
	})
	require.NoError(t, err)

	// another till commits its void between our precondition read and the tx
	repo.beforeTx = func() {
		voided := repo.sales[sale.ID]
		voided.IsVoided = true
		repo.sales[sale.ID] = voided
	}

	assert.ErrorIs(t, svc.VoidSale(context.Background(), sale.ID, 2), ErrAlreadyVoided)
}

func TestVoidRejectsHeldSale(t *testing.T) {
	repo := newMemorySalesRepo()
	svc := NewService(repo, nil, nil)

	held, err := svc.CreateSale(context.Background(), CreateSaleInput{
		CashierID: 1,
		Items:     []SaleItemInput{{ProductID: 10, Qty: 1, UnitPrice: 10}},
		Hold:      true,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.VoidSale(context.Background(), held.ID, 2), ErrHeldSale)
}

func TestPointsForAmount(t *testing.T) {
	assert.Equal(t, int64(0), PointsForAmount(99.99))
	assert.Equal(t, int64(1), PointsForAmount(100))
	assert.Equal(t, int64(2), PointsForAmount(260))
	assert.Equal(t, int64(0), PointsForAmount(-50))
}

func TestComputeDiscount(t *testing.T) {
	assert.Equal(t, 50.0, ComputeDiscount(500, DiscountTypePercent, 10))
	assert.Equal(t, 30.0, ComputeDiscount(500, DiscountTypeAmount, 30))
	assert.Equal(t, 500.0, ComputeDiscount(500, DiscountTypeAmount, 900))
	assert.Equal(t, 0.0, ComputeDiscount(500, DiscountTypeNone, 10))
	assert.Equal(t, 0.0, ComputeDiscount(500, DiscountTypeAmount, -10))
}
