package procurement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryProcRepo struct {
	grns     map[int64]GRN
	items    map[int64][]GRNItem
	payments map[int64][]GRNPayment
	batches  []GRNItem
	stock    map[int64]float64
	nextID   int64
	seq      int64
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		grns:     map[int64]GRN{},
		items:    map[int64][]GRNItem{},
		payments: map[int64][]GRNPayment{},
		stock:    map[int64]float64{},
	}
}

func (m *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryProcTx{repo: m})
}

func (m *memoryProcRepo) GetGRN(ctx context.Context, id int64) (GRN, []GRNItem, error) {
	grn, ok := m.grns[id]
	if !ok {
		return GRN{}, nil, ErrNotFound
	}
	return grn, m.items[id], nil
}

func (m *memoryProcRepo) ListGRNs(ctx context.Context, filter ListFilter) ([]GRN, int, error) {
	var out []GRN
	for _, grn := range m.grns {
		if filter.Status != "" && grn.PaymentStatus != filter.Status {
			continue
		}
		out = append(out, grn)
	}
	return out, len(out), nil
}

func (m *memoryProcRepo) ListPayments(ctx context.Context, grnID int64) ([]GRNPayment, error) {
	return m.payments[grnID], nil
}

type memoryProcTx struct {
	repo *memoryProcRepo
}

func (t *memoryProcTx) NextGRNNumber(ctx context.Context, receivedAt time.Time) (string, error) {
	t.repo.seq++
	return fmt.Sprintf("GRN%s%04d", receivedAt.Format("20060102"), t.repo.seq), nil
}

func (t *memoryProcTx) CreateGRN(ctx context.Context, grn GRN) (int64, error) {
	t.repo.nextID++
	grn.ID = t.repo.nextID
	t.repo.grns[grn.ID] = grn
	return grn.ID, nil
}

func (t *memoryProcTx) InsertGRNItem(ctx context.Context, item GRNItem) error {
	t.repo.items[item.GRNID] = append(t.repo.items[item.GRNID], item)
	return nil
}

func (t *memoryProcTx) InsertBatch(ctx context.Context, item GRNItem, supplierID int64, receivedAt time.Time) error {
	t.repo.batches = append(t.repo.batches, item)
	return nil
}

func (t *memoryProcTx) AdjustProductStock(ctx context.Context, productID int64, delta float64) error {
	t.repo.stock[productID] += delta
	return nil
}

func (t *memoryProcTx) RefreshMultiPriceFlag(ctx context.Context, productID int64) error {
	return nil
}

func (t *memoryProcTx) GetGRNForUpdate(ctx context.Context, id int64) (GRN, error) {
	grn, ok := t.repo.grns[id]
	if !ok {
		return GRN{}, ErrNotFound
	}
	return grn, nil
}

func (t *memoryProcTx) ListPayments(ctx context.Context, grnID int64) ([]GRNPayment, error) {
	return t.repo.payments[grnID], nil
}

func (t *memoryProcTx) InsertPayment(ctx context.Context, payment GRNPayment) (int64, error) {
	t.repo.nextID++
	payment.ID = t.repo.nextID
	t.repo.payments[payment.GRNID] = append(t.repo.payments[payment.GRNID], payment)
	return payment.ID, nil
}

func (t *memoryProcTx) UpdatePaymentSummary(ctx context.Context, grnID int64, rec Reconciliation) error {
	grn, ok := t.repo.grns[grnID]
	if !ok {
		return ErrNotFound
	}
	grn.PaymentStatus = rec.Status
	grn.PaidAmount = rec.PaidAmount
	grn.CreditAmount = rec.CreditAmount
	t.repo.grns[grnID] = grn
	return nil
}

func TestDerivePaymentStatus(t *testing.T) {
	cases := []struct {
		name       string
		total      float64
		paid       float64
		wantStatus PaymentStatus
		wantCredit float64
	}{
		{"nothing paid", 600, 0, PaymentStatusUnpaid, 600},
		{"partial", 600, 250, PaymentStatusPartial, 350},
		{"exact", 600, 600, PaymentStatusPaid, 0},
		{"overpaid clamps credit", 600, 700, PaymentStatusPaid, 0},
		{"zero total", 0, 0, PaymentStatusPaid, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := DerivePaymentStatus(tc.total, tc.paid)
			assert.Equal(t, tc.wantStatus, rec.Status)
			assert.Equal(t, tc.wantCredit, rec.CreditAmount)
			assert.Equal(t, tc.paid, rec.PaidAmount)
		})
	}
}

func TestCreateGRNComputesTotalAndBatches(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil)

	received := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	grn, err := svc.CreateGRN(context.Background(), CreateGRNInput{
		SupplierID: 7,
		ReceivedBy: 1,
		ReceivedAt: received,
		Items: []GRNItemInput{
			{ProductID: 10, Qty: 20, CostPrice: 10, ProductPrice: 15, SellingPrice: 13, WholesalePrice: 12},
			{ProductID: 11, Qty: 40, CostPrice: 10, ProductPrice: 14},
		},
		PaidAmount:  250,
		PaymentType: PaymentTypeCash,
	})
	require.NoError(t, err)

	assert.Equal(t, 600.0, grn.TotalAmount)
	assert.Equal(t, PaymentStatusPartial, grn.PaymentStatus)
	assert.Equal(t, 350.0, grn.CreditAmount)
	assert.Equal(t, "GRN202603140001", grn.Number)

	items := repo.items[grn.ID]
	require.Len(t, items, 2)
	assert.Equal(t, "GRN202603140001-001", items[0].BatchNumber)
	assert.Equal(t, "GRN202603140001-002", items[1].BatchNumber)
	// selling/wholesale fall back to MRP when omitted
	assert.Equal(t, 14.0, items[1].SellingPrice)
	assert.Equal(t, 14.0, items[1].WholesalePrice)

	require.Len(t, repo.batches, 2)
	assert.Equal(t, 20.0, repo.stock[10])
	assert.Equal(t, 40.0, repo.stock[11])

	payments := repo.payments[grn.ID]
	require.Len(t, payments, 1)
	assert.Equal(t, 250.0, payments[0].Amount)
	assert.Equal(t, "initial payment", payments[0].Notes)
}

func TestCreateGRNPaidInFull(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil)

	grn, err := svc.CreateGRN(context.Background(), CreateGRNInput{
		SupplierID:  7,
		ReceivedBy:  1,
		Items:       []GRNItemInput{{ProductID: 10, Qty: 5, CostPrice: 100, ProductPrice: 120}},
		PaidAmount:  500,
		PaymentType: PaymentTypeBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, grn.PaymentStatus)
	assert.Equal(t, 0.0, grn.CreditAmount)
}

func TestCreateGRNValidation(t *testing.T) {
	svc := NewService(newMemoryProcRepo(), nil)

	_, err := svc.CreateGRN(context.Background(), CreateGRNInput{ReceivedBy: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateGRN(context.Background(), CreateGRNInput{SupplierID: 7, ReceivedBy: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateGRN(context.Background(), CreateGRNInput{
		SupplierID: 7,
		ReceivedBy: 1,
		Items:      []GRNItemInput{{ProductID: 10, Qty: 0, CostPrice: 10}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	// initial payment without an instrument
	_, err = svc.CreateGRN(context.Background(), CreateGRNInput{
		SupplierID: 7,
		ReceivedBy: 1,
		Items:      []GRNItemInput{{ProductID: 10, Qty: 1, CostPrice: 10}},
		PaidAmount: 5,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil)

	grn, err := svc.CreateGRN(context.Background(), CreateGRNInput{
		SupplierID: 7,
		ReceivedBy: 1,
		Items:      []GRNItemInput{{ProductID: 10, Qty: 10, CostPrice: 10, ProductPrice: 12}},
	})
	require.NoError(t, err)

	_, err = svc.AddPayment(context.Background(), AddPaymentInput{
		GRNID:      grn.ID,
		Type:       PaymentTypeCash,
		Amount:     150,
		RecordedBy: 1,
	})
	assert.ErrorIs(t, err, ErrOverpayment)
	assert.Empty(t, repo.payments[grn.ID])
}

func TestAddPaymentRequiresChequeNumber(t *testing.T) {
	svc := NewService(newMemoryProcRepo(), nil)
	_, err := svc.AddPayment(context.Background(), AddPaymentInput{
		GRNID:  1,
		Type:   PaymentTypeCheque,
		Amount: 50,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddPaymentSettlesReceipt(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil)

	grn, err := svc.CreateGRN(context.Background(), CreateGRNInput{
		SupplierID:  7,
		ReceivedBy:  1,
		Items:       []GRNItemInput{{ProductID: 10, Qty: 10, CostPrice: 10, ProductPrice: 12}},
		PaidAmount:  40,
		PaymentType: PaymentTypeCash,
	})
	require.NoError(t, err)

	_, err = svc.AddPayment(context.Background(), AddPaymentInput{
		GRNID:        grn.ID,
		Type:         PaymentTypeCheque,
		Amount:       60,
		ChequeNumber: "CHQ-889",
		RecordedBy:   1,
	})
	require.NoError(t, err)

	stored := repo.grns[grn.ID]
	assert.Equal(t, PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, 100.0, stored.PaidAmount)
	assert.Equal(t, 0.0, stored.CreditAmount)
}

func TestRecomputeStatusIsIdempotent(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := NewService(repo, nil)

	grn, err := svc.CreateGRN(context.Background(), CreateGRNInput{
		SupplierID:  7,
		ReceivedBy:  1,
		Items:       []GRNItemInput{{ProductID: 10, Qty: 10, CostPrice: 10, ProductPrice: 12}},
		PaidAmount:  30,
		PaymentType: PaymentTypeCash,
	})
	require.NoError(t, err)

	first, err := svc.RecomputeStatus(context.Background(), grn.ID)
	require.NoError(t, err)
	second, err := svc.RecomputeStatus(context.Background(), grn.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, PaymentStatusPartial, first.Status)
	assert.Equal(t, 30.0, first.PaidAmount)
	assert.Equal(t, 70.0, first.CreditAmount)
}
