package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetGRN(ctx context.Context, id int64) (GRN, []GRNItem, error)
	ListGRNs(ctx context.Context, filter ListFilter) ([]GRN, int, error)
	ListPayments(ctx context.Context, grnID int64) ([]GRNPayment, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates goods receipt intake and payment reconciliation.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// GRNItemInput describes one received line.
type GRNItemInput struct {
	ProductID      int64
	Qty            float64
	CostPrice      float64
	ProductPrice   float64
	SellingPrice   float64
	WholesalePrice float64
	ManufacturedAt time.Time
	ExpiresAt      time.Time
}

// CreateGRNInput describes GRN creation with an optional initial payment.
type CreateGRNInput struct {
	SupplierID   int64
	ReceivedBy   int64
	ReceivedAt   time.Time
	Notes        string
	Items        []GRNItemInput
	PaidAmount   float64
	PaymentType  PaymentType
	ChequeNumber string
	ChequeDate   time.Time
	PaymentDate  time.Time
}

// AddPaymentInput describes a supplier payment against a GRN.
type AddPaymentInput struct {
	GRNID        int64
	Type         PaymentType
	Amount       float64
	ChequeNumber string
	ChequeDate   time.Time
	Notes        string
	RecordedBy   int64
	PaidAt       time.Time
}

// ListFilter narrows GRN listings.
type ListFilter struct {
	SupplierID int64
	Status     PaymentStatus
	Search     string
	Limit      int
	Offset     int
}

// CreateGRN persists the receipt header, its items, one product batch per
// item, the product stock increments and the optional initial payment as a
// single transaction. A failure anywhere leaves nothing behind.
func (s *Service) CreateGRN(ctx context.Context, input CreateGRNInput) (GRN, error) {
	if input.SupplierID == 0 || input.ReceivedBy == 0 {
		return GRN{}, fmt.Errorf("%w: supplier and receiver required", ErrValidation)
	}
	if len(input.Items) == 0 {
		return GRN{}, fmt.Errorf("%w: minimal 1 item", ErrValidation)
	}
	var total float64
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Qty <= 0 || item.CostPrice < 0 {
			return GRN{}, fmt.Errorf("%w: item requires product, positive qty and non-negative cost", ErrValidation)
		}
		total += item.CostPrice * item.Qty
	}
	if input.PaidAmount < 0 {
		return GRN{}, fmt.Errorf("%w: paid amount must not be negative", ErrValidation)
	}
	if input.PaidAmount > 0 && !input.PaymentType.Valid() {
		return GRN{}, fmt.Errorf("%w: payment type required for initial payment", ErrValidation)
	}

	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	rec := DerivePaymentStatus(total, input.PaidAmount)

	grn := GRN{
		SupplierID:    input.SupplierID,
		ReceivedBy:    input.ReceivedBy,
		ReceivedAt:    receivedAt,
		Notes:         input.Notes,
		TotalAmount:   total,
		PaidAmount:    rec.PaidAmount,
		CreditAmount:  rec.CreditAmount,
		PaymentStatus: rec.Status,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextGRNNumber(ctx, receivedAt)
		if err != nil {
			return err
		}
		grn.Number = number
		grnID, err := tx.CreateGRN(ctx, grn)
		if err != nil {
			return err
		}
		grn.ID = grnID

		for i, item := range input.Items {
			batchNumber := fmt.Sprintf("%s-%03d", number, i+1)
			line := GRNItem{
				GRNID:          grnID,
				ProductID:      item.ProductID,
				BatchNumber:    batchNumber,
				Qty:            item.Qty,
				CostPrice:      item.CostPrice,
				ProductPrice:   item.ProductPrice,
				SellingPrice:   defaultPrice(item.SellingPrice, item.ProductPrice),
				WholesalePrice: defaultPrice(item.WholesalePrice, item.ProductPrice),
				ManufacturedAt: item.ManufacturedAt,
				ExpiresAt:      item.ExpiresAt,
			}
			if err := tx.InsertGRNItem(ctx, line); err != nil {
				return err
			}
			if err := tx.InsertBatch(ctx, line, input.SupplierID, receivedAt); err != nil {
				return err
			}
			if err := tx.AdjustProductStock(ctx, item.ProductID, item.Qty); err != nil {
				return err
			}
			if err := tx.RefreshMultiPriceFlag(ctx, item.ProductID); err != nil {
				return err
			}
		}

		if input.PaidAmount > 0 {
			paidAt := input.PaymentDate
			if paidAt.IsZero() {
				paidAt = time.Now().UTC()
			}
			payment := GRNPayment{
				GRNID:        grnID,
				PaidAt:       paidAt,
				Type:         input.PaymentType,
				Amount:       input.PaidAmount,
				ChequeNumber: input.ChequeNumber,
				ChequeDate:   input.ChequeDate,
				Notes:        "initial payment",
				RecordedBy:   input.ReceivedBy,
			}
			if _, err := tx.InsertPayment(ctx, payment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return GRN{}, err
	}

	s.recordAudit(ctx, input.ReceivedBy, "GRN_CREATE", grn.ID, map[string]any{
		"number": grn.Number,
		"total":  grn.TotalAmount,
		"status": grn.PaymentStatus,
	})
	return grn, nil
}

// AddPayment appends a supplier payment and re-derives the settlement state
// from the full payment history. The receipt row is locked for the duration
// so two concurrent payments cannot persist a stale status.
func (s *Service) AddPayment(ctx context.Context, input AddPaymentInput) (GRNPayment, error) {
	if input.Amount <= 0 {
		return GRNPayment{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !input.Type.Valid() {
		return GRNPayment{}, fmt.Errorf("%w: unknown payment type %q", ErrValidation, input.Type)
	}
	if input.Type == PaymentTypeCheque && input.ChequeNumber == "" {
		return GRNPayment{}, fmt.Errorf("%w: cheque number required", ErrValidation)
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	payment := GRNPayment{
		GRNID:        input.GRNID,
		PaidAt:       paidAt,
		Type:         input.Type,
		Amount:       input.Amount,
		ChequeNumber: input.ChequeNumber,
		ChequeDate:   input.ChequeDate,
		Notes:        input.Notes,
		RecordedBy:   input.RecordedBy,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grn, err := tx.GetGRNForUpdate(ctx, input.GRNID)
		if err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, input.GRNID)
		if err != nil {
			return err
		}
		if SumPayments(payments)+input.Amount > grn.TotalAmount {
			return ErrOverpayment
		}
		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id
		payments = append(payments, payment)
		rec := DerivePaymentStatus(grn.TotalAmount, SumPayments(payments))
		return tx.UpdatePaymentSummary(ctx, input.GRNID, rec)
	})
	if err != nil {
		return GRNPayment{}, err
	}

	s.recordAudit(ctx, input.RecordedBy, "GRN_PAYMENT", input.GRNID, map[string]any{
		"amount": input.Amount,
		"type":   input.Type,
	})
	return payment, nil
}

// RecomputeStatus re-derives the settlement summary from the payment history
// and writes it back. Safe to call any number of times.
func (s *Service) RecomputeStatus(ctx context.Context, grnID int64) (Reconciliation, error) {
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grn, err := tx.GetGRNForUpdate(ctx, grnID)
		if err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, grnID)
		if err != nil {
			return err
		}
		rec = DerivePaymentStatus(grn.TotalAmount, SumPayments(payments))
		return tx.UpdatePaymentSummary(ctx, grnID, rec)
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return rec, nil
}

// GetGRN loads a receipt with its items and payments.
func (s *Service) GetGRN(ctx context.Context, id int64) (GRN, []GRNItem, []GRNPayment, error) {
	grn, items, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return GRN{}, nil, nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return GRN{}, nil, nil, err
	}
	return grn, items, payments, nil
}

// ListGRNs returns receipts matching the filter plus the total count.
func (s *Service) ListGRNs(ctx context.Context, filter ListFilter) ([]GRN, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.ListGRNs(ctx, filter)
}

func defaultPrice(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "grn",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
