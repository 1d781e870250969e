package sales

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, []SaleItem, []SalePayment, error)
	ListHeldSales(ctx context.Context, cashierID int64) ([]Sale, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against duplicate sale submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates sale creation, hold/resume and void.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
}

// NewService constructs sales service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem}
}

// SaleItemInput is one line of a sale request.
type SaleItemInput struct {
	ProductID int64
	BatchID   int64
	Qty       float64
	UnitPrice float64
}

// SalePaymentInput is one tender of a sale request.
type SalePaymentInput struct {
	Type         TenderType
	Amount       float64
	CardLastFour string
}

// CreateSaleInput describes a sale submission from the till.
type CreateSaleInput struct {
	CashierID      int64
	CustomerID     int64
	Items          []SaleItemInput
	Payments       []SalePaymentInput
	DiscountType   DiscountType
	DiscountValue  float64
	Hold           bool
	IdempotencyKey string
}

// CreateSale persists a sale. A held sale stores only the cart; a completed
// sale additionally consumes stock, records tenders and applies customer
// credit and loyalty effects, all within one transaction.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (Sale, error) {
	if input.CashierID == 0 {
		return Sale{}, fmt.Errorf("%w: cashier required", ErrValidation)
	}
	if len(input.Items) == 0 {
		return Sale{}, fmt.Errorf("%w: minimal 1 item", ErrValidation)
	}
	var total float64
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Qty <= 0 || item.UnitPrice < 0 {
			return Sale{}, fmt.Errorf("%w: item requires product, positive qty and non-negative price", ErrValidation)
		}
		total += item.Qty * item.UnitPrice
	}
	if !input.Hold {
		for _, p := range input.Payments {
			if !p.Type.Valid() || p.Amount <= 0 {
				return Sale{}, fmt.Errorf("%w: payment requires known type and positive amount", ErrValidation)
			}
		}
	}

	discount := ComputeDiscount(total, input.DiscountType, input.DiscountValue)
	final := total - discount
	var paid, creditUsed float64
	for _, p := range input.Payments {
		paid += p.Amount
		if p.Type == TenderTypeCredit {
			creditUsed += p.Amount
		}
	}
	if !input.Hold && paid < final {
		return Sale{}, fmt.Errorf("%w: tendered %.2f below final amount %.2f", ErrValidation, paid, final)
	}
	if creditUsed > 0 && input.CustomerID == 0 {
		return Sale{}, fmt.Errorf("%w: credit tender requires a customer", ErrValidation)
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	if s.idempotency != nil && !input.Hold {
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
			return Sale{}, err
		}
	}

	sale := Sale{
		CashierID:      input.CashierID,
		CustomerID:     input.CustomerID,
		SoldAt:         time.Now().UTC(),
		IsHeld:         input.Hold,
		TotalAmount:    total,
		DiscountType:   input.DiscountType,
		DiscountValue:  input.DiscountValue,
		DiscountAmount: discount,
		FinalAmount:    final,
		AmountPaid:     paid,
		Change:         math.Max(paid-final, 0),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		saleID, err := tx.CreateSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		for _, item := range input.Items {
			line := SaleItem{
				SaleID:    saleID,
				ProductID: item.ProductID,
				BatchID:   item.BatchID,
				Qty:       item.Qty,
				UnitPrice: item.UnitPrice,
				LineTotal: item.Qty * item.UnitPrice,
			}
			if err := tx.InsertSaleItem(ctx, line); err != nil {
				return err
			}
			if input.Hold {
				continue
			}
			if err := tx.AdjustProductStock(ctx, item.ProductID, -item.Qty); err != nil {
				return err
			}
			if item.BatchID != 0 {
				if err := tx.ConsumeBatch(ctx, item.BatchID, item.Qty); err != nil {
					return err
				}
			}
		}
		if input.Hold {
			return nil
		}

		for _, p := range input.Payments {
			payment := SalePayment{SaleID: saleID, Type: p.Type, Amount: p.Amount, CardLastFour: p.CardLastFour}
			if err := tx.InsertSalePayment(ctx, payment); err != nil {
				return err
			}
		}

		if input.CustomerID != 0 {
			customer, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
			if err != nil {
				return err
			}
			var points int64
			if customer.Type == CustomerTypeLoyalty {
				points = PointsForAmount(final)
			}
			if creditUsed > 0 || points > 0 {
				if err := tx.UpdateCustomerCounters(ctx, input.CustomerID, creditUsed, points); err != nil {
					return err
				}
			}
			sale.PointsAwarded = points
			sale.CreditUsed = creditUsed
			if err := tx.SetSaleAwards(ctx, saleID, points, creditUsed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if s.idempotency != nil && !input.Hold {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Sale{}, err
	}

	action := "SALE_CREATE"
	if input.Hold {
		action = "SALE_HOLD"
	}
	s.recordAudit(ctx, input.CashierID, action, sale.ID, map[string]any{
		"final_amount": sale.FinalAmount,
		"items":        len(input.Items),
	})
	return sale, nil
}

// ResumeHeldSale removes a held sale and returns its cart so the till can
// pick it back up.
func (s *Service) ResumeHeldSale(ctx context.Context, saleID, cashierID int64) (Sale, []SaleItem, error) {
	sale, items, _, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return Sale{}, nil, err
	}
	if !sale.IsHeld {
		return Sale{}, nil, ErrNotHeld
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteSale(ctx, saleID)
	})
	if err != nil {
		return Sale{}, nil, err
	}
	s.recordAudit(ctx, cashierID, "SALE_RESUME", saleID, nil)
	return sale, items, nil
}

// ReleaseHeldSale discards a held sale without completing it.
func (s *Service) ReleaseHeldSale(ctx context.Context, saleID, cashierID int64) error {
	sale, _, _, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if !sale.IsHeld {
		return ErrNotHeld
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteSale(ctx, saleID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, cashierID, "SALE_RELEASE", saleID, nil)
	return nil
}

// ListHeldSales returns the parked carts for a cashier (all when zero).
func (s *Service) ListHeldSales(ctx context.Context, cashierID int64) ([]Sale, error) {
	return s.repo.ListHeldSales(ctx, cashierID)
}

// GetSale loads one sale with items and payments.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, []SaleItem, []SalePayment, error) {
	return s.repo.GetSale(ctx, id)
}

// VoidSale irreversibly cancels a completed sale: stock returns to the
// product and its originating batches, and the stored customer credit and
// loyalty awards are subtracted, clamped at zero. All in one transaction.
func (s *Service) VoidSale(ctx context.Context, saleID, actorID int64) error {
	sale, items, _, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.IsHeld {
		return ErrHeldSale
	}
	if sale.IsVoided {
		return ErrAlreadyVoided
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range items {
			if err := tx.AdjustProductStock(ctx, item.ProductID, item.Qty); err != nil {
				return err
			}
			if item.BatchID != 0 {
				if err := tx.RestoreBatch(ctx, item.BatchID, item.Qty); err != nil {
					return err
				}
			}
		}
		if sale.CustomerID != 0 && (sale.CreditUsed > 0 || sale.PointsAwarded > 0) {
			customer, err := tx.GetCustomerForUpdate(ctx, sale.CustomerID)
			if err != nil {
				return err
			}
			creditDelta := -math.Min(sale.CreditUsed, customer.CreditBalance)
			pointsDelta := -minInt64(sale.PointsAwarded, customer.LoyaltyPoints)
			if creditDelta != 0 || pointsDelta != 0 {
				if err := tx.UpdateCustomerCounters(ctx, sale.CustomerID, creditDelta, pointsDelta); err != nil {
					return err
				}
			}
		}
		return tx.MarkVoided(ctx, saleID, time.Now().UTC())
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "SALE_VOID", saleID, map[string]any{
		"final_amount":   sale.FinalAmount,
		"points_awarded": sale.PointsAwarded,
		"credit_used":    sale.CreditUsed,
	})
	return nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
