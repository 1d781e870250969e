package inventory

import (
	"context"
	"fmt"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, id int64) (Batch, error)
	GetActiveBatchesByProduct(ctx context.Context, productID int64) ([]Batch, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates batch ledger operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// PriceVariants returns the price groups a cashier can sell from for one
// product. An empty result means no sellable batch exists and the caller
// falls back to the product's own price fields.
func (s *Service) PriceVariants(ctx context.Context, productID int64) ([]PriceVariant, error) {
	if productID == 0 {
		return nil, fmt.Errorf("%w: product id required", ErrValidation)
	}
	batches, err := s.repo.GetActiveBatchesByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return GroupPriceVariants(batches), nil
}

// UpdateBatchPricesInput carries an edit of the mutable price tiers.
type UpdateBatchPricesInput struct {
	BatchID        int64
	SellingPrice   float64
	WholesalePrice float64
	ActorID        int64
}

// UpdateBatchPrices edits the selling and wholesale price of a batch.
// Cost price and MRP are GRN-sourced and immutable.
func (s *Service) UpdateBatchPrices(ctx context.Context, input UpdateBatchPricesInput) (Batch, error) {
	if input.SellingPrice <= 0 || input.WholesalePrice <= 0 {
		return Batch{}, ErrInvalidPrice
	}
	batch, err := s.repo.GetBatch(ctx, input.BatchID)
	if err != nil {
		return Batch{}, err
	}
	if !batch.IsActive {
		return Batch{}, ErrBatchInactive
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateBatchPrices(ctx, input.BatchID, input.SellingPrice, input.WholesalePrice); err != nil {
			return err
		}
		return tx.RefreshMultiPriceFlag(ctx, batch.ProductID)
	})
	if err != nil {
		return Batch{}, err
	}
	batch.SellingPrice = input.SellingPrice
	batch.WholesalePrice = input.WholesalePrice
	s.recordAudit(ctx, input.ActorID, "BATCH_PRICE_UPDATE", batch.ID, map[string]any{
		"selling_price":   input.SellingPrice,
		"wholesale_price": input.WholesalePrice,
	})
	return batch, nil
}

// DeactivateBatch logically deletes a batch. The row stays for the audit
// trail; remaining stock is removed from the product counter.
func (s *Service) DeactivateBatch(ctx context.Context, batchID, actorID int64) error {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if !batch.IsActive {
		return ErrBatchInactive
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeactivateBatch(ctx, batchID); err != nil {
			return err
		}
		if batch.Remaining > 0 {
			if err := tx.AdjustProductStock(ctx, batch.ProductID, -batch.Remaining); err != nil {
				return err
			}
		}
		return tx.RefreshMultiPriceFlag(ctx, batch.ProductID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "BATCH_DEACTIVATE", batchID, map[string]any{
		"product_id": batch.ProductID,
		"remaining":  batch.Remaining,
	})
	return nil
}

// GetBatch returns one batch.
func (s *Service) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product_batch",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
