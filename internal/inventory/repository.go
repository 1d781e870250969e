package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

// Repository persists batch data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	UpdateBatchPrices(ctx context.Context, id int64, selling, wholesale float64) error
	DeactivateBatch(ctx context.Context, id int64) error
	AdjustProductStock(ctx context.Context, productID int64, delta float64) error
	RefreshMultiPriceFlag(ctx context.Context, productID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const batchColumns = `b.id, b.product_id, b.supplier_id, COALESCE(b.grn_id, 0), COALESCE(g.number, ''),
	b.number, b.cost_price, b.product_price, b.selling_price, b.wholesale_price,
	b.qty, b.remaining, b.manufactured_at, b.expires_at, b.received_at, b.is_active, b.created_at`

// GetBatch loads one batch with its goods receipt number resolved.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+`
		FROM product_batches b
		LEFT JOIN grns g ON g.id = b.grn_id
		WHERE b.id = $1`, id)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	return batch, nil
}

// GetActiveBatchesByProduct returns sellable batches ordered newest first.
func (r *Repository) GetActiveBatchesByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+`
		FROM product_batches b
		LEFT JOIN grns g ON g.id = b.grn_id
		WHERE b.product_id = $1 AND b.is_active AND b.remaining > 0
		ORDER BY b.received_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(
		&b.ID, &b.ProductID, &b.SupplierID, &b.GRNID, &b.GRNNumber,
		&b.Number, &b.CostPrice, &b.ProductPrice, &b.SellingPrice, &b.WholesalePrice,
		&b.Qty, &b.Remaining, &b.ManufacturedAt, &b.ExpiresAt, &b.ReceivedAt, &b.IsActive, &b.CreatedAt,
	)
	return b, err
}

func (r *txRepository) UpdateBatchPrices(ctx context.Context, id int64, selling, wholesale float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE product_batches SET selling_price = $2, wholesale_price = $3 WHERE id = $1`, id, selling, wholesale)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *txRepository) DeactivateBatch(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE product_batches SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *txRepository) AdjustProductStock(ctx context.Context, productID int64, delta float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET stock_qty = stock_qty + $2, updated_at = NOW() WHERE id = $1`, productID, delta)
	return err
}

// RefreshMultiPriceFlag recomputes has_multiple_prices from the distinct
// rounded price triples of the product's sellable batches.
func (r *txRepository) RefreshMultiPriceFlag(ctx context.Context, productID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET has_multiple_prices = (
			SELECT COUNT(DISTINCT (ROUND(product_price::numeric, 2), ROUND(selling_price::numeric, 2), ROUND(wholesale_price::numeric, 2))) > 1
			FROM product_batches
			WHERE product_id = $1 AND is_active AND remaining > 0
		), updated_at = NOW()
		WHERE id = $1`, productID)
	return err
}
