package sales

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

// Repository persists sales data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	CreateSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItem(ctx context.Context, item SaleItem) error
	InsertSalePayment(ctx context.Context, payment SalePayment) error
	AdjustProductStock(ctx context.Context, productID int64, delta float64) error
	ConsumeBatch(ctx context.Context, batchID int64, qty float64) error
	RestoreBatch(ctx context.Context, batchID int64, qty float64) error
	GetCustomerForUpdate(ctx context.Context, id int64) (CustomerSnapshot, error)
	UpdateCustomerCounters(ctx context.Context, id int64, creditDelta float64, pointsDelta int64) error
	SetSaleAwards(ctx context.Context, saleID int64, points int64, creditUsed float64) error
	MarkVoided(ctx context.Context, saleID int64, at time.Time) error
	DeleteSale(ctx context.Context, saleID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const saleColumns = `id, cashier_id, COALESCE(customer_id, 0), sold_at, is_held,
	total_amount, COALESCE(discount_type, ''), discount_value, discount_amount, final_amount,
	amount_paid, change, points_awarded, credit_used, is_voided,
	COALESCE(voided_at, '0001-01-01'::timestamptz), created_at`

// GetSale loads one sale with its items and payments.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, []SaleItem, []SalePayment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, nil, nil, ErrNotFound
		}
		return Sale{}, nil, nil, err
	}

	itemRows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, COALESCE(batch_id, 0), qty, unit_price, line_total
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, nil, nil, err
	}
	defer itemRows.Close()
	var items []SaleItem
	for itemRows.Next() {
		var item SaleItem
		if err := itemRows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.BatchID, &item.Qty, &item.UnitPrice, &item.LineTotal); err != nil {
			return Sale{}, nil, nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		return Sale{}, nil, nil, err
	}

	payRows, err := r.pool.Query(ctx, `SELECT id, sale_id, type, amount, COALESCE(card_last_four, '')
		FROM sale_payments WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, nil, nil, err
	}
	defer payRows.Close()
	var payments []SalePayment
	for payRows.Next() {
		var p SalePayment
		if err := payRows.Scan(&p.ID, &p.SaleID, &p.Type, &p.Amount, &p.CardLastFour); err != nil {
			return Sale{}, nil, nil, err
		}
		payments = append(payments, p)
	}
	return sale, items, payments, payRows.Err()
}

// ListHeldSales returns parked carts, optionally narrowed to one cashier.
func (r *Repository) ListHeldSales(ctx context.Context, cashierID int64) ([]Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE is_held`
	args := []interface{}{}
	if cashierID != 0 {
		query += ` AND cashier_id = $1`
		args = append(args, cashierID)
	}
	query += ` ORDER BY sold_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.CashierID, &s.CustomerID, &s.SoldAt, &s.IsHeld,
		&s.TotalAmount, &s.DiscountType, &s.DiscountValue, &s.DiscountAmount, &s.FinalAmount,
		&s.AmountPaid, &s.Change, &s.PointsAwarded, &s.CreditUsed, &s.IsVoided,
		&s.VoidedAt, &s.CreatedAt)
	return s, err
}

func (r *txRepository) CreateSale(ctx context.Context, sale Sale) (int64, error) {
	var customerID any
	if sale.CustomerID != 0 {
		customerID = sale.CustomerID
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (cashier_id, customer_id, sold_at, is_held,
			total_amount, discount_type, discount_value, discount_amount, final_amount,
			amount_paid, change, points_awarded, credit_used, is_voided, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, 0, 0, FALSE, NOW())
		RETURNING id`,
		sale.CashierID, customerID, sale.SoldAt, sale.IsHeld,
		sale.TotalAmount, string(sale.DiscountType), sale.DiscountValue, sale.DiscountAmount, sale.FinalAmount,
		sale.AmountPaid, sale.Change).Scan(&id)
	return id, err
}

func (r *txRepository) InsertSaleItem(ctx context.Context, item SaleItem) error {
	var batchID any
	if item.BatchID != 0 {
		batchID = item.BatchID
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO sale_items (sale_id, product_id, batch_id, qty, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.SaleID, item.ProductID, batchID, item.Qty, item.UnitPrice, item.LineTotal)
	return err
}

func (r *txRepository) InsertSalePayment(ctx context.Context, payment SalePayment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sale_payments (sale_id, type, amount, card_last_four)
		VALUES ($1, $2, $3, NULLIF($4, ''))`,
		payment.SaleID, string(payment.Type), payment.Amount, payment.CardLastFour)
	return err
}

func (r *txRepository) AdjustProductStock(ctx context.Context, productID int64, delta float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock_qty = stock_qty + $2, updated_at = NOW() WHERE id = $1`, productID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeBatch decrements remaining, refusing to go below zero.
func (r *txRepository) ConsumeBatch(ctx context.Context, batchID int64, qty float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE product_batches SET remaining = remaining - $2
		WHERE id = $1 AND is_active AND remaining >= $2`, batchID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreBatch returns voided quantity, capped at the original batch size.
func (r *txRepository) RestoreBatch(ctx context.Context, batchID int64, qty float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE product_batches SET remaining = LEAST(remaining + $2, qty) WHERE id = $1`, batchID, qty)
	return err
}

func (r *txRepository) GetCustomerForUpdate(ctx context.Context, id int64) (CustomerSnapshot, error) {
	var c CustomerSnapshot
	err := r.tx.QueryRow(ctx, `SELECT id, type, credit_balance, loyalty_points FROM customers WHERE id = $1 FOR UPDATE`, id).
		Scan(&c.ID, &c.Type, &c.CreditBalance, &c.LoyaltyPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerSnapshot{}, ErrNotFound
	}
	return c, err
}

func (r *txRepository) UpdateCustomerCounters(ctx context.Context, id int64, creditDelta float64, pointsDelta int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE customers SET
			credit_balance = GREATEST(credit_balance + $2, 0),
			loyalty_points = GREATEST(loyalty_points + $3, 0),
			updated_at = NOW()
		WHERE id = $1`, id, creditDelta, pointsDelta)
	return err
}

func (r *txRepository) SetSaleAwards(ctx context.Context, saleID int64, points int64, creditUsed float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET points_awarded = $2, credit_used = $3 WHERE id = $1`, saleID, points, creditUsed)
	return err
}

// MarkVoided flips the void flag, refusing a sale another transaction has
// voided since it was loaded.
func (r *txRepository) MarkVoided(ctx context.Context, saleID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET is_voided = TRUE, voided_at = $2
		WHERE id = $1 AND NOT is_voided`, saleID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyVoided
	}
	return nil
}

func (r *txRepository) DeleteSale(ctx context.Context, saleID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM sale_payments WHERE sale_id = $1`, saleID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	return err
}
