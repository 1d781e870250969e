package procurement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

// Repository persists procurement data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	NextGRNNumber(ctx context.Context, receivedAt time.Time) (string, error)
	CreateGRN(ctx context.Context, grn GRN) (int64, error)
	InsertGRNItem(ctx context.Context, item GRNItem) error
	InsertBatch(ctx context.Context, item GRNItem, supplierID int64, receivedAt time.Time) error
	AdjustProductStock(ctx context.Context, productID int64, delta float64) error
	RefreshMultiPriceFlag(ctx context.Context, productID int64) error
	GetGRNForUpdate(ctx context.Context, id int64) (GRN, error)
	ListPayments(ctx context.Context, grnID int64) ([]GRNPayment, error)
	InsertPayment(ctx context.Context, payment GRNPayment) (int64, error)
	UpdatePaymentSummary(ctx context.Context, grnID int64, rec Reconciliation) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const grnColumns = `id, number, supplier_id, received_by, received_at, notes,
	total_amount, paid_amount, credit_amount, payment_status, created_at`

// GetGRN loads a receipt header and its items.
func (r *Repository) GetGRN(ctx context.Context, id int64) (GRN, []GRNItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+grnColumns+` FROM grns WHERE id = $1`, id)
	grn, err := scanGRN(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GRN{}, nil, ErrNotFound
		}
		return GRN{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, grn_id, product_id, batch_number, qty, cost_price,
			product_price, selling_price, wholesale_price, manufactured_at, expires_at
		FROM grn_items WHERE grn_id = $1 ORDER BY id`, id)
	if err != nil {
		return GRN{}, nil, err
	}
	defer rows.Close()

	var items []GRNItem
	for rows.Next() {
		var item GRNItem
		if err := rows.Scan(&item.ID, &item.GRNID, &item.ProductID, &item.BatchNumber, &item.Qty,
			&item.CostPrice, &item.ProductPrice, &item.SellingPrice, &item.WholesalePrice,
			&item.ManufacturedAt, &item.ExpiresAt); err != nil {
			return GRN{}, nil, err
		}
		items = append(items, item)
	}
	return grn, items, rows.Err()
}

// ListGRNs returns filtered receipts with the total count.
func (r *Repository) ListGRNs(ctx context.Context, filter ListFilter) ([]GRN, int, error) {
	query := `SELECT ` + grnColumns + ` FROM grns WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM grns WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	addClause := func(clause string, value interface{}) {
		argCount++
		clause = clause + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, value)
	}
	if filter.SupplierID != 0 {
		addClause(` AND supplier_id = $`, filter.SupplierID)
	}
	if filter.Status != "" {
		addClause(` AND payment_status = $`, string(filter.Status))
	}
	if filter.Search != "" {
		addClause(` AND number ILIKE $`, "%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY received_at DESC, id DESC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filter.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var grns []GRN
	for rows.Next() {
		grn, err := scanGRN(rows)
		if err != nil {
			return nil, 0, err
		}
		grns = append(grns, grn)
	}
	return grns, total, rows.Err()
}

// ListPayments returns the payment history of a receipt.
func (r *Repository) ListPayments(ctx context.Context, grnID int64) ([]GRNPayment, error) {
	return listPayments(ctx, r.pool, grnID)
}

func scanGRN(row pgx.Row) (GRN, error) {
	var g GRN
	err := row.Scan(&g.ID, &g.Number, &g.SupplierID, &g.ReceivedBy, &g.ReceivedAt, &g.Notes,
		&g.TotalAmount, &g.PaidAmount, &g.CreditAmount, &g.PaymentStatus, &g.CreatedAt)
	return g, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listPayments(ctx context.Context, q querier, grnID int64) ([]GRNPayment, error) {
	rows, err := q.Query(ctx, `SELECT id, grn_id, paid_at, type, amount,
			COALESCE(cheque_number, ''), COALESCE(cheque_date, '0001-01-01'::timestamptz), notes, recorded_by
		FROM grn_payments WHERE grn_id = $1 ORDER BY paid_at, id`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []GRNPayment
	for rows.Next() {
		var p GRNPayment
		if err := rows.Scan(&p.ID, &p.GRNID, &p.PaidAt, &p.Type, &p.Amount,
			&p.ChequeNumber, &p.ChequeDate, &p.Notes, &p.RecordedBy); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// NextGRNNumber allocates GRN{yyyyMMdd}{seq} from a database sequence so
// concurrent intakes never collide.
func (r *txRepository) NextGRNNumber(ctx context.Context, receivedAt time.Time) (string, error) {
	var seq int64
	if err := r.tx.QueryRow(ctx, `SELECT nextval('grn_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("GRN%s%04d", receivedAt.Format("20060102"), seq), nil
}

func (r *txRepository) CreateGRN(ctx context.Context, grn GRN) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO grns (number, supplier_id, received_by, received_at, notes,
			total_amount, paid_amount, credit_amount, payment_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id`,
		grn.Number, grn.SupplierID, grn.ReceivedBy, grn.ReceivedAt, grn.Notes,
		grn.TotalAmount, grn.PaidAmount, grn.CreditAmount, string(grn.PaymentStatus)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertGRNItem(ctx context.Context, item GRNItem) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO grn_items (grn_id, product_id, batch_number, qty, cost_price,
			product_price, selling_price, wholesale_price, manufactured_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.GRNID, item.ProductID, item.BatchNumber, item.Qty, item.CostPrice,
		item.ProductPrice, item.SellingPrice, item.WholesalePrice, item.ManufacturedAt, item.ExpiresAt)
	return err
}

func (r *txRepository) InsertBatch(ctx context.Context, item GRNItem, supplierID int64, receivedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO product_batches (product_id, supplier_id, grn_id, number,
			cost_price, product_price, selling_price, wholesale_price,
			qty, remaining, manufactured_at, expires_at, received_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12, TRUE, NOW())`,
		item.ProductID, supplierID, item.GRNID, item.BatchNumber,
		item.CostPrice, item.ProductPrice, item.SellingPrice, item.WholesalePrice,
		item.Qty, item.ManufacturedAt, item.ExpiresAt, receivedAt)
	return err
}

func (r *txRepository) AdjustProductStock(ctx context.Context, productID int64, delta float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock_qty = stock_qty + $2, updated_at = NOW() WHERE id = $1`, productID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	return nil
}

func (r *txRepository) RefreshMultiPriceFlag(ctx context.Context, productID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET has_multiple_prices = (
			SELECT COUNT(DISTINCT (ROUND(product_price::numeric, 2), ROUND(selling_price::numeric, 2), ROUND(wholesale_price::numeric, 2))) > 1
			FROM product_batches
			WHERE product_id = $1 AND is_active AND remaining > 0
		), updated_at = NOW()
		WHERE id = $1`, productID)
	return err
}

func (r *txRepository) GetGRNForUpdate(ctx context.Context, id int64) (GRN, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+grnColumns+` FROM grns WHERE id = $1 FOR UPDATE`, id)
	grn, err := scanGRN(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GRN{}, ErrNotFound
		}
		return GRN{}, err
	}
	return grn, nil
}

func (r *txRepository) ListPayments(ctx context.Context, grnID int64) ([]GRNPayment, error) {
	return listPayments(ctx, r.tx, grnID)
}

func (r *txRepository) InsertPayment(ctx context.Context, payment GRNPayment) (int64, error) {
	var chequeDate any
	if !payment.ChequeDate.IsZero() {
		chequeDate = payment.ChequeDate
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO grn_payments (grn_id, paid_at, type, amount,
			cheque_number, cheque_date, notes, recorded_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id`,
		payment.GRNID, payment.PaidAt, string(payment.Type), payment.Amount,
		payment.ChequeNumber, chequeDate, payment.Notes, payment.RecordedBy).Scan(&id)
	return id, err
}

func (r *txRepository) UpdatePaymentSummary(ctx context.Context, grnID int64, rec Reconciliation) error {
	_, err := r.tx.Exec(ctx, `UPDATE grns SET payment_status = $2, paid_amount = $3, credit_amount = $4 WHERE id = $1`,
		grnID, string(rec.Status), rec.PaidAmount, rec.CreditAmount)
	return err
}
