package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	SalesSummary(ctx context.Context, from, to time.Time) (total float64, count int64, err error)
	PaymentMix(ctx context.Context, from, to time.Time) (map[string]float64, error)
	LowStockCount(ctx context.Context, threshold float64) (int64, error)
	SupplierCreditOwed(ctx context.Context) (float64, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)
	DailySales(ctx context.Context, from, to time.Time) ([]SalesReportRow, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const liveSales = `NOT s.is_held AND NOT s.is_voided AND s.created_at >= $1 AND s.created_at < $2`

func (r *repository) SalesSummary(ctx context.Context, from, to time.Time) (float64, int64, error) {
	var total float64
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(s.final_amount), 0), COUNT(*)
		FROM sales s WHERE `+liveSales, from, to).Scan(&total, &count)
	return total, count, err
}

func (r *repository) PaymentMix(ctx context.Context, from, to time.Time) (map[string]float64, error) {
	rows, err := r.db.Query(ctx, `SELECT p.type, COALESCE(SUM(p.amount), 0)
		FROM sale_payments p
		JOIN sales s ON s.id = p.sale_id
		WHERE `+liveSales+`
		GROUP BY p.type`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mix := map[string]float64{}
	for rows.Next() {
		var tender string
		var amount float64
		if err := rows.Scan(&tender, &amount); err != nil {
			return nil, err
		}
		mix[tender] = amount
	}
	return mix, rows.Err()
}

func (r *repository) LowStockCount(ctx context.Context, threshold float64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE is_active AND stock_qty <= $1`, threshold).Scan(&count)
	return count, err
}

func (r *repository) SupplierCreditOwed(ctx context.Context) (float64, error) {
	var owed float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(credit_amount), 0) FROM grns`).Scan(&owed)
	return owed, err
}

func (r *repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error) {
	rows, err := r.db.Query(ctx, `SELECT i.product_id, p.name,
			COALESCE(SUM(i.qty), 0), COALESCE(SUM(i.line_total), 0)
		FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		JOIN products p ON p.id = i.product_id
		WHERE `+liveSales+`
		GROUP BY i.product_id, p.name
		ORDER BY SUM(i.line_total) DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductSales
	for rows.Next() {
		var ps ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.Qty, &ps.Total); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (r *repository) DailySales(ctx context.Context, from, to time.Time) ([]SalesReportRow, error) {
	rows, err := r.db.Query(ctx, `SELECT to_char(date_trunc('day', s.created_at), 'YYYY-MM-DD'),
			COALESCE(SUM(s.final_amount), 0), COUNT(*), COALESCE(SUM(s.discount_amount), 0)
		FROM sales s
		WHERE `+liveSales+`
		GROUP BY 1
		ORDER BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalesReportRow
	for rows.Next() {
		var row SalesReportRow
		if err := rows.Scan(&row.Date, &row.SalesTotal, &row.SalesCount, &row.Discount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
