package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates product missing.
	ErrNotFound = errors.New("products: not found")
	// ErrDuplicateBarcode indicates a barcode conflict.
	ErrDuplicateBarcode = errors.New("products: barcode already exists")
)

type Repository interface {
	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetByBarcode(ctx context.Context, barcode string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, barcode, name, category_id, COALESCE(supplier_id, 0), stock_qty,
	has_multiple_prices, min_price, max_price, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	query := `SELECT ` + columns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	addClause := func(clause string, value interface{}) {
		argCount++
		clause = clause + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, value)
	}
	if req.Search != "" {
		addClause(` AND (name ILIKE $`, "%"+req.Search+"%")
		query += ` OR barcode ILIKE $` + strconv.Itoa(argCount) + `)`
		countQuery += ` OR barcode ILIKE $` + strconv.Itoa(argCount) + `)`
	}
	if req.CategoryID != 0 {
		addClause(` AND category_id = $`, req.CategoryID)
	}
	if req.IsActive != nil {
		addClause(` AND is_active = $`, *req.IsActive)
	}
	if req.LowStock != nil {
		addClause(` AND stock_qty <= $`, *req.LowStock)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if req.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, req.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, req.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE barcode = $1`, barcode)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	var supplierID any
	if product.SupplierID != 0 {
		supplierID = product.SupplierID
	}
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO products (barcode, name, category_id, supplier_id,
			stock_qty, has_multiple_prices, min_price, max_price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, FALSE, $5, $6, TRUE, $7, $7)
		RETURNING id`,
		product.Barcode, product.Name, product.CategoryID, supplierID,
		product.MinPrice, product.MaxPrice, now).Scan(&product.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateBarcode
		}
		return Product{}, err
	}
	product.IsActive = true
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	var supplierID any
	if product.SupplierID != 0 {
		supplierID = product.SupplierID
	}
	tag, err := r.db.Exec(ctx, `UPDATE products SET name = $2, category_id = $3, supplier_id = $4,
			min_price = $5, max_price = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1`,
		id, product.Name, product.CategoryID, supplierID, product.MinPrice, product.MaxPrice, product.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.CategoryID, &p.SupplierID, &p.StockQty,
		&p.HasMultiplePrices, &p.MinPrice, &p.MaxPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
