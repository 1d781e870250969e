package customers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ListFilter struct {
	Search   string
	Type     Type
	IsActive *bool
	Limit    int
	Offset   int
}

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	GetByPhone(ctx context.Context, phone string) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, id int64, c Customer) error
	AdjustCredit(ctx context.Context, id int64, delta float64) (Customer, error)
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, name, phone, COALESCE(email, ''), type, loyalty_points,
	credit_balance, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	query := `SELECT ` + columns + ` FROM customers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM customers WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	addClause := func(clause string, value interface{}) {
		argCount++
		clause = clause + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, value)
	}
	if filter.Search != "" {
		addClause(` AND (name ILIKE $`, "%"+filter.Search+"%")
		query += ` OR phone ILIKE $` + strconv.Itoa(argCount) + `)`
		countQuery += ` OR phone ILIKE $` + strconv.Itoa(argCount) + `)`
	}
	if filter.Type != "" {
		addClause(` AND type = $`, string(filter.Type))
	}
	if filter.IsActive != nil {
		addClause(` AND is_active = $`, *filter.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *repository) GetByPhone(ctx context.Context, phone string) (Customer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE phone = $1`, phone)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO customers (name, phone, email, type, loyalty_points,
			credit_balance, is_active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, 0, $5, TRUE, $6, $6)
		RETURNING id`,
		c.Name, c.Phone, c.Email, string(c.Type), c.CreditBalance, now).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Customer{}, ErrDuplicatePhone
		}
		return Customer{}, err
	}
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

func (r *repository) Update(ctx context.Context, id int64, c Customer) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers SET name = $2, phone = $3, email = NULLIF($4, ''),
			type = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1`,
		id, c.Name, c.Phone, c.Email, string(c.Type), c.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePhone
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustCredit applies a manual top-up or correction. Balance never drops
// below zero.
func (r *repository) AdjustCredit(ctx context.Context, id int64, delta float64) (Customer, error) {
	row := r.db.QueryRow(ctx, `UPDATE customers
		SET credit_balance = GREATEST(credit_balance + $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING `+columns, id, delta)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var ctype string
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &ctype, &c.LoyaltyPoints,
		&c.CreditBalance, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	c.Type = Type(ctype)
	return c, err
}
