// Package categories manages the product category tree.
package categories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("categories: not found")
	ErrDuplicateName = errors.New("categories: name already exists")
	ErrInUse         = errors.New("categories: category has products")
)

type Category struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ProductCount int       `json:"product_count"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Repository interface {
	List(ctx context.Context, includeInactive bool) ([]Category, error)
	Get(ctx context.Context, id int64) (Category, error)
	Create(ctx context.Context, c Category) (Category, error)
	Update(ctx context.Context, id int64, c Category) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `c.id, c.name, COALESCE(c.description, ''),
	(SELECT COUNT(*) FROM products p WHERE p.category_id = c.id AND p.is_active),
	c.is_active, c.created_at, c.updated_at`

func (r *repository) List(ctx context.Context, includeInactive bool) ([]Category, error) {
	query := `SELECT ` + columns + ` FROM categories c`
	if !includeInactive {
		query += ` WHERE c.is_active`
	}
	query += ` ORDER BY c.name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Category, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM categories c WHERE c.id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Category) (Category, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO categories (name, description, is_active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), TRUE, $3, $3) RETURNING id`,
		c.Name, c.Description, now).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Category{}, ErrDuplicateName
		}
		return Category{}, err
	}
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

func (r *repository) Update(ctx context.Context, id int64, c Category) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET name = $2, description = NULLIF($3, ''),
			is_active = $4, updated_at = NOW()
		WHERE id = $1`, id, c.Name, c.Description, c.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateName
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	var inUse bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE category_id = $1 AND is_active)`, id).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return ErrInUse
	}
	tag, err := r.db.Exec(ctx, `UPDATE categories SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ProductCount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
