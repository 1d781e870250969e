// Package suppliers manages supplier master data and their outstanding credit.
package suppliers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("suppliers: not found")

// Supplier carries contact details plus CreditBalance, the sum of unpaid
// goods receipt amounts owed to the supplier.
type Supplier struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreditBalance float64   `json:"credit_balance"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ListFilter struct {
	Search   string
	IsActive *bool
	Limit    int
	Offset   int
}

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, s Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, s Supplier) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `s.id, s.name, COALESCE(s.contact_person, ''), COALESCE(s.phone, ''),
	COALESCE(s.email, ''), COALESCE(s.address, ''),
	COALESCE((SELECT SUM(g.credit_amount) FROM grns g WHERE g.supplier_id = s.id), 0),
	s.is_active, s.created_at, s.updated_at`

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	query := `SELECT ` + columns + ` FROM suppliers s WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM suppliers s WHERE 1=1`
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
		addClause(` AND (s.name ILIKE $`, "%"+filter.Search+"%")
		query += ` OR s.phone ILIKE $` + strconv.Itoa(argCount) + `)`
		countQuery += ` OR s.phone ILIKE $` + strconv.Itoa(argCount) + `)`
	}
	if filter.IsActive != nil {
		addClause(` AND s.is_active = $`, *filter.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY s.name`
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

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM suppliers s WHERE s.id = $1`, id)
	s, err := scanSupplier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (name, contact_person, phone, email, address,
			is_active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), TRUE, $6, $6)
		RETURNING id`,
		s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, now).Scan(&s.ID)
	if err != nil {
		return Supplier{}, err
	}
	s.IsActive = true
	s.CreatedAt = now
	s.UpdatedAt = now
	return s, nil
}

func (r *repository) Update(ctx context.Context, id int64, s Supplier) error {
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET name = $2, contact_person = NULLIF($3, ''),
			phone = NULLIF($4, ''), email = NULLIF($5, ''), address = NULLIF($6, ''),
			is_active = $7, updated_at = NOW()
		WHERE id = $1`,
		id, s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, s.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address,
		&s.CreditBalance, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
