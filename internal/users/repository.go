package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id int64, u User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, username, full_name, role, password_hash, is_active,
	COALESCE(last_login_at, '0001-01-01'::timestamptz), created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *repository) GetByUsername(ctx context.Context, username string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *repository) Create(ctx context.Context, u User) (User, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO users (username, full_name, role, password_hash,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		RETURNING id`,
		u.Username, u.FullName, string(u.Role), u.PasswordHash, now).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateUsername
		}
		return User{}, err
	}
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}

func (r *repository) Update(ctx context.Context, id int64, u User) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET full_name = $2, role = $3, is_active = $4,
			updated_at = NOW()
		WHERE id = $1`, id, u.FullName, string(u.Role), u.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &role, &u.PasswordHash, &u.IsActive,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	u.Role = Role(role)
	return u, err
}
