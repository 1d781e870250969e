// Package users manages staff accounts and credential checks.
package users

import (
	"errors"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleCashier
}

var (
	ErrNotFound           = errors.New("users: not found")
	ErrDuplicateUsername  = errors.New("users: username already exists")
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	ErrValidation         = errors.New("users: validation failed")
)

// User is a staff account. PasswordHash never leaves the package.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	LastLoginAt  time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
