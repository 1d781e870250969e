// Package customers manages loyalty and wholesale customer accounts.
package customers

import (
	"errors"
	"time"
)

// Type partitions customers by pricing treatment. Loyalty customers earn
// points on completed sales; wholesale customers buy at wholesale prices
// and may carry store credit.
type Type string

const (
	TypeLoyalty   Type = "loyalty"
	TypeWholesale Type = "wholesale"
)

func (t Type) Valid() bool {
	return t == TypeLoyalty || t == TypeWholesale
}

var (
	ErrNotFound       = errors.New("customers: not found")
	ErrDuplicatePhone = errors.New("customers: phone already registered")
	ErrValidation     = errors.New("customers: validation failed")
)

type Customer struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	Type          Type      `json:"type"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	CreditBalance float64   `json:"credit_balance"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
