package sales

import (
	"errors"
	"math"
	"time"
)

// Discount application modes.
type DiscountType string

const (
	DiscountTypeNone    DiscountType = ""
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeAmount  DiscountType = "amount"
)

// Tender types accepted at the till.
type TenderType string

const (
	TenderTypeCash   TenderType = "cash"
	TenderTypeCard   TenderType = "card"
	TenderTypeCredit TenderType = "credit"
)

// Valid reports whether the tender type is known.
func (t TenderType) Valid() bool {
	switch t {
	case TenderTypeCash, TenderTypeCard, TenderTypeCredit:
		return true
	}
	return false
}

// Sale is a till transaction. Loyalty points and credit used are stored at
// completion so a void reverses the exact recorded amounts instead of
// recomputing them.
type Sale struct {
	ID             int64        `json:"id"`
	CashierID      int64        `json:"cashier_id"`
	CustomerID     int64        `json:"customer_id,omitempty"`
	SoldAt         time.Time    `json:"sold_at"`
	IsHeld         bool         `json:"is_held"`
	TotalAmount    float64      `json:"total_amount"`
	DiscountType   DiscountType `json:"discount_type,omitempty"`
	DiscountValue  float64      `json:"discount_value,omitempty"`
	DiscountAmount float64      `json:"discount_amount"`
	FinalAmount    float64      `json:"final_amount"`
	AmountPaid     float64      `json:"amount_paid"`
	Change         float64      `json:"change"`
	PointsAwarded  int64        `json:"points_awarded"`
	CreditUsed     float64      `json:"credit_used"`
	IsVoided       bool         `json:"is_voided"`
	VoidedAt       time.Time    `json:"voided_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// SaleItem is one sold line, optionally pinned to the batch it was sold from.
type SaleItem struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	ProductID int64   `json:"product_id"`
	BatchID   int64   `json:"batch_id,omitempty"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// SalePayment is one tender applied to the sale.
type SalePayment struct {
	ID           int64      `json:"id"`
	SaleID       int64      `json:"sale_id"`
	Type         TenderType `json:"type"`
	Amount       float64    `json:"amount"`
	CardLastFour string     `json:"card_last_four,omitempty"`
}

// CustomerSnapshot is the slice of customer state sales needs to touch.
type CustomerSnapshot struct {
	ID            int64
	Type          string
	CreditBalance float64
	LoyaltyPoints int64
}

// CustomerTypeLoyalty earns points; wholesale customers do not.
const CustomerTypeLoyalty = "loyalty"

var (
	// ErrNotFound indicates the sale does not exist.
	ErrNotFound = errors.New("sales: not found")
	// ErrAlreadyVoided indicates a second void attempt. Voiding is terminal.
	ErrAlreadyVoided = errors.New("sales: sale already voided")
	// ErrHeldSale indicates an operation not valid for a held sale.
	ErrHeldSale = errors.New("sales: sale is held")
	// ErrNotHeld indicates resume/release on a completed sale.
	ErrNotHeld = errors.New("sales: sale is not held")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("sales: invalid input")
	// ErrInsufficientStock indicates a line would drive batch stock negative.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
)

// PointsForAmount awards one loyalty point per 100 currency units of the
// final amount.
func PointsForAmount(finalAmount float64) int64 {
	if finalAmount <= 0 {
		return 0
	}
	return int64(math.Floor(finalAmount / 100))
}

// ComputeDiscount resolves the discount amount from type and value,
// clamped to the total.
func ComputeDiscount(total float64, kind DiscountType, value float64) float64 {
	var amount float64
	switch kind {
	case DiscountTypePercent:
		amount = total * value / 100
	case DiscountTypeAmount:
		amount = value
	}
	if amount < 0 {
		return 0
	}
	return math.Min(amount, total)
}
