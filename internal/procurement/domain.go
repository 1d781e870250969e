package procurement

import (
	"errors"
	"math"
	"time"
)

// Payment settlement states for a goods receipt.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Supported supplier payment instruments.
type PaymentType string

const (
	PaymentTypeCash         PaymentType = "cash"
	PaymentTypeCheque       PaymentType = "cheque"
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
)

// Valid reports whether the payment type is one of the known instruments.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeCash, PaymentTypeCheque, PaymentTypeBankTransfer:
		return true
	}
	return false
}

// GRN is a goods received note header. Total is fixed at creation; the
// payment fields are derived from the payment records and rewritten on every
// reconciliation.
type GRN struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	SupplierID    int64         `json:"supplier_id"`
	ReceivedBy    int64         `json:"received_by"`
	ReceivedAt    time.Time     `json:"received_at"`
	Notes         string        `json:"notes"`
	TotalAmount   float64       `json:"total_amount"`
	PaidAmount    float64       `json:"paid_amount"`
	CreditAmount  float64       `json:"credit_amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// GRNItem is one received line. Items are immutable once created.
type GRNItem struct {
	ID             int64     `json:"id"`
	GRNID          int64     `json:"grn_id"`
	ProductID      int64     `json:"product_id"`
	BatchNumber    string    `json:"batch_number"`
	Qty            float64   `json:"qty"`
	CostPrice      float64   `json:"cost_price"`
	ProductPrice   float64   `json:"product_price"`
	SellingPrice   float64   `json:"selling_price"`
	WholesalePrice float64   `json:"wholesale_price"`
	ManufacturedAt time.Time `json:"manufactured_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// GRNPayment is an append-only supplier payment record.
type GRNPayment struct {
	ID           int64       `json:"id"`
	GRNID        int64       `json:"grn_id"`
	PaidAt       time.Time   `json:"paid_at"`
	Type         PaymentType `json:"type"`
	Amount       float64     `json:"amount"`
	ChequeNumber string      `json:"cheque_number,omitempty"`
	ChequeDate   time.Time   `json:"cheque_date,omitempty"`
	Notes        string      `json:"notes"`
	RecordedBy   int64       `json:"recorded_by"`
}

// Reconciliation is the derived payment summary of a goods receipt.
type Reconciliation struct {
	Status       PaymentStatus `json:"status"`
	PaidAmount   float64       `json:"paid_amount"`
	CreditAmount float64       `json:"credit_amount"`
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("procurement: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrOverpayment indicates a payment would exceed the receipt total.
	ErrOverpayment = errors.New("procurement: payment exceeds outstanding amount")
)

// DerivePaymentStatus applies the three-way settlement rule. Credit is the
// outstanding amount, clamped at zero so overpayment never reports negative.
func DerivePaymentStatus(total, paid float64) Reconciliation {
	rec := Reconciliation{
		PaidAmount:   paid,
		CreditAmount: math.Max(total-paid, 0),
	}
	switch {
	case paid >= total:
		rec.Status = PaymentStatusPaid
	case paid > 0:
		rec.Status = PaymentStatusPartial
	default:
		rec.Status = PaymentStatusUnpaid
	}
	return rec
}

// SumPayments totals the recorded payment amounts.
func SumPayments(payments []GRNPayment) float64 {
	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}
