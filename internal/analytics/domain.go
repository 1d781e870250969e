// Package analytics computes dashboard figures and sales reports.
package analytics

import "time"

// Dashboard is the till-manager home screen snapshot. All sale figures
// exclude held and voided sales.
type Dashboard struct {
	Date               string             `json:"date"`
	SalesTotal         float64            `json:"sales_total"`
	SalesCount         int64              `json:"sales_count"`
	AverageSale        float64            `json:"average_sale"`
	PaymentMix         map[string]float64 `json:"payment_mix"`
	LowStockCount      int64              `json:"low_stock_count"`
	SupplierCreditOwed float64            `json:"supplier_credit_owed"`
	TopProducts        []ProductSales     `json:"top_products"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// ProductSales is one row in the top sellers table.
type ProductSales struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Qty         float64 `json:"qty"`
	Total       float64 `json:"total"`
}

// SalesReportRow is one day in the period sales report.
type SalesReportRow struct {
	Date       string  `json:"date"`
	SalesTotal float64 `json:"sales_total"`
	SalesCount int64   `json:"sales_count"`
	Discount   float64 `json:"discount"`
}
