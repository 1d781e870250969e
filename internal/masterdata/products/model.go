package products

import "time"

// Product is catalog master data. StockQty is a running counter maintained
// transactionally by goods receipt and sale paths and audited nightly
// against the batch ledger. HasMultiplePrices mirrors whether the sellable
// batches span more than one price tier.
type Product struct {
	ID                int64     `json:"id"`
	Barcode           string    `json:"barcode"`
	Name              string    `json:"name"`
	CategoryID        int64     `json:"category_id"`
	SupplierID        int64     `json:"supplier_id,omitempty"`
	StockQty          float64   `json:"stock_qty"`
	HasMultiplePrices bool      `json:"has_multiple_prices"`
	MinPrice          float64   `json:"min_price"`
	MaxPrice          float64   `json:"max_price"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
