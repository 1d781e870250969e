package inventory

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Batch models one received lot of a product. Cost and MRP are sourced from
// the originating goods receipt and never change after creation; selling and
// wholesale prices may be edited later.
type Batch struct {
	ID             int64
	ProductID      int64
	SupplierID     int64
	GRNID          int64
	GRNNumber      string
	Number         string
	CostPrice      float64
	ProductPrice   float64
	SellingPrice   float64
	WholesalePrice float64
	Qty            float64
	Remaining      float64
	ManufacturedAt time.Time
	ExpiresAt      time.Time
	ReceivedAt     time.Time
	IsActive       bool
	CreatedAt      time.Time
}

// Sellable reports whether the batch can still feed sales.
func (b Batch) Sellable() bool {
	return b.IsActive && b.Remaining > 0
}

// PriceVariant groups active batches that share the same rounded price tiers.
type PriceVariant struct {
	ProductPrice   float64         `json:"product_price"`
	SellingPrice   float64         `json:"selling_price"`
	WholesalePrice float64         `json:"wholesale_price"`
	TotalStock     float64         `json:"total_stock"`
	Sources        []VariantSource `json:"sources"`
}

// VariantSource identifies one batch contributing stock to a variant.
type VariantSource struct {
	BatchID     int64     `json:"batch_id"`
	BatchNumber string    `json:"batch_number"`
	Remaining   float64   `json:"remaining"`
	ReceivedAt  time.Time `json:"received_at"`
	GRNNumber   string    `json:"grn_number"`
}

// InitialStockLabel is shown for batches that predate goods receipt tracking.
const InitialStockLabel = "Initial Stock"

var (
	// ErrBatchNotFound indicates the batch does not exist.
	ErrBatchNotFound = errors.New("inventory: batch not found")
	// ErrInvalidPrice indicates a non-positive price on a price update.
	ErrInvalidPrice = errors.New("inventory: price must be positive")
	// ErrBatchInactive indicates an operation on a deactivated batch.
	ErrBatchInactive = errors.New("inventory: batch is inactive")
	// ErrInsufficientStock indicates a consume would drive remaining below zero.
	ErrInsufficientStock = errors.New("inventory: insufficient batch stock")
	// ErrValidation indicates malformed input to an operation.
	ErrValidation = errors.New("inventory: validation failed")
)

// Round2 rounds to two decimals. Prices are grouped on the rounded value so
// stored decimal noise does not produce spurious variants.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type priceTriple struct {
	mrp       float64
	selling   float64
	wholesale float64
}

func (b Batch) triple() priceTriple {
	return priceTriple{
		mrp:       Round2(b.ProductPrice),
		selling:   Round2(b.SellingPrice),
		wholesale: Round2(b.WholesalePrice),
	}
}

// GroupPriceVariants groups sellable batches by their rounded
// (MRP, selling, wholesale) triple, summing remaining stock per group.
// Result is ordered ascending by MRP. Inactive or exhausted batches are
// ignored; an empty input yields an empty slice.
func GroupPriceVariants(batches []Batch) []PriceVariant {
	groups := make(map[priceTriple]*PriceVariant)
	for _, b := range batches {
		if !b.Sellable() {
			continue
		}
		key := b.triple()
		v, ok := groups[key]
		if !ok {
			v = &PriceVariant{
				ProductPrice:   key.mrp,
				SellingPrice:   key.selling,
				WholesalePrice: key.wholesale,
			}
			groups[key] = v
		}
		v.TotalStock += b.Remaining
		grnNumber := b.GRNNumber
		if grnNumber == "" {
			grnNumber = InitialStockLabel
		}
		v.Sources = append(v.Sources, VariantSource{
			BatchID:     b.ID,
			BatchNumber: b.Number,
			Remaining:   b.Remaining,
			ReceivedAt:  b.ReceivedAt,
			GRNNumber:   grnNumber,
		})
	}

	variants := make([]PriceVariant, 0, len(groups))
	for _, v := range groups {
		variants = append(variants, *v)
	}
	sort.Slice(variants, func(i, j int) bool {
		if variants[i].ProductPrice != variants[j].ProductPrice {
			return variants[i].ProductPrice < variants[j].ProductPrice
		}
		return variants[i].SellingPrice < variants[j].SellingPrice
	})
	return variants
}

// HasMultiplePrices reports whether sellable batches span more than one
// rounded price triple. This is the canonical rule behind the product
// multi-price flag.
func HasMultiplePrices(batches []Batch) bool {
	seen := make(map[priceTriple]struct{})
	for _, b := range batches {
		if !b.Sellable() {
			continue
		}
		seen[b.triple()] = struct{}{}
		if len(seen) > 1 {
			return true
		}
	}
	return false
}
