package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sellableBatch(id int64, mrp, selling, wholesale, remaining float64) Batch {
	return Batch{
		ID:             id,
		ProductID:      1,
		ProductPrice:   mrp,
		SellingPrice:   selling,
		WholesalePrice: wholesale,
		Qty:            remaining,
		Remaining:      remaining,
		IsActive:       true,
	}
}

func TestGroupPriceVariantsMergesEqualTriples(t *testing.T) {
	batches := []Batch{
		sellableBatch(1, 100, 90, 80, 5),
		sellableBatch(2, 100, 90, 80, 7),
		sellableBatch(3, 120, 110, 95, 3),
	}

	variants := GroupPriceVariants(batches)
	require.Len(t, variants, 2)

	assert.Equal(t, 100.0, variants[0].ProductPrice)
	assert.Equal(t, 12.0, variants[0].TotalStock)
	require.Len(t, variants[0].Sources, 2)

	assert.Equal(t, 120.0, variants[1].ProductPrice)
	assert.Equal(t, 3.0, variants[1].TotalStock)
}

func TestGroupPriceVariantsRoundsBeforeGrouping(t *testing.T) {
	// 100.004999 and 100.0 both round to 100.00 and must not split
	batches := []Batch{
		sellableBatch(1, 100.004999, 90, 80, 5),
		sellableBatch(2, 100.0, 90.0001, 80, 5),
	}

	variants := GroupPriceVariants(batches)
	require.Len(t, variants, 1)
	assert.Equal(t, 100.0, variants[0].ProductPrice)
	assert.Equal(t, 90.0, variants[0].SellingPrice)
	assert.Equal(t, 10.0, variants[0].TotalStock)
}

func TestGroupPriceVariantsSkipsUnsellable(t *testing.T) {
	exhausted := sellableBatch(1, 100, 90, 80, 0)
	inactive := sellableBatch(2, 100, 90, 80, 5)
	inactive.IsActive = false

	variants := GroupPriceVariants([]Batch{exhausted, inactive})
	assert.Empty(t, variants)
}

func TestGroupPriceVariantsOrdering(t *testing.T) {
	batches := []Batch{
		sellableBatch(1, 150, 140, 120, 1),
		sellableBatch(2, 100, 95, 85, 1),
		sellableBatch(3, 100, 90, 80, 1),
	}

	variants := GroupPriceVariants(batches)
	require.Len(t, variants, 3)
	assert.Equal(t, 100.0, variants[0].ProductPrice)
	assert.Equal(t, 90.0, variants[0].SellingPrice)
	assert.Equal(t, 95.0, variants[1].SellingPrice)
	assert.Equal(t, 150.0, variants[2].ProductPrice)
}

func TestGroupPriceVariantsLabelsLegacyStock(t *testing.T) {
	withGRN := sellableBatch(1, 100, 90, 80, 5)
	withGRN.GRNNumber = "GRN202601020001"
	legacy := sellableBatch(2, 100, 90, 80, 2)

	variants := GroupPriceVariants([]Batch{withGRN, legacy})
	require.Len(t, variants, 1)
	require.Len(t, variants[0].Sources, 2)
	assert.Equal(t, "GRN202601020001", variants[0].Sources[0].GRNNumber)
	assert.Equal(t, InitialStockLabel, variants[0].Sources[1].GRNNumber)
}

func TestHasMultiplePrices(t *testing.T) {
	single := []Batch{
		sellableBatch(1, 100, 90, 80, 5),
		sellableBatch(2, 100.001, 90, 80, 5),
	}
	assert.False(t, HasMultiplePrices(single))

	multi := append(single, sellableBatch(3, 100, 85, 80, 5))
	assert.True(t, HasMultiplePrices(multi))

	// a second tier that is out of stock does not count
	drained := sellableBatch(4, 200, 180, 160, 0)
	assert.False(t, HasMultiplePrices(append(single, drained)))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 100.0, Round2(100.004999))
	assert.Equal(t, 100.01, Round2(100.0051))
	assert.Equal(t, 99.99, Round2(99.994))
	// 100.005 sits just below the midpoint in binary floating point
	assert.Equal(t, 100.0, Round2(100.005))
}
