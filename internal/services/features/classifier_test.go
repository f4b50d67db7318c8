package features

import (
	"testing"

	"DemandCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPriceTerciles(t *testing.T) {
	prices := map[int64]float64{1: 1, 2: 1, 3: 1, 4: 10, 5: 10, 6: 10, 7: 100, 8: 100, 9: 100}
	var rows []models.RawSalesRow
	for id, p := range prices {
		for m := 1; m <= 3; m++ {
			rows = append(rows, models.RawSalesRow{
				Date: day(2024, 1, 1).AddDate(0, m-1, 0), ItemID: id, StoreID: 1,
				Quantity: 100, UnitPrice: p, Category: "c", Brand: "b",
			})
		}
	}

	got := Classify(rows)
	require.Len(t, got, 9)
	assert.Equal(t, models.PriceCheap, got[1].PriceCategory)
	assert.Equal(t, models.PriceMedium, got[5].PriceCategory)
	assert.Equal(t, models.PriceExpensive, got[9].PriceCategory)
	assert.Equal(t, models.SeasonalityStable, got[1].SeasonalityCategory)
	assert.Equal(t, "c", got[1].Category)
}

func TestClassifyItemWithoutPrice(t *testing.T) {
	rows := []models.RawSalesRow{
		{Date: day(2024, 1, 1), ItemID: 1, Quantity: 1, UnitPrice: 0},
		{Date: day(2024, 2, 1), ItemID: 1, Quantity: 1, UnitPrice: 0},
	}
	got := Classify(rows)
	assert.Equal(t, models.PriceMedium, got[1].PriceCategory)
}

func TestSeasonalityOf(t *testing.T) {
	assert.Equal(t, models.SeasonalityStable, SeasonalityOf([]float64{100, 150, 100, 150}))
	assert.Equal(t, models.SeasonalitySeasonal, SeasonalityOf([]float64{50, 150, 50, 150}))
	assert.Equal(t, models.SeasonalityIntermittent, SeasonalityOf([]float64{10, 100, 50, 200}))
	assert.Equal(t, models.SeasonalityStable, SeasonalityOf([]float64{0, 0}))
	assert.Equal(t, models.SeasonalityStable, SeasonalityOf(nil))
	assert.Equal(t, models.SeasonalityIntermittent, SeasonalityOf([]float64{42}))
}

func TestQuantileLinear(t *testing.T) {
	x := []float64{4, 1, 3, 2}
	assert.Equal(t, 1.0, Quantile(x, 0))
	assert.Equal(t, 4.0, Quantile(x, 1))
	assert.InDelta(t, 2.5, Quantile(x, 0.5), 1e-12)
	assert.InDelta(t, 1.99, Quantile(x, 0.33), 1e-12)
	assert.Zero(t, Quantile(nil, 0.5))
}

func TestClassifyGroupsByMonthOfYear(t *testing.T) {
	rows := []models.RawSalesRow{
		{Date: day(2023, 1, 10), ItemID: 1, Quantity: 100, UnitPrice: 5},
		{Date: day(2023, 2, 10), ItemID: 1, Quantity: 100, UnitPrice: 5},
		{Date: day(2024, 1, 10), ItemID: 1, Quantity: 100, UnitPrice: 5},
	}
	// January sums across both years: totals {200, 100}, cv ≈ 0.47
	got := Classify(rows)
	assert.Equal(t, models.SeasonalitySeasonal, got[1].SeasonalityCategory)
}

func TestClassifyZeroSalesItemIsStable(t *testing.T) {
	rows := []models.RawSalesRow{
		{Date: day(2024, 3, 1), ItemID: 4, Quantity: 0, UnitPrice: 2},
		{Date: day(2024, 4, 1), ItemID: 4, Quantity: 0, UnitPrice: 2},
	}
	assert.Equal(t, models.SeasonalityStable, Classify(rows)[4].SeasonalityCategory)
}
