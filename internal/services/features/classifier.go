package features

import (
	"sort"
	"time"

	"DemandCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

const (
	cheapQuantile     = 0.33
	mediumQuantile    = 0.66
	stableCVCeiling   = 0.3
	seasonalCVCeiling = 0.8
)

// Classify derives per-item characteristics from the classification window.
// Price classes come from global terciles of each item's median unit price; seasonality
// from the coefficient of variation of quantity totals per month of the year, so the same
// calendar month in two years lands in one bucket.
func Classify(rows []models.RawSalesRow) map[int64]models.EntityCharacteristics {
	type itemAgg struct {
		category string
		brand    string
		prices   []float64
		monthly  map[time.Month]float64
	}

	items := make(map[int64]*itemAgg)
	for _, r := range rows {
		a, ok := items[r.ItemID]
		if !ok {
			a = &itemAgg{category: r.Category, brand: r.Brand, monthly: make(map[time.Month]float64)}
			items[r.ItemID] = a
		}
		if r.UnitPrice > 0 {
			a.prices = append(a.prices, r.UnitPrice)
		}
		a.monthly[r.Date.Month()] += r.Quantity
	}

	medians := make(map[int64]float64, len(items))
	all := make([]float64, 0, len(items))
	for id, a := range items {
		if len(a.prices) == 0 {
			continue
		}
		m := Quantile(a.prices, 0.5)
		medians[id] = m
		all = append(all, m)
	}
	q33 := Quantile(all, cheapQuantile)
	q66 := Quantile(all, mediumQuantile)

	out := make(map[int64]models.EntityCharacteristics, len(items))
	for id, a := range items {
		c := models.EntityCharacteristics{Category: a.category, Brand: a.brand}

		if m, ok := medians[id]; ok && len(all) > 0 {
			switch {
			case m <= q33:
				c.PriceCategory = models.PriceCheap
			case m <= q66:
				c.PriceCategory = models.PriceMedium
			default:
				c.PriceCategory = models.PriceExpensive
			}
		} else {
			c.PriceCategory = models.PriceMedium
		}

		totals := make([]float64, 0, len(a.monthly))
		for _, v := range a.monthly {
			totals = append(totals, v)
		}
		c.SeasonalityCategory = SeasonalityOf(totals)
		out[id] = c
	}
	return out
}

// SeasonalityOf buckets monthly totals by their coefficient of variation, using the sample
// standard deviation. A non-positive mean counts as cv 0 (STABLE); a single month leaves
// the CV undefined, which falls into INTERMITTENT.
func SeasonalityOf(monthly []float64) models.SeasonalityCategory {
	if len(monthly) == 0 || stat.Mean(monthly, nil) <= 0 {
		return models.SeasonalityStable
	}
	if len(monthly) < 2 {
		return models.SeasonalityIntermittent
	}
	mean, std := stat.MeanStdDev(monthly, nil)
	cv := std / mean
	switch {
	case cv < stableCVCeiling:
		return models.SeasonalityStable
	case cv < seasonalCVCeiling:
		return models.SeasonalitySeasonal
	default:
		return models.SeasonalityIntermittent
	}
}

// Quantile uses linear interpolation between order statistics at (n-1)·p.
func Quantile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	pos := p * float64(len(s)-1)
	lo := int(pos)
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	frac := pos - float64(lo)
	return s[lo] + frac*(s[lo+1]-s[lo])
}
