package models

type PriceCategory string

const (
	PriceCheap     PriceCategory = "CHEAP"
	PriceMedium    PriceCategory = "MEDIUM"
	PriceExpensive PriceCategory = "EXPENSIVE"
)

type SeasonalityCategory string

const (
	SeasonalityStable       SeasonalityCategory = "STABLE"
	SeasonalitySeasonal     SeasonalityCategory = "SEASONAL"
	SeasonalityIntermittent SeasonalityCategory = "INTERMITTENT"
)

// EntityCharacteristics are fixed for an item for the whole run.
type EntityCharacteristics struct {
	Category            string
	Brand               string
	PriceCategory       PriceCategory
	SeasonalityCategory SeasonalityCategory
}

// DefaultCharacteristics is used for items absent from the classification window.
func DefaultCharacteristics() EntityCharacteristics {
	return EntityCharacteristics{PriceCategory: PriceMedium, SeasonalityCategory: SeasonalityStable}
}

// SeriesStatDescriptors summarise the training slice of one entity.
type SeriesStatDescriptors struct {
	TrendStrength         float64
	WeeklyAutocorrelation float64
	IsStationary          bool
	IntermittencyRatio    float64
}

// IntermittencyThreshold is the zero-day fraction above which demand counts as intermittent.
const IntermittencyThreshold = 0.3

func (d SeriesStatDescriptors) Intermittent() bool {
	return d.IntermittencyRatio > IntermittencyThreshold
}
