package features

import (
	"math"

	"DemandCast/internal/domain/models"
)

// StationarityLevel is the significance level of the unit-root test.
const StationarityLevel = 0.05

// Characterize computes descriptors of a series. Callers pass the training slice only.
func Characterize(s models.DenseSeries) models.SeriesStatDescriptors {
	x := s.Values()
	return models.SeriesStatDescriptors{
		TrendStrength:         math.Abs(TrendCorrelation(x)),
		WeeklyAutocorrelation: math.Abs(Autocorrelation(x, 7)),
		IsStationary:          isStationary(x),
		IntermittencyRatio:    ZeroRatio(x),
	}
}

// isStationary treats any numerical failure of the test as non-stationary.
func isStationary(x []float64) bool {
	res, err := ADF(x)
	if err != nil || math.IsNaN(res.PValue) {
		return false
	}
	return res.PValue < StationarityLevel
}
