package forecasters

import (
	"math"

	"DemandCast/internal/domain/models"

	"gonum.org/v1/gonum/floats"
)

// Score computes backtest accuracy. MAPE is a percentage over non-zero actuals and is 0
// when every actual is zero.
func Score(actual, predicted []float64) models.Metrics {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return models.SentinelMetrics()
	}

	rmse := floats.Distance(actual, predicted, 2) / math.Sqrt(float64(n))
	mae := floats.Distance(actual, predicted, 1) / float64(n)

	var apeSum float64
	var nonZero int
	for i, a := range actual {
		if a == 0 {
			continue
		}
		apeSum += math.Abs((a - predicted[i]) / a)
		nonZero++
	}
	mape := 0.0
	if nonZero > 0 {
		mape = apeSum / float64(nonZero) * 100
	}

	m := models.Metrics{RMSE: rmse, MAPE: mape, MAE: mae, Evaluated: true}
	if !finite(m.MAPE) {
		m.MAPE = 0
	}
	if !finite(m.RMSE) {
		m.RMSE = models.SentinelMetric
	}
	if !finite(m.MAE) {
		m.MAE = models.SentinelMetric
	}
	return m
}

// CleanValue rounds half to even and clamps at zero. NaN and Inf become nil.
func CleanValue(v float64) *int {
	if !finite(v) {
		return nil
	}
	r := int(math.Max(0, math.RoundToEven(v)))
	return &r
}

// CleanPrediction cleans a whole forecast; nil entries stay nil.
func CleanPrediction(values []*float64) []*int {
	out := make([]*int, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = CleanValue(*v)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
