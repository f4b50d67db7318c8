package features

import (
	"math"
	"math/rand"
	"testing"

	"DemandCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(x []float64) models.DenseSeries {
	key := models.EntityKey{ItemID: 1, StoreID: 1}
	return Densify(key, dailyRows(key, day(2024, 1, 1), x))
}

func TestCharacterizeWeeklyPattern(t *testing.T) {
	x := make([]float64, 140)
	for i := range x {
		x[i] = 10
		if i%7 >= 5 {
			x[i] = 25
		}
	}
	d := Characterize(seriesOf(x))
	assert.Greater(t, d.WeeklyAutocorrelation, 0.8)
	assert.Less(t, d.TrendStrength, 0.1)
	assert.Zero(t, d.IntermittencyRatio)
	assert.False(t, d.Intermittent())
}

func TestCharacterizeTrendAndIntermittency(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		if i%2 == 0 {
			x[i] = float64(i)
		}
	}
	d := Characterize(seriesOf(x))
	assert.InDelta(t, 0.51, d.IntermittencyRatio, 1e-9)
	assert.True(t, d.Intermittent())
	assert.Greater(t, d.TrendStrength, 0.35)
	assert.LessOrEqual(t, d.TrendStrength, 1.0)
}

func TestCharacterizeConstantSeriesIsSafe(t *testing.T) {
	x := make([]float64, 90)
	for i := range x {
		x[i] = 4
	}
	d := Characterize(seriesOf(x))
	assert.Zero(t, d.TrendStrength)
	assert.Zero(t, d.WeeklyAutocorrelation)
	assert.False(t, d.IsStationary)
}

func TestADFWhiteNoiseIsStationary(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	x := make([]float64, 200)
	for i := range x {
		x[i] = 20 + 5*r.NormFloat64()
	}
	res, err := ADF(x)
	require.NoError(t, err)
	assert.Less(t, res.Statistic, -3.5)
	assert.Less(t, res.PValue, StationarityLevel)
	assert.Equal(t, 5, res.Lags)
	assert.True(t, Characterize(seriesOf(x)).IsStationary)
}

func TestADFFailureDefaultsToNonStationary(t *testing.T) {
	ramp := make([]float64, 80)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	assert.False(t, isStationary(ramp))
	assert.False(t, isStationary([]float64{1, 2, 3}))
}

func TestMacKinnonPValue(t *testing.T) {
	assert.InDelta(t, 0.05, MacKinnonPValue(-2.86), 0.003)
	assert.InDelta(t, 0.01, MacKinnonPValue(-3.43), 0.002)
	assert.Greater(t, MacKinnonPValue(0), 0.5)
	assert.Equal(t, 0.0, MacKinnonPValue(-25))
	assert.Equal(t, 1.0, MacKinnonPValue(3))
	assert.Equal(t, 1.0, MacKinnonPValue(math.NaN()))
}

func TestAutocorrelationBounds(t *testing.T) {
	assert.Zero(t, Autocorrelation([]float64{1, 2}, 7))
	assert.Zero(t, Autocorrelation([]float64{1, 2, 3}, 0))
}

func TestAutocorrelationMatchesDirectSum(t *testing.T) {
	x := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9}
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var num, denom float64
	for i, v := range x {
		denom += (v - mean) * (v - mean)
		if i >= 7 {
			num += (v - mean) * (x[i-7] - mean)
		}
	}
	assert.InDelta(t, num/denom, Autocorrelation(x, 7), 1e-12)
	assert.Zero(t, Autocorrelation([]float64{4, 4, 4, 4, 4, 4, 4, 4, 4}, 7))
}

func TestMacKinnonPValueIsContinuousBetweenCriticalValues(t *testing.T) {
	// tau between the 1% and 5% critical values must still reject at 5%.
	p := MacKinnonPValue(-3.2)
	assert.Less(t, p, 0.05)
	assert.Greater(t, p, 0.01)
	assert.Less(t, MacKinnonPValue(-3.4), MacKinnonPValue(-2.9))
}
