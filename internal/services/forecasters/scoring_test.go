package forecasters

import (
	"math"
	"testing"

	"DemandCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	m := Score([]float64{10, 0, 20}, []float64{12, 1, 18})
	assert.True(t, m.Evaluated)
	assert.InDelta(t, math.Sqrt(3), m.RMSE, 1e-9)
	assert.InDelta(t, 5.0/3, m.MAE, 1e-9)
	// zero actual skipped: (20% + 10%) / 2
	assert.InDelta(t, 15.0, m.MAPE, 1e-9)
}

func TestScoreAllZeroActuals(t *testing.T) {
	m := Score([]float64{0, 0}, []float64{1, 1})
	assert.Equal(t, 0.0, m.MAPE)
	assert.InDelta(t, 1.0, m.RMSE, 1e-9)
}

func TestScoreLengthMismatchIsSentinel(t *testing.T) {
	m := Score([]float64{1, 2, 3}, []float64{1, 2})
	assert.True(t, m.IsSentinel())
	assert.Equal(t, models.SentinelMetric, m.MAPE)
}

func TestCleanValue(t *testing.T) {
	cases := map[float64]int{2.5: 2, 3.5: 4, -4.2: 0, 0.49: 0, 7: 7}
	for in, want := range cases {
		got := CleanValue(in)
		if assert.NotNil(t, got) {
			assert.Equal(t, want, *got, in)
		}
	}
	assert.Nil(t, CleanValue(math.NaN()))
	assert.Nil(t, CleanValue(math.Inf(1)))
}

func TestCleanPredictionIdempotent(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	in := []*float64{f(1.6), nil, f(-3), f(12.5), f(math.NaN())}

	once := CleanPrediction(in)
	again := make([]*float64, len(once))
	for i, v := range once {
		if v != nil {
			x := float64(*v)
			again[i] = &x
		}
	}
	twice := CleanPrediction(again)

	assert.Equal(t, once, twice)
	assert.Nil(t, once[1])
	assert.Nil(t, once[4])
	for _, v := range once {
		if v != nil {
			assert.GreaterOrEqual(t, *v, 0)
		}
	}
}
