package usecase

import (
	"context"
	"testing"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccuracy struct {
	obs []models.AccuracyObservation
}

func (f fakeAccuracy) ForecastVsActual(context.Context, time.Time, time.Time) ([]models.AccuracyObservation, error) {
	return f.obs, nil
}

func observation(day int, predicted, actual float64, m models.Technique) models.AccuracyObservation {
	return models.AccuracyObservation{
		Key:       models.EntityKey{ItemID: 1, StoreID: 1},
		Date:      day0.AddDate(0, 0, day),
		Predicted: predicted,
		Actual:    actual,
		Model:     m,
	}
}

func TestAccuracyReportPerDay(t *testing.T) {
	obs := []models.AccuracyObservation{
		observation(0, 9, 10, models.TechniqueARIMA),    // 10%
		observation(0, 15, 10, models.TechniqueARIMA),   // 50%
		observation(0, 4, 0, models.TechniqueProphet),   // zero actual: MAE only
		observation(1, 20, 20, models.TechniqueProphet), // 0%
	}
	rep := BuildAccuracyReport(obs, day0, day0.AddDate(0, 0, 1))

	require.Len(t, rep.Daily, 2)
	d := rep.Daily[0]
	assert.Equal(t, 3, d.Observations)
	assert.InDelta(t, 30, d.MAPE, 1e-9)
	assert.InDelta(t, 10.0/3, d.MAE, 1e-9)
	assert.InDelta(t, 50, d.Within20Pct, 1e-9)
	assert.InDelta(t, 100, rep.Daily[1].Within20Pct, 1e-9)

	assert.InDelta(t, 20, rep.OverallMAPE, 1e-9)
	assert.InDelta(t, 30, rep.ByModel[models.TechniqueARIMA], 1e-9)
	assert.InDelta(t, 0, rep.ByModel[models.TechniqueProphet], 1e-9)
	assert.False(t, rep.DriftDetected)
}

func TestAccuracyDrift(t *testing.T) {
	var obs []models.AccuracyObservation
	for d := 0; d < 28; d++ {
		pred := 11.0 // 10% error
		if d >= 14 {
			pred = 12 // 20% error in the recent fortnight
		}
		obs = append(obs, observation(d, pred, 10, models.TechniqueHoltWinters))
	}
	rep := BuildAccuracyReport(obs, day0, day0.AddDate(0, 0, 27))

	assert.InDelta(t, 20, rep.RecentMAPE, 1e-9)
	assert.InDelta(t, 10, rep.BaselineMAPE, 1e-9)
	assert.True(t, rep.DriftDetected)
}

func TestAccuracyTrackerRejectsInvertedWindow(t *testing.T) {
	tr := NewAccuracyTracker(fakeAccuracy{}, logger.Nop())
	_, err := tr.Report(context.Background(), day0, day0.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestAccuracyTrackerEmptyWindow(t *testing.T) {
	tr := NewAccuracyTracker(fakeAccuracy{}, logger.Nop())
	rep, err := tr.Report(context.Background(), day0, day0.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, rep.Daily)
	assert.False(t, rep.DriftDetected)
}
