package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	"DemandCast/pkg/logger"

	"gonum.org/v1/gonum/stat"
)

const (
	driftWindow = 14 * 24 * time.Hour
	driftFactor = 1.3
	withinBand  = 0.2
)

// AccuracyTracker compares stored forecasts with realized sales.
type AccuracyTracker struct {
	source domrepo.AccuracySource
	log    *logger.Logger
}

func NewAccuracyTracker(source domrepo.AccuracySource, log *logger.Logger) *AccuracyTracker {
	return &AccuracyTracker{source: source, log: log}
}

func (t *AccuracyTracker) Report(ctx context.Context, from, to time.Time) (*models.AccuracyReport, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: window ends before it starts", models.ErrInvalidRequest)
	}
	obs, err := t.source.ForecastVsActual(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load forecast vs actual: %w", err)
	}
	rep := BuildAccuracyReport(obs, from, to)
	t.log.Info("accuracy report built",
		logger.Int("observations", len(obs)),
		logger.Int("days", len(rep.Daily)),
		logger.Float64("overall_mape", rep.OverallMAPE),
		logger.Bool("drift", rep.DriftDetected))
	return rep, nil
}

type errAcc struct {
	n, pctN, within int
	absSum, pctSum  float64
}

func (a *errAcc) add(o models.AccuracyObservation) {
	diff := math.Abs(o.Actual - o.Predicted)
	a.n++
	a.absSum += diff
	if o.Actual > 0 {
		rel := diff / o.Actual
		a.pctN++
		a.pctSum += rel * 100
		if rel <= withinBand {
			a.within++
		}
	}
}

func (a *errAcc) mape() float64 {
	if a.pctN == 0 {
		return 0
	}
	return a.pctSum / float64(a.pctN)
}

// BuildAccuracyReport aggregates observations per date and per model. MAPE and the
// within-20% share only count rows with a positive actual.
func BuildAccuracyReport(obs []models.AccuracyObservation, from, to time.Time) *models.AccuracyReport {
	byDate := map[time.Time]*errAcc{}
	byModel := map[models.Technique]*errAcc{}
	var overall errAcc
	for _, o := range obs {
		d := o.Date.UTC().Truncate(24 * time.Hour)
		if byDate[d] == nil {
			byDate[d] = &errAcc{}
		}
		byDate[d].add(o)
		if byModel[o.Model] == nil {
			byModel[o.Model] = &errAcc{}
		}
		byModel[o.Model].add(o)
		overall.add(o)
	}

	rep := &models.AccuracyReport{
		From:        from,
		To:          to,
		ByModel:     make(map[models.Technique]float64, len(byModel)),
		OverallMAPE: overall.mape(),
	}
	for m, a := range byModel {
		rep.ByModel[m] = a.mape()
	}
	for d, a := range byDate {
		day := models.DailyAccuracy{Date: d, Observations: a.n, MAPE: a.mape(), MAE: a.absSum / float64(a.n)}
		if a.pctN > 0 {
			day.Within20Pct = float64(a.within) / float64(a.pctN) * 100
		}
		rep.Daily = append(rep.Daily, day)
	}
	sort.Slice(rep.Daily, func(i, j int) bool { return rep.Daily[i].Date.Before(rep.Daily[j].Date) })

	rep.RecentMAPE, rep.BaselineMAPE, rep.DriftDetected = detectDrift(rep.Daily)
	return rep
}

// detectDrift compares the mean daily MAPE of the last two weeks with the days before.
func detectDrift(daily []models.DailyAccuracy) (recent, baseline float64, drift bool) {
	if len(daily) == 0 {
		return 0, 0, false
	}
	cut := daily[len(daily)-1].Date.Add(-driftWindow)
	var rec, base []float64
	for _, d := range daily {
		if d.Date.After(cut) {
			rec = append(rec, d.MAPE)
		} else {
			base = append(base, d.MAPE)
		}
	}
	if len(rec) == 0 || len(base) == 0 {
		return 0, 0, false
	}
	recent, baseline = stat.Mean(rec, nil), stat.Mean(base, nil)
	return recent, baseline, baseline > 0 && recent > driftFactor*baseline
}
