package usecase

import (
	"fmt"
	"math"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/internal/services/features"

	"gonum.org/v1/gonum/stat"
)

// RunStats accumulates one run's counters. It is owned by the batch coordinator and is
// not safe for concurrent use.
type RunStats struct {
	total      int
	completed  int
	successful int
	failed     int
	skipped    int
	byModel    map[models.Technique]int
	byStore    map[int64]models.StoreAggregate
	errors     []models.RunIssue
	warnings   []string
	mape       []float64
	rmse       []float64
	mae        []float64
	batchTimes []time.Duration
}

func NewRunStats(total int) *RunStats {
	return &RunStats{
		total:   total,
		byModel: make(map[models.Technique]int),
		byStore: make(map[int64]models.StoreAggregate),
	}
}

func (s *RunStats) Completed() int { return s.completed }

// mergeBatch folds one batch outcome into the counters. A failed batch counts all of
// its entities as completed and failed.
func (s *RunStats) mergeBatch(b batchOutcome) {
	s.batchTimes = append(s.batchTimes, b.elapsed)
	if b.err != nil {
		s.completed += len(b.keys)
		s.failed += len(b.keys)
		s.errors = append(s.errors, models.RunIssue{Batch: b.index, Error: b.err.Error()})
		s.warnings = append(s.warnings, fmt.Sprintf("batch %d failed: %d entities not forecast", b.index, len(b.keys)))
		return
	}

	for _, o := range b.entities {
		s.completed++
		switch o.State {
		case StateResultEmitted:
			s.successful++
			s.byModel[o.Winner]++
			if o.Metrics.Evaluated && !o.Metrics.IsSentinel() {
				s.mape = append(s.mape, o.Metrics.MAPE)
				s.rmse = append(s.rmse, o.Metrics.RMSE)
				s.mae = append(s.mae, o.Metrics.MAE)
				agg := s.byStore[o.Key.StoreID]
				agg.Total++
				agg.MAPESum += o.Metrics.MAPE
				s.byStore[o.Key.StoreID] = agg
			}
		case StateFailed:
			s.failed++
			s.errors = append(s.errors, models.RunIssue{Batch: b.index, Entity: o.Key.String(), Error: errString(o.Err)})
		case StateNoCandidateSucceeded:
			s.skipped++
			s.errors = append(s.errors, models.RunIssue{Batch: b.index, Entity: o.Key.String(), Error: errString(o.Err)})
		default:
			s.skipped++
		}
	}
	// entities the batch never reached, e.g. a fetch error midway
	if missing := len(b.keys) - len(b.entities); missing > 0 {
		s.completed += missing
		s.failed += missing
	}
}

// Summary renders the terminal report.
func (s *RunStats) Summary() models.RunSummary {
	out := models.RunSummary{
		TotalItems: s.total,
		Successful: s.successful,
		Failed:     s.failed,
		Skipped:    s.skipped,
		ByModel:    make(map[models.Technique]int, len(s.byModel)),
		ByStore:    make(map[int64]models.StoreAggregate, len(s.byStore)),
		Errors:     append([]models.RunIssue(nil), s.errors...),
		Warnings:   append([]string(nil), s.warnings...),
	}
	for k, v := range s.byModel {
		out.ByModel[k] = v
	}
	for k, v := range s.byStore {
		out.ByStore[k] = v
	}
	if len(s.mape) > 0 {
		out.AvgMAPE, out.StdMAPE = popMeanStd(s.mape)
		out.MedianMAPE = features.Quantile(s.mape, 0.5)
		out.AvgRMSE = stat.Mean(s.rmse, nil)
		out.AvgMAE = stat.Mean(s.mae, nil)
	}
	if len(s.batchTimes) > 0 {
		var sum time.Duration
		for _, d := range s.batchTimes {
			sum += d
		}
		out.AvgBatchTime = sum / time.Duration(len(s.batchTimes))
	}
	return out
}

func popMeanStd(x []float64) (float64, float64) {
	mean, variance := stat.PopMeanVariance(x, nil)
	return mean, math.Sqrt(math.Max(0, variance))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
