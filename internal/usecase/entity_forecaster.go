package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DemandCast/internal/domain/models"
	domsvc "DemandCast/internal/domain/service"
	"DemandCast/internal/services/features"
	"DemandCast/internal/services/forecasters"
	"DemandCast/pkg/logger"
)

// EntityState is where one entity ended up in the forecasting state machine.
type EntityState string

const (
	StateInsufficientHistory  EntityState = "INSUFFICIENT_HISTORY"
	StateBacktestEligible     EntityState = "BACKTEST_ELIGIBLE"
	StateTrainOnly            EntityState = "TRAIN_ONLY"
	StateCandidatesEvaluated  EntityState = "CANDIDATES_EVALUATED"
	StateResultEmitted        EntityState = "RESULT_EMITTED"
	StateNoCandidateSucceeded EntityState = "NO_CANDIDATE_SUCCEEDED"
)

// AdapterSource resolves a technique to its adapter.
type AdapterSource interface {
	Adapter(t models.Technique) (domsvc.ModelAdapter, bool)
}

// EntityOutcome is the side-effect-free result of forecasting one entity.
type EntityOutcome struct {
	Key        models.EntityKey
	State      EntityState
	Mode       EntityState // BACKTEST_ELIGIBLE or TRAIN_ONLY once the split is decided
	Ranked     []models.Technique
	Candidates []models.CandidateResult
	Winner     models.Technique
	Metrics    models.Metrics
	Results    []models.ForecastResult
	Err        error
}

// Skipped reports a terminal state with no result.
func (o EntityOutcome) Skipped() bool {
	return o.State == StateInsufficientHistory || o.State == StateNoCandidateSucceeded
}

type EntityForecaster struct {
	preparer     *features.SeriesPreparer
	selector     *ModelSelector
	adapters     AdapterSource
	modelVersion string
	timeout      time.Duration
	log          *logger.Logger
}

type EntityForecasterOption func(*EntityForecaster)

// WithEntityTimeout bounds the wall-clock time of one entity. Zero disables it.
func WithEntityTimeout(d time.Duration) EntityForecasterOption {
	return func(f *EntityForecaster) { f.timeout = d }
}

func WithModelVersion(v string) EntityForecasterOption {
	return func(f *EntityForecaster) { f.modelVersion = v }
}

func NewEntityForecaster(
	preparer *features.SeriesPreparer,
	selector *ModelSelector,
	adapters AdapterSource,
	log *logger.Logger,
	opts ...EntityForecasterOption,
) *EntityForecaster {
	f := &EntityForecaster{
		preparer: preparer,
		selector: selector,
		adapters: adapters,
		log:      log,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Forecast runs the full state machine for one entity from its raw rows.
func (f *EntityForecaster) Forecast(ctx context.Context, key models.EntityKey, rows []models.RawSalesRow, ch models.EntityCharacteristics, horizon int) EntityOutcome {
	series, err := f.preparer.Prepare(key, rows)
	if err != nil {
		return EntityOutcome{Key: key, State: StateInsufficientHistory, Err: err}
	}
	return f.ForecastSeries(ctx, series, ch, horizon)
}

// ForecastSeries runs the state machine on an already dense series.
func (f *EntityForecaster) ForecastSeries(ctx context.Context, series models.DenseSeries, ch models.EntityCharacteristics, horizon int) EntityOutcome {
	out := EntityOutcome{Key: series.Key}
	L := series.Len()
	if L < f.preparer.MinHistory {
		out.State = StateInsufficientHistory
		out.Err = fmt.Errorf("%w: %s has %d days", models.ErrInsufficientHistory, series.Key, L)
		return out
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	backtest := L >= 2*horizon
	train := series
	var test models.DenseSeries
	out.Mode = StateTrainOnly
	if backtest {
		train, test = series.Head(L-horizon), series.Tail(horizon)
		out.Mode = StateBacktestEligible
	}

	desc := features.Characterize(train)
	out.Ranked = f.selector.Recommend(ch, desc)

	dates := series.FutureDates(horizon)
	for _, t := range out.Ranked {
		out.Candidates = append(out.Candidates, f.runCandidate(ctx, t, series, train, test, backtest, horizon, dates))
	}
	out.State = StateCandidatesEvaluated

	winner, ok := pickWinner(out.Candidates, horizon, backtest)
	if !ok {
		out.State = StateNoCandidateSucceeded
		out.Err = fmt.Errorf("%w: %s tried %v", models.ErrNoCandidateSucceeded, series.Key, out.Ranked)
		if ctxErr := ctx.Err(); ctxErr != nil {
			out.Err = errors.Join(out.Err, ctxErr)
		}
		return out
	}

	out.Winner = winner.Technique
	out.Metrics = winner.Metrics
	out.Results = f.assemble(series, ch, winner, out.Candidates, dates)
	out.State = StateResultEmitted
	return out
}

func (f *EntityForecaster) runCandidate(
	ctx context.Context,
	t models.Technique,
	full, train, test models.DenseSeries,
	backtest bool,
	horizon int,
	dates []time.Time,
) models.CandidateResult {
	c := models.CandidateResult{Technique: t}
	a, ok := f.adapters.Adapter(t)
	if !ok {
		c.Err = fmt.Errorf("%s: technique unavailable", t)
		return c
	}

	if backtest {
		_, fc, err := a.FitPredict(ctx, train, horizon)
		if err != nil || len(fc) != horizon {
			c.Metrics = models.SentinelMetrics()
			f.log.Debug("backtest failed",
				logger.String("entity", full.Key.String()),
				logger.String("technique", string(t)),
				logger.Error(err),
			)
		} else {
			c.Metrics = forecasters.Score(test.Values(), fc)
		}
	}

	// the production forecast always refits on the full series
	artifact, fc, err := a.FitPredict(ctx, full, horizon)
	if err != nil {
		c.Err = err
		return c
	}
	c.Artifact = artifact
	c.Prediction = make([]models.DatedValue, len(fc))
	for i, v := range fc {
		c.Prediction[i] = models.DatedValue{Date: dates[i], Value: v}
	}
	return c
}

// pickWinner takes the lowest RMSE among usable candidates, first in ranked order on
// ties. Without a backtest it takes the first usable candidate.
func pickWinner(cands []models.CandidateResult, horizon int, backtest bool) (models.CandidateResult, bool) {
	var best models.CandidateResult
	found := false
	for _, c := range cands {
		if !c.Usable(horizon) {
			continue
		}
		if !backtest {
			return c, true
		}
		if !found || c.Metrics.RMSE < best.Metrics.RMSE {
			best, found = c, true
		}
	}
	return best, found
}

func (f *EntityForecaster) assemble(
	series models.DenseSeries,
	ch models.EntityCharacteristics,
	winner models.CandidateResult,
	cands []models.CandidateResult,
	dates []time.Time,
) []models.ForecastResult {
	cleaned := make(map[models.Technique][]*int, len(cands))
	for _, c := range cands {
		if !c.Usable(len(dates)) {
			continue
		}
		raw := make([]*float64, len(c.Prediction))
		for i := range c.Prediction {
			raw[i] = &c.Prediction[i].Value
		}
		cleaned[c.Technique] = forecasters.CleanPrediction(raw)
	}

	category, brand := ch.Category, ch.Brand
	if category == "" {
		category = series.Category
	}
	if brand == "" {
		brand = series.Brand
	}

	best := cleaned[winner.Technique]
	rows := make([]models.ForecastResult, len(dates))
	for i, d := range dates {
		preds := make(map[models.Technique]*int, len(cleaned))
		for t, p := range cleaned {
			preds[t] = p[i]
		}
		bp := 0
		if best[i] != nil {
			bp = *best[i]
		}
		rows[i] = models.ForecastResult{
			Key:            series.Key,
			ForecastDate:   d,
			BestModel:      winner.Technique,
			BestPrediction: bp,
			Predictions:    preds,
			Metrics:        winner.Metrics,
			Category:       category,
			Brand:          brand,
			ModelVersion:   f.modelVersion,
		}
	}
	return rows
}
