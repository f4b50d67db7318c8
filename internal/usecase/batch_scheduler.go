package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	"DemandCast/pkg/logger"
	"DemandCast/pkg/otel"
)

// StateFailed marks an entity whose history could not be read.
const StateFailed EntityState = "FAILED"

type entityBatch struct {
	index int
	keys  []models.EntityKey
}

// batchOutcome is the only message workers send to the coordinator.
type batchOutcome struct {
	index    int
	keys     []models.EntityKey
	entities []EntityOutcome
	err      error
	elapsed  time.Duration
}

type BatchSchedulerConfig struct {
	BatchSize    int
	Workers      int
	BatchTimeout time.Duration
}

// BatchScheduler fans batches of entities out to a bounded worker pool. A single
// coordinator owns the run statistics and progress.
type BatchScheduler struct {
	source     domrepo.SalesSource
	forecaster *EntityForecaster
	metrics    domrepo.Metrics
	log        *logger.Logger
	cfg        BatchSchedulerConfig
}

func NewBatchScheduler(
	source domrepo.SalesSource,
	forecaster *EntityForecaster,
	metrics domrepo.Metrics,
	log *logger.Logger,
	cfg BatchSchedulerConfig,
) *BatchScheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 300 * time.Second
	}
	return &BatchScheduler{source: source, forecaster: forecaster, metrics: metrics, log: log, cfg: cfg}
}

// Partition splits keys into fixed-size batches; the last one may be shorter.
func Partition(keys []models.EntityKey, size int) [][]models.EntityKey {
	var out [][]models.EntityKey
	for i := 0; i < len(keys); i += size {
		out = append(out, keys[i:min(i+size, len(keys))])
	}
	return out
}

// ForecastProgress maps completed entities onto the forecasting band of the progress bar.
func ForecastProgress(completed, total int) int {
	if total <= 0 {
		return models.ProgressForecastCap
	}
	span := models.ProgressForecastCap - models.ProgressDiscovered
	p := models.ProgressDiscovered + span*completed/total
	return min(p, models.ProgressForecastCap)
}

// Run forecasts every key and returns the merged statistics and result rows.
func (s *BatchScheduler) Run(
	ctx context.Context,
	rc *RunContext,
	keys []models.EntityKey,
	chars map[int64]models.EntityCharacteristics,
	horizon int,
) (*RunStats, []models.ForecastResult) {
	stats := NewRunStats(len(keys))
	batches := Partition(keys, s.cfg.BatchSize)

	jobs := make(chan entityBatch)
	outcomes := make(chan batchOutcome, s.cfg.Workers)

	var wg sync.WaitGroup
	for w := 0; w < min(s.cfg.Workers, max(1, len(batches))); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				outcomes <- s.runBatch(ctx, b, chars, horizon)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, b := range batches {
			select {
			case jobs <- entityBatch{index: i + 1, keys: b}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var results []models.ForecastResult
	for o := range outcomes {
		stats.mergeBatch(o)
		for _, e := range o.entities {
			results = append(results, e.Results...)
		}
		s.observe(o)

		completed := stats.Completed()
		snap := rc.update(func(snap *models.RunSnapshot) {
			snap.Completed = completed
			snap.Total = len(keys)
			snap.Progress = ForecastProgress(completed, len(keys))
		})
		s.metrics.RecordProgress(snap.Progress)
		s.log.Info("batch merged",
			logger.String("run_id", rc.ID),
			logger.Int("batch", o.index),
			logger.Int("completed", completed),
			logger.Int("total", len(keys)),
			logger.Int("progress", snap.Progress),
			logger.Duration("elapsed", o.elapsed),
		)
	}
	return stats, results
}

func (s *BatchScheduler) observe(o batchOutcome) {
	if o.err != nil {
		s.metrics.RecordBatch("failed", o.elapsed)
		s.metrics.RecordError("batch")
		s.log.Error("batch failed", logger.Int("batch", o.index), logger.Int("entities", len(o.keys)), logger.Error(o.err))
		return
	}
	s.metrics.RecordBatch("ok", o.elapsed)
	for _, e := range o.entities {
		s.metrics.RecordEntity(string(e.State))
		if e.State == StateResultEmitted {
			s.metrics.RecordTechniqueWin(string(e.Winner))
		}
		for _, c := range e.Candidates {
			if c.Err != nil {
				s.metrics.RecordCandidateFailure(string(c.Technique))
			}
		}
	}
}

// runBatch bounds one batch by the batch timeout. On timeout the batch is abandoned as
// failed; its goroutine stops at the next cancellation check.
func (s *BatchScheduler) runBatch(ctx context.Context, b entityBatch, chars map[int64]models.EntityCharacteristics, horizon int) batchOutcome {
	ctx, span := otel.StartSpan(ctx, "forecast.batch", otel.AttrBatch.Int(b.index), otel.AttrEntities.Int(len(b.keys)))
	defer span.End()

	start := time.Now()
	bctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	done := make(chan batchOutcome, 1)
	go func() { done <- s.processBatch(bctx, b, chars, horizon) }()

	var out batchOutcome
	select {
	case out = <-done:
	case <-bctx.Done():
		out = batchOutcome{index: b.index, keys: b.keys, err: fmt.Errorf("batch %d: %w", b.index, bctx.Err())}
	}
	out.elapsed = time.Since(start)
	if out.err != nil {
		otel.RecordError(span, out.err)
	}
	return out
}

// processBatch forecasts the batch's entities one after another on a dedicated session.
// A panic anywhere fails the whole batch.
func (s *BatchScheduler) processBatch(ctx context.Context, b entityBatch, chars map[int64]models.EntityCharacteristics, horizon int) (out batchOutcome) {
	out = batchOutcome{index: b.index, keys: b.keys}
	defer func() {
		if r := recover(); r != nil {
			out.entities = nil
			out.err = fmt.Errorf("batch %d: panic: %v", b.index, r)
		}
	}()

	sess, err := s.source.OpenSession(ctx)
	if err != nil {
		out.err = fmt.Errorf("batch %d: open session: %w", b.index, err)
		return out
	}
	defer func() { _ = sess.Close() }()

	for _, key := range b.keys {
		if err := ctx.Err(); err != nil {
			out.entities = nil
			out.err = fmt.Errorf("batch %d: %w", b.index, err)
			return out
		}

		rows, err := sess.EntityHistory(ctx, key)
		if err != nil {
			out.entities = append(out.entities, EntityOutcome{Key: key, State: StateFailed, Err: err})
			continue
		}
		ch, ok := chars[key.ItemID]
		if !ok {
			ch = models.DefaultCharacteristics()
		}
		out.entities = append(out.entities, s.forecaster.Forecast(ctx, key, rows, ch, horizon))
	}
	return out
}
