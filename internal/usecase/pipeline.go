package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	domsvc "DemandCast/internal/domain/service"
	"DemandCast/internal/services/features"
	"DemandCast/pkg/logger"
	"DemandCast/pkg/otel"
)

type PipelineConfig struct {
	ActiveWindow    time.Duration
	MinTransactions int
	ClassifyWindow  time.Duration
	UpsertRetries   int
	RetryBackoff    time.Duration
	ModelVersion    string
	Environment     string
	BatchSize       int
	Workers         int
}

// ForecastPipeline runs one end-to-end forecast: discovery, classification, batch
// forecasting, consolidation and persistence.
type ForecastPipeline struct {
	source    domrepo.SalesSource
	sink      domrepo.ForecastSink
	scheduler *BatchScheduler
	tracker   domsvc.RunTracker
	events    domrepo.RunEventPublisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	cfg       PipelineConfig
	now       func() time.Time
}

func NewForecastPipeline(
	source domrepo.SalesSource,
	sink domrepo.ForecastSink,
	scheduler *BatchScheduler,
	tracker domsvc.RunTracker,
	events domrepo.RunEventPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
	cfg PipelineConfig,
) *ForecastPipeline {
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = 90 * 24 * time.Hour
	}
	if cfg.ClassifyWindow <= 0 {
		cfg.ClassifyWindow = 365 * 24 * time.Hour
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &ForecastPipeline{
		source:    source,
		sink:      sink,
		scheduler: scheduler,
		tracker:   tracker,
		events:    events,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes the pipeline for rc. Fatal errors are reflected in rc with progress -1
// and returned; entity and batch failures only show up in the summary.
func (p *ForecastPipeline) Run(ctx context.Context, rc *RunContext) (*models.RunSummary, error) {
	start := p.now()
	req := rc.Request
	log := p.log.With(logger.String("run_id", rc.ID), logger.String("source", req.SourceTag))

	ctx, span := otel.StartSpan(ctx, "forecast.run", otel.RunAttributes(rc.ID, req.SourceTag, req.HorizonDays)...)
	defer span.End()

	p.transition(ctx, rc, func(s *models.RunSnapshot) {
		s.Status = models.RunRunning
		s.Progress = 0
	})
	trackerID := p.startTracking(ctx, rc, log)
	log.Info("forecast run started", logger.Int("horizon", req.HorizonDays), logger.Any("store_ids", req.StoreIDs))

	fail := func(err error) (*models.RunSummary, error) {
		otel.RecordError(span, err)
		p.transition(ctx, rc, func(s *models.RunSnapshot) {
			s.Status = models.RunError
			s.Progress = models.ProgressFatal
			s.Error = err.Error()
		})
		p.endTracking(ctx, trackerID, nil, true, log)
		p.metrics.RecordRun(string(models.RunError), p.now().Sub(start))
		log.Error("forecast run failed", logger.Error(err))
		return nil, err
	}

	keys, err := p.discover(ctx, req)
	if err != nil {
		return fail(err)
	}
	p.transition(ctx, rc, func(s *models.RunSnapshot) {
		s.Total = len(keys)
		s.Progress = models.ProgressDiscovered
	})
	otel.AddEvent(span, "discovered", otel.AttrEntities.Int(len(keys)))
	log.Info("active entities discovered", logger.Int("entities", len(keys)))

	chars := p.classify(ctx, req, log)

	stats, results := p.scheduler.Run(ctx, rc, keys, chars, req.HorizonDays)
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("forecasting interrupted: %w", err))
	}

	rows := Consolidate(results)
	p.transition(ctx, rc, func(s *models.RunSnapshot) { s.Progress = models.ProgressConsolidated })

	written, err := p.persist(ctx, rows, log)
	if err != nil {
		return fail(err)
	}
	p.transition(ctx, rc, func(s *models.RunSnapshot) { s.Progress = models.ProgressPersisted })

	summary := stats.Summary()
	summary.RowsPersisted = written
	summary.ExecutionTime = p.now().Sub(start)

	p.transition(ctx, rc, func(s *models.RunSnapshot) {
		s.Status = models.RunCompleted
		s.Progress = models.ProgressDone
		s.Summary = &summary
	})
	p.endTracking(ctx, trackerID, &summary, false, log)
	p.metrics.RecordRun(string(models.RunCompleted), summary.ExecutionTime)

	log.Info("forecast run completed",
		logger.Int("total", summary.TotalItems),
		logger.Int("successful", summary.Successful),
		logger.Int("failed", summary.Failed),
		logger.Int("skipped", summary.Skipped),
		logger.Int("rows", written),
		logger.Float64("avg_mape", summary.AvgMAPE),
		logger.Duration("elapsed", summary.ExecutionTime),
	)
	return &summary, nil
}

func (p *ForecastPipeline) discover(ctx context.Context, req models.RunRequest) ([]models.EntityKey, error) {
	ctx, span := otel.StartSpan(ctx, "forecast.discover")
	defer span.End()

	keys, err := p.source.ActiveEntities(ctx, domrepo.ActiveEntityQuery{
		Window:          p.cfg.ActiveWindow,
		MinTransactions: p.cfg.MinTransactions,
		StoreIDs:        req.StoreIDs,
		AsOf:            p.now(),
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", models.ErrDiscovery, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no active entities", models.ErrDiscovery)
	}
	return keys, nil
}

// classify is best effort: on failure every item falls back to the default class.
func (p *ForecastPipeline) classify(ctx context.Context, req models.RunRequest, log *logger.Logger) map[int64]models.EntityCharacteristics {
	since := p.now().Add(-p.cfg.ClassifyWindow)
	rows, err := p.source.ClassificationHistory(ctx, req.StoreIDs, since)
	if err != nil {
		p.metrics.RecordError("classification")
		log.Warn("classification history unavailable, using default classes", logger.Error(err))
		return map[int64]models.EntityCharacteristics{}
	}
	return features.Classify(rows)
}

// persist upserts rows, retrying the whole set; the upsert is idempotent.
func (p *ForecastPipeline) persist(ctx context.Context, rows []models.ForecastResult, log *logger.Logger) (int, error) {
	ctx, span := otel.StartSpan(ctx, "forecast.persist", otel.AttrRows.Int(len(rows)))
	defer span.End()

	if len(rows) == 0 {
		return 0, nil
	}
	start := p.now()
	var lastErr error
	for attempt := 0; attempt <= p.cfg.UpsertRetries; attempt++ {
		if attempt > 0 {
			wait := p.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			log.Warn("retrying forecast upsert", logger.Int("attempt", attempt), logger.Duration("wait", wait), logger.Error(lastErr))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return 0, fmt.Errorf("%w: %v", models.ErrPersistence, ctx.Err())
			}
		}
		n, err := p.sink.Upsert(ctx, rows)
		if err == nil {
			p.metrics.RecordLatency("persist", p.now().Sub(start).Seconds())
			return n, nil
		}
		lastErr = err
	}
	otel.RecordError(span, lastErr)
	p.metrics.RecordError("persist")
	return 0, fmt.Errorf("%w: %v", models.ErrPersistence, lastErr)
}

// transition updates rc and emits the lifecycle event for it.
func (p *ForecastPipeline) transition(ctx context.Context, rc *RunContext, fn func(*models.RunSnapshot)) {
	snap := rc.update(fn)
	p.metrics.RecordProgress(snap.Progress)
	if p.events == nil {
		return
	}
	evt := models.RunEvent{
		RunID:     snap.RunID,
		Status:    snap.Status,
		Progress:  snap.Progress,
		Source:    snap.Request.SourceTag,
		Summary:   snap.Summary,
		Error:     snap.Error,
		Timestamp: snap.UpdatedAt,
	}
	if err := p.events.PublishRunEvent(ctx, evt); err != nil {
		p.log.Warn("run event not published", logger.String("run_id", snap.RunID), logger.Error(err))
	}
}

func (p *ForecastPipeline) startTracking(ctx context.Context, rc *RunContext, log *logger.Logger) string {
	if p.tracker == nil {
		return ""
	}
	host, _ := os.Hostname()
	now := p.now()
	tags := map[string]string{
		"source":         rc.Request.SourceTag,
		"executed_by":    rc.Request.InitiatedBy,
		"hostname":       host,
		"environment":    p.cfg.Environment,
		"model_version":  p.cfg.ModelVersion,
		"execution_date": now.Format("2006-01-02"),
		"run_id":         rc.ID,
	}
	params := map[string]string{
		"forecast_periods": strconv.Itoa(rc.Request.HorizonDays),
		"source":           rc.Request.SourceTag,
		"batch_size":       strconv.Itoa(p.cfg.BatchSize),
		"workers":          strconv.Itoa(p.cfg.Workers),
		"model_version":    p.cfg.ModelVersion,
	}
	id, err := p.tracker.StartRun(ctx, rc.ID, tags, params)
	if err != nil {
		log.Warn("experiment tracking unavailable", logger.Error(err))
		return ""
	}
	return id
}

func (p *ForecastPipeline) endTracking(ctx context.Context, trackerID string, s *models.RunSummary, failed bool, log *logger.Logger) {
	if p.tracker == nil || trackerID == "" {
		return
	}
	if s != nil {
		if err := p.tracker.LogMetrics(ctx, trackerID, TrackingMetrics(*s)); err != nil {
			log.Warn("tracking metrics not logged", logger.Error(err))
		}
	}
	if err := p.tracker.EndRun(ctx, trackerID, failed); err != nil {
		log.Warn("tracking run not closed", logger.Error(err))
	}
}

// TrackingMetrics flattens a summary into experiment-tracker metrics.
func TrackingMetrics(s models.RunSummary) map[string]float64 {
	m := map[string]float64{
		"total_items":            float64(s.TotalItems),
		"successful_forecasts":   float64(s.Successful),
		"failed_forecasts":       float64(s.Failed),
		"skipped_items":          float64(s.Skipped),
		"success_rate":           s.SuccessRate(),
		"avg_mape":               s.AvgMAPE,
		"median_mape":            s.MedianMAPE,
		"std_mape":               s.StdMAPE,
		"avg_rmse":               s.AvgRMSE,
		"avg_mae":                s.AvgMAE,
		"rows_persisted":         float64(s.RowsPersisted),
		"execution_time_seconds": s.ExecutionTime.Seconds(),
	}
	for t, n := range s.ByModel {
		m["model_usage_"+string(t)] = float64(n)
	}
	return m
}

// Consolidate groups rows by (item, store, date). A duplicated key keeps the last row.
// Output is sorted by item, store and date.
func Consolidate(rows []models.ForecastResult) []models.ForecastResult {
	idx := make(map[models.ResultKey]int, len(rows))
	out := make([]models.ForecastResult, 0, len(rows))
	for _, r := range rows {
		k := r.ResultKey()
		if i, ok := idx[k]; ok {
			out[i] = r
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return out[i].ForecastDate.Before(out[j].ForecastDate)
	})
	return out
}

// IsFatal reports whether err aborted a run.
func IsFatal(err error) bool {
	return errors.Is(err, models.ErrDiscovery) || errors.Is(err, models.ErrPersistence)
}
