package repository

import (
	"context"
	"fmt"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/logger"
	pkgpg "DemandCast/pkg/postgres"

	"github.com/jackc/pgx/v5"
)

const upsertForecastSQL = `
INSERT INTO %s (
	store_id, item_id, forecast_date,
	prophet_prediction, arima_prediction, holt_winters_prediction, xgboost_prediction,
	best_model, best_prediction,
	model_rmse, model_mape, model_mae, metrics_evaluated,
	brand, category, model_version,
	is_active, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, TRUE, NOW(), NOW())
ON CONFLICT (item_id, store_id, forecast_date) DO UPDATE SET
	prophet_prediction      = EXCLUDED.prophet_prediction,
	arima_prediction        = EXCLUDED.arima_prediction,
	holt_winters_prediction = EXCLUDED.holt_winters_prediction,
	xgboost_prediction      = EXCLUDED.xgboost_prediction,
	best_model              = EXCLUDED.best_model,
	best_prediction         = EXCLUDED.best_prediction,
	model_rmse              = EXCLUDED.model_rmse,
	model_mape              = EXCLUDED.model_mape,
	model_mae               = EXCLUDED.model_mae,
	metrics_evaluated       = EXCLUDED.metrics_evaluated,
	brand                   = EXCLUDED.brand,
	category                = EXCLUDED.category,
	model_version           = EXCLUDED.model_version,
	is_active               = EXCLUDED.is_active,
	updated_at              = NOW()`

// PGForecastSink upserts forecast rows in chunks, one short transaction per chunk.
type PGForecastSink struct {
	pg    *pkgpg.Client
	table string
	chunk int
	log   *logger.Logger
}

func NewPGForecastSink(pg *pkgpg.Client, table string, chunk int, log *logger.Logger) *PGForecastSink {
	if chunk <= 0 {
		chunk = 2000
	}
	return &PGForecastSink{pg: pg, table: table, chunk: chunk, log: log}
}

func (s *PGForecastSink) Upsert(ctx context.Context, rows []models.ForecastResult) (int, error) {
	start := time.Now()
	q := fmt.Sprintf(upsertForecastSQL, s.table)
	written := 0
	for _, part := range chunk(rows, s.chunk) {
		if err := s.upsertChunk(ctx, q, part); err != nil {
			return written, fmt.Errorf("upsert chunk at row %d: %w", written, err)
		}
		written += len(part)
	}
	s.log.Info("forecasts upserted",
		logger.Int("rows", written),
		logger.Duration("elapsed", time.Since(start)))
	return written, nil
}

func (s *PGForecastSink) upsertChunk(ctx context.Context, q string, rows []models.ForecastResult) error {
	return pgx.BeginFunc(ctx, s.pg.Pool(), func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, r := range rows {
			b.Queue(q, upsertArgs(r)...)
		}
		return tx.SendBatch(ctx, b).Close()
	})
}

func (s *PGForecastSink) Health(ctx context.Context) error {
	return s.pg.Health(ctx)
}

// upsertArgs orders values as in upsertForecastSQL. Failed techniques are NULL.
func upsertArgs(r models.ForecastResult) []any {
	return []any{
		r.Key.StoreID,
		r.Key.ItemID,
		r.ForecastDate,
		r.Prediction(models.TechniqueProphet),
		r.Prediction(models.TechniqueARIMA),
		r.Prediction(models.TechniqueHoltWinters),
		r.Prediction(models.TechniqueXGBoost),
		string(r.BestModel),
		r.BestPrediction,
		r.Metrics.RMSE,
		r.Metrics.MAPE,
		r.Metrics.MAE,
		r.Metrics.Evaluated,
		r.Brand,
		r.Category,
		r.ModelVersion,
	}
}

func chunk[T any](xs []T, size int) [][]T {
	var out [][]T
	for i := 0; i < len(xs); i += size {
		out = append(out, xs[i:min(i+size, len(xs))])
	}
	return out
}
