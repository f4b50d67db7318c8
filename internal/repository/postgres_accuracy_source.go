package repository

import (
	"context"
	"fmt"
	"time"

	"DemandCast/internal/domain/models"
	pkgpg "DemandCast/pkg/postgres"
)

// ActualsReader returns realized daily quantities keyed like forecast rows.
type ActualsReader interface {
	DailyActuals(ctx context.Context, from, to time.Time) (map[models.ResultKey]float64, error)
}

// PGAccuracySource reads stored forecasts from Postgres and joins them with realized
// sales from the warehouse. Days without sales count as zero.
type PGAccuracySource struct {
	pg      *pkgpg.Client
	table   string
	actuals ActualsReader
}

func NewPGAccuracySource(pg *pkgpg.Client, table string, actuals ActualsReader) *PGAccuracySource {
	return &PGAccuracySource{pg: pg, table: table, actuals: actuals}
}

func (s *PGAccuracySource) ForecastVsActual(ctx context.Context, from, to time.Time) ([]models.AccuracyObservation, error) {
	actual, err := s.actuals.DailyActuals(ctx, from, to)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT item_id, store_id, forecast_date, best_prediction, best_model
		FROM %s
		WHERE forecast_date BETWEEN $1 AND $2 AND is_active
		ORDER BY forecast_date`, s.table)
	rows, err := s.pg.Pool().Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("stored forecasts: %w", err)
	}
	defer rows.Close()

	var out []models.AccuracyObservation
	for rows.Next() {
		var (
			o     models.AccuracyObservation
			pred  int64
			model string
		)
		if err := rows.Scan(&o.Key.ItemID, &o.Key.StoreID, &o.Date, &pred, &model); err != nil {
			return nil, fmt.Errorf("stored forecasts scan: %w", err)
		}
		o.Predicted = float64(pred)
		o.Model = models.Technique(model)
		o.Actual = actual[models.ResultKey{ItemID: o.Key.ItemID, StoreID: o.Key.StoreID, ForecastDate: o.Date.UTC().Truncate(24 * time.Hour)}]
		out = append(out, o)
	}
	return out, rows.Err()
}
