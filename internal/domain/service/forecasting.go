package service

import (
	"context"

	"DemandCast/internal/domain/models"
)

// ModelAdapter wraps one forecasting technique behind a uniform fit-and-predict call.
// Implementations never panic past this boundary; any failure yields a nil forecast and an error.
type ModelAdapter interface {
	Technique() models.Technique
	Available() bool
	FitPredict(ctx context.Context, series models.DenseSeries, horizon int) (artifact any, forecast []float64, err error)
}

// RunTracker records run-level metadata in an experiment tracker. Best effort only.
type RunTracker interface {
	StartRun(ctx context.Context, runID string, tags map[string]string, params map[string]string) (string, error)
	LogMetrics(ctx context.Context, trackerRunID string, metrics map[string]float64) error
	EndRun(ctx context.Context, trackerRunID string, failed bool) error
}
