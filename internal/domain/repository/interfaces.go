package repository

import (
	"context"
	"time"

	"DemandCast/internal/domain/models"
)

// ActiveEntityQuery selects entities with enough recent transactions.
type ActiveEntityQuery struct {
	Window          time.Duration
	MinTransactions int
	StoreIDs        []int64
	AsOf            time.Time
}

// SalesSource is the read side of the sales warehouse.
type SalesSource interface {
	ActiveEntities(ctx context.Context, q ActiveEntityQuery) ([]models.EntityKey, error)
	ClassificationHistory(ctx context.Context, storeIDs []int64, since time.Time) ([]models.RawSalesRow, error)
	// OpenSession pins one connection for the caller until Close.
	OpenSession(ctx context.Context) (SalesSession, error)
	Health(ctx context.Context) error
}

type SalesSession interface {
	EntityHistory(ctx context.Context, key models.EntityKey) ([]models.RawSalesRow, error)
	Close() error
}

// ForecastSink persists forecast rows idempotently keyed by (item, store, date).
type ForecastSink interface {
	Upsert(ctx context.Context, rows []models.ForecastResult) (int, error)
	Health(ctx context.Context) error
}

// AccuracySource joins stored forecasts with realized sales.
type AccuracySource interface {
	ForecastVsActual(ctx context.Context, from, to time.Time) ([]models.AccuracyObservation, error)
}

// RunStateStore keeps run snapshots readable by pollers and guards against concurrent runs.
type RunStateStore interface {
	SaveSnapshot(ctx context.Context, snap models.RunSnapshot) error
	Snapshot(ctx context.Context, runID string) (*models.RunSnapshot, error)
	Latest(ctx context.Context) (*models.RunSnapshot, error)
	AcquireRunLock(ctx context.Context, runID string) (bool, error)
	ReleaseRunLock(ctx context.Context, runID string) error
}

// RunEventPublisher emits run lifecycle events to downstream consumers.
type RunEventPublisher interface {
	PublishRunEvent(ctx context.Context, evt models.RunEvent) error
}

type Metrics interface {
	RecordRun(status string, d time.Duration)
	RecordEntity(outcome string)
	RecordTechniqueWin(technique string)
	RecordCandidateFailure(technique string)
	RecordBatch(outcome string, d time.Duration)
	RecordProgress(percent int)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
