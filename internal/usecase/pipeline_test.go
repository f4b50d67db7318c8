package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	src     *fakeSource
	sink    *fakeSink
	events  *fakeEvents
	tracker *fakeTracker
	p       *ForecastPipeline
}

func newPipelineFixture(src *fakeSource) *pipelineFixture {
	fx := &pipelineFixture{src: src, sink: &fakeSink{}, events: &fakeEvents{}, tracker: &fakeTracker{}}
	sched := newScheduler(src, BatchSchedulerConfig{BatchSize: 2, Workers: 2, BatchTimeout: time.Minute})
	fx.p = NewForecastPipeline(src, fx.sink, sched, fx.tracker, fx.events, nopMetrics{}, logger.Nop(), PipelineConfig{
		UpsertRetries: 2,
		RetryBackoff:  time.Millisecond,
		ModelVersion:  "v-test",
		Environment:   "test",
		BatchSize:     2,
		Workers:       2,
	})
	return fx
}

func runRequest() models.RunRequest {
	return models.RunRequest{HorizonDays: 30, SourceTag: "test", InitiatedBy: "unit"}
}

func TestPipelineCompletes(t *testing.T) {
	keys := entityKeys(5)
	fx := newPipelineFixture(sourceFor(keys, 90))
	rc := NewRunContext("run-ok", runRequest())
	progress := trackProgress(rc)

	sum, err := fx.p.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, 5, sum.TotalItems)
	assert.Equal(t, 5, sum.Successful)
	assert.Equal(t, 5*30, sum.RowsPersisted)
	assert.Len(t, fx.sink.rows, 5*30)

	snap := rc.Snapshot()
	assert.Equal(t, models.RunCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	require.NotNil(t, snap.Summary)

	seen := progress()
	assert.Contains(t, seen, models.ProgressDiscovered)
	assert.Contains(t, seen, models.ProgressConsolidated)
	assert.Contains(t, seen, models.ProgressPersisted)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}

	assert.Equal(t, []models.RunStatus{models.RunRunning, models.RunCompleted}, fx.events.statuses())
	assert.Equal(t, "test", fx.tracker.tags["source"])
	assert.Equal(t, "unit", fx.tracker.tags["executed_by"])
	assert.Equal(t, "run-ok", fx.tracker.tags["run_id"])
	assert.Equal(t, 5.0, fx.tracker.metrics["successful_forecasts"])
	assert.True(t, fx.tracker.ended)
	assert.False(t, fx.tracker.failed)
}

func TestPipelineDiscoveryFailureIsFatal(t *testing.T) {
	fx := newPipelineFixture(&fakeSource{discoverErr: errors.New("clickhouse down")})
	rc := NewRunContext("run-d", runRequest())

	_, err := fx.p.Run(context.Background(), rc)
	require.ErrorIs(t, err, models.ErrDiscovery)
	assert.True(t, IsFatal(err))

	snap := rc.Snapshot()
	assert.Equal(t, models.RunError, snap.Status)
	assert.Equal(t, models.ProgressFatal, snap.Progress)
	assert.Contains(t, snap.Error, "clickhouse down")
	assert.True(t, fx.tracker.failed)
	assert.Zero(t, fx.sink.calls)
}

func TestPipelineNoEntitiesIsFatal(t *testing.T) {
	fx := newPipelineFixture(&fakeSource{})
	_, err := fx.p.Run(context.Background(), NewRunContext("run-e", runRequest()))
	require.ErrorIs(t, err, models.ErrDiscovery)
}

func TestPipelineRetriesPersistence(t *testing.T) {
	fx := newPipelineFixture(sourceFor(entityKeys(2), 90))
	fx.sink.failures = 2

	sum, err := fx.p.Run(context.Background(), NewRunContext("run-r", runRequest()))
	require.NoError(t, err)
	assert.Equal(t, 3, fx.sink.calls)
	assert.Equal(t, 60, sum.RowsPersisted)
}

func TestPipelinePersistenceFailureIsFatal(t *testing.T) {
	fx := newPipelineFixture(sourceFor(entityKeys(2), 90))
	fx.sink.failures = 10
	rc := NewRunContext("run-p", runRequest())

	_, err := fx.p.Run(context.Background(), rc)
	require.ErrorIs(t, err, models.ErrPersistence)
	assert.Equal(t, 3, fx.sink.calls)
	assert.Equal(t, models.ProgressFatal, rc.Snapshot().Progress)
	assert.Equal(t, []models.RunStatus{models.RunRunning, models.RunError}, fx.events.statuses())
}

func TestPipelineClassificationFailureIsNotFatal(t *testing.T) {
	src := sourceFor(entityKeys(2), 90)
	src.classifyErr = errors.New("timeout")
	fx := newPipelineFixture(src)

	sum, err := fx.p.Run(context.Background(), NewRunContext("run-c", runRequest()))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Successful)
}

func TestPipelinePartialSuccessEndsAt100(t *testing.T) {
	keys := entityKeys(4)
	src := sourceFor(keys, 90)
	src.history[keys[0]] = salesRows(keys[0], 20, 3)
	fx := newPipelineFixture(src)
	rc := NewRunContext("run-partial", runRequest())

	sum, err := fx.p.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Less(t, sum.Successful, sum.TotalItems)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 100, rc.Snapshot().Progress)
}

func TestConsolidateLastWriterWins(t *testing.T) {
	d1 := day0
	d2 := day0.AddDate(0, 0, 1)
	k1 := models.EntityKey{ItemID: 2, StoreID: 1}
	k2 := models.EntityKey{ItemID: 1, StoreID: 1}
	rows := []models.ForecastResult{
		{Key: k1, ForecastDate: d2, BestPrediction: 1},
		{Key: k1, ForecastDate: d1, BestPrediction: 2},
		{Key: k2, ForecastDate: d1, BestPrediction: 3},
		{Key: k1, ForecastDate: d2, BestPrediction: 4},
	}

	out := Consolidate(rows)
	require.Len(t, out, 3)
	assert.Equal(t, k2, out[0].Key)
	assert.Equal(t, d1, out[1].ForecastDate)
	assert.Equal(t, 4, out[2].BestPrediction)
}

func TestTrackingMetrics(t *testing.T) {
	m := TrackingMetrics(models.RunSummary{
		TotalItems:    4,
		Successful:    3,
		ByModel:       map[models.Technique]int{models.TechniqueARIMA: 2, models.TechniqueProphet: 1},
		ExecutionTime: 90 * time.Second,
	})
	assert.Equal(t, 75.0, m["success_rate"])
	assert.Equal(t, 2.0, m["model_usage_arima"])
	assert.Equal(t, 90.0, m["execution_time_seconds"])
}
