package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityKeys(n int) []models.EntityKey {
	keys := make([]models.EntityKey, n)
	for i := range keys {
		keys[i] = models.EntityKey{ItemID: int64(i + 1), StoreID: 1}
	}
	return keys
}

func sourceFor(keys []models.EntityKey, days int) *fakeSource {
	src := &fakeSource{keys: keys, history: map[models.EntityKey][]models.RawSalesRow{}}
	for _, k := range keys {
		src.history[k] = salesRows(k, days, 10)
	}
	return src
}

func newScheduler(src *fakeSource, cfg BatchSchedulerConfig) *BatchScheduler {
	f := newForecaster(adapters(
		fakeAdapter{t: models.TechniqueHoltWinters, value: 10},
		fakeAdapter{t: models.TechniqueProphet, value: 11},
	))
	return NewBatchScheduler(src, f, nopMetrics{}, logger.Nop(), cfg)
}

func trackProgress(rc *RunContext) func() []int {
	var mu sync.Mutex
	var seen []int
	rc.OnUpdate(func(s models.RunSnapshot) {
		mu.Lock()
		seen = append(seen, s.Progress)
		mu.Unlock()
	})
	return func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), seen...)
	}
}

func TestPartition(t *testing.T) {
	parts := Partition(entityKeys(45), 20)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 20)
	assert.Len(t, parts[2], 5)
	assert.Empty(t, Partition(nil, 20))
}

func TestForecastProgress(t *testing.T) {
	assert.Equal(t, 10, ForecastProgress(0, 100))
	assert.Equal(t, 47, ForecastProgress(50, 100))
	assert.Equal(t, 85, ForecastProgress(100, 100))
	assert.Equal(t, 85, ForecastProgress(120, 100))
	assert.Equal(t, 85, ForecastProgress(0, 0))
}

func TestRunForecastsEveryEntity(t *testing.T) {
	keys := entityKeys(7)
	src := sourceFor(keys, 130)
	src.history[keys[6]] = salesRows(keys[6], 30, 10) // too short

	s := newScheduler(src, BatchSchedulerConfig{BatchSize: 3, Workers: 2, BatchTimeout: time.Minute})
	rc := NewRunContext("r1", models.RunRequest{HorizonDays: 60})
	progress := trackProgress(rc)

	stats, rows := s.Run(context.Background(), rc, keys, nil, 60)
	sum := stats.Summary()

	assert.Equal(t, 7, sum.TotalItems)
	assert.Equal(t, 6, sum.Successful)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, 7, stats.Completed())
	assert.Len(t, rows, 6*60)
	assert.Equal(t, 6, sum.ByModel[models.TechniqueProphet]+sum.ByModel[models.TechniqueHoltWinters])

	snap := rc.Snapshot()
	assert.Equal(t, 7, snap.Completed)
	assert.Equal(t, 85, snap.Progress)

	seen := progress()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestPanickingBatchFailsOnlyItsEntities(t *testing.T) {
	keys := entityKeys(6)
	src := sourceFor(keys, 130)
	src.panicOn = map[models.EntityKey]bool{keys[3]: true}

	s := newScheduler(src, BatchSchedulerConfig{BatchSize: 2, Workers: 2, BatchTimeout: time.Minute})
	stats, rows := s.Run(context.Background(), NewRunContext("r2", models.RunRequest{}), keys, nil, 60)
	sum := stats.Summary()

	assert.Equal(t, 4, sum.Successful)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 6, stats.Completed())
	assert.Len(t, rows, 4*60)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, 2, sum.Errors[0].Batch)
	assert.Contains(t, sum.Errors[0].Error, "panic")
	assert.Len(t, sum.Warnings, 1)
}

func TestFetchErrorFailsOneEntity(t *testing.T) {
	keys := entityKeys(3)
	src := sourceFor(keys, 130)
	src.fetchErr = map[models.EntityKey]error{keys[1]: errors.New("read timeout")}

	s := newScheduler(src, BatchSchedulerConfig{BatchSize: 3, Workers: 1, BatchTimeout: time.Minute})
	stats, _ := s.Run(context.Background(), NewRunContext("r3", models.RunRequest{}), keys, nil, 60)
	sum := stats.Summary()

	assert.Equal(t, 2, sum.Successful)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, keys[1].String(), sum.Errors[0].Entity)
}

func TestSessionErrorFailsBatch(t *testing.T) {
	keys := entityKeys(4)
	src := sourceFor(keys, 130)
	src.openErr = errors.New("too many connections")

	s := newScheduler(src, BatchSchedulerConfig{BatchSize: 2, Workers: 2, BatchTimeout: time.Minute})
	stats, rows := s.Run(context.Background(), NewRunContext("r4", models.RunRequest{}), keys, nil, 60)

	sum := stats.Summary()
	assert.Equal(t, 4, sum.Failed)
	assert.Zero(t, sum.Successful)
	assert.Empty(t, rows)
	assert.Equal(t, 4, stats.Completed())
}

func TestBatchTimeout(t *testing.T) {
	keys := entityKeys(4)
	src := sourceFor(keys, 130)
	src.blockOn = map[models.EntityKey]bool{keys[0]: true}

	s := newScheduler(src, BatchSchedulerConfig{BatchSize: 2, Workers: 2, BatchTimeout: 50 * time.Millisecond})
	stats, _ := s.Run(context.Background(), NewRunContext("r5", models.RunRequest{}), keys, nil, 60)
	sum := stats.Summary()

	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 2, sum.Successful)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0].Error, context.DeadlineExceeded.Error())
}

func TestRunUsesCharacteristics(t *testing.T) {
	keys := entityKeys(1)
	src := sourceFor(keys, 130)
	chars := map[int64]models.EntityCharacteristics{
		1: {PriceCategory: models.PriceCheap, SeasonalityCategory: models.SeasonalityStable},
	}
	s := newScheduler(src, BatchSchedulerConfig{BatchSize: 1, Workers: 1, BatchTimeout: time.Minute})
	stats, rows := s.Run(context.Background(), NewRunContext("r6", models.RunRequest{}), keys, chars, 60)

	require.NotEmpty(t, rows)
	// STABLE/CHEAP does not rank prophet at all
	assert.Equal(t, models.TechniqueHoltWinters, rows[0].BestModel)
	assert.Equal(t, 1, stats.Summary().ByModel[models.TechniqueHoltWinters])
}

func TestBatchWithNoUsableCandidateCountsAsSkipped(t *testing.T) {
	keys := entityKeys(6)
	src := sourceFor(keys, 200)
	// the first batch's entities are long enough to forecast but every fit rejects them
	src.history[keys[0]] = salesRows(keys[0], 80, 10)
	src.history[keys[1]] = salesRows(keys[1], 80, 10)

	f := newForecaster(adapters(
		fakeAdapter{t: models.TechniqueHoltWinters, value: 10, failTrainBelow: 100},
		fakeAdapter{t: models.TechniqueProphet, value: 11, failTrainBelow: 100},
		fakeAdapter{t: models.TechniqueARIMA, value: 12, failTrainBelow: 100},
		fakeAdapter{t: models.TechniqueXGBoost, value: 13, failTrainBelow: 100},
	))
	s := NewBatchScheduler(src, f, nopMetrics{}, logger.Nop(), BatchSchedulerConfig{BatchSize: 2, Workers: 2, BatchTimeout: time.Minute})
	rc := NewRunContext("r7", models.RunRequest{HorizonDays: 60})

	stats, rows := s.Run(context.Background(), rc, keys, nil, 60)
	sum := stats.Summary()

	assert.Equal(t, 6, stats.Completed())
	assert.Equal(t, 4, sum.Successful)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, sum.Failed)
	assert.Len(t, rows, 4*60)
	for _, r := range rows {
		assert.NotEqual(t, keys[0], r.Key)
		assert.NotEqual(t, keys[1], r.Key)
	}
	assert.Equal(t, 6, rc.Snapshot().Completed)
	require.Len(t, sum.Errors, 2)
	for _, e := range sum.Errors {
		assert.Equal(t, 1, e.Batch)
		assert.Contains(t, e.Error, models.ErrNoCandidateSucceeded.Error())
	}
}
