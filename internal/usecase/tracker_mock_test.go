package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) StartRun(ctx context.Context, runID string, tags, params map[string]string) (string, error) {
	args := m.Called(ctx, runID, tags, params)
	return args.String(0), args.Error(1)
}

func (m *mockTracker) LogMetrics(ctx context.Context, id string, metrics map[string]float64) error {
	return m.Called(ctx, id, metrics).Error(0)
}

func (m *mockTracker) EndRun(ctx context.Context, id string, failed bool) error {
	return m.Called(ctx, id, failed).Error(0)
}

func pipelineWithTracker(src *fakeSource, tr *mockTracker) (*ForecastPipeline, *fakeSink) {
	sink := &fakeSink{}
	sched := newScheduler(src, BatchSchedulerConfig{BatchSize: 2, Workers: 1, BatchTimeout: time.Minute})
	p := NewForecastPipeline(src, sink, sched, tr, &fakeEvents{}, nopMetrics{}, logger.Nop(), PipelineConfig{
		UpsertRetries: 1,
		RetryBackoff:  time.Millisecond,
		ModelVersion:  "v-test",
		BatchSize:     2,
		Workers:       1,
	})
	return p, sink
}

func TestPipelineIgnoresTrackerWriteFailures(t *testing.T) {
	tr := &mockTracker{}
	tr.On("StartRun", mock.Anything, "run-mock", mock.Anything, mock.MatchedBy(func(p map[string]string) bool {
		return p["forecast_periods"] == "30" && p["workers"] == "1"
	})).Return("exp-run-7", nil).Once()
	tr.On("LogMetrics", mock.Anything, "exp-run-7", mock.MatchedBy(func(m map[string]float64) bool {
		return m["total_items"] == 3
	})).Return(errors.New("tracker 503")).Once()
	tr.On("EndRun", mock.Anything, "exp-run-7", false).Return(errors.New("tracker 503")).Once()

	p, sink := pipelineWithTracker(sourceFor(entityKeys(3), 90), tr)
	sum, err := p.Run(context.Background(), NewRunContext("run-mock", runRequest()))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Successful)
	assert.Len(t, sink.rows, 3*30)
	tr.AssertExpectations(t)
}

func TestPipelineSkipsTrackingWhenStartFails(t *testing.T) {
	tr := &mockTracker{}
	tr.On("StartRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("no route")).Once()

	p, _ := pipelineWithTracker(sourceFor(entityKeys(2), 90), tr)
	rc := NewRunContext("run-untracked", runRequest())
	_, err := p.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, models.RunCompleted, rc.Snapshot().Status)
	tr.AssertNotCalled(t, "LogMetrics", mock.Anything, mock.Anything, mock.Anything)
	tr.AssertNotCalled(t, "EndRun", mock.Anything, mock.Anything, mock.Anything)
}
