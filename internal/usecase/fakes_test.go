package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	domsvc "DemandCast/internal/domain/service"
	"DemandCast/internal/services/features"
	"DemandCast/pkg/logger"
)

var day0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func salesRows(key models.EntityKey, days int, qty float64) []models.RawSalesRow {
	rows := make([]models.RawSalesRow, days)
	for i := range rows {
		rows[i] = models.RawSalesRow{
			Date:      day0.AddDate(0, 0, i),
			ItemID:    key.ItemID,
			StoreID:   key.StoreID,
			Category:  "beverages",
			Brand:     "acme",
			Quantity:  qty,
			UnitPrice: 2.5,
		}
	}
	return rows
}

func constSeries(key models.EntityKey, days int, qty float64) models.DenseSeries {
	return features.Densify(key, salesRows(key, days, qty))
}

// fakeAdapter forecasts a constant. failTrainBelow fails fits on series shorter than it.
type fakeAdapter struct {
	t              models.Technique
	value          float64
	failAll        bool
	failTrainBelow int
}

func (a fakeAdapter) Technique() models.Technique { return a.t }
func (a fakeAdapter) Available() bool             { return true }

func (a fakeAdapter) FitPredict(ctx context.Context, s models.DenseSeries, h int) (any, []float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if a.failAll || s.Len() < a.failTrainBelow {
		return nil, nil, fmt.Errorf("%s: fit failed", a.t)
	}
	out := make([]float64, h)
	for i := range out {
		out[i] = a.value
	}
	return a.value, out, nil
}

type fakeAdapters map[models.Technique]domsvc.ModelAdapter

func (f fakeAdapters) Adapter(t models.Technique) (domsvc.ModelAdapter, bool) {
	a, ok := f[t]
	return a, ok
}

func (f fakeAdapters) IsAvailable(t models.Technique) bool {
	_, ok := f[t]
	return ok
}

func adapters(list ...fakeAdapter) fakeAdapters {
	out := fakeAdapters{}
	for _, a := range list {
		out[a.t] = a
	}
	return out
}

func newForecaster(ad fakeAdapters, opts ...EntityForecasterOption) *EntityForecaster {
	return NewEntityForecaster(features.NewSeriesPreparer(60), NewModelSelector(ad), ad, logger.Nop(), opts...)
}

type fakeSource struct {
	keys        []models.EntityKey
	discoverErr error
	classifyErr error
	openErr     error
	history     map[models.EntityKey][]models.RawSalesRow
	fetchErr    map[models.EntityKey]error
	panicOn     map[models.EntityKey]bool
	blockOn     map[models.EntityKey]bool
}

func (f *fakeSource) ActiveEntities(context.Context, domrepo.ActiveEntityQuery) ([]models.EntityKey, error) {
	return f.keys, f.discoverErr
}

func (f *fakeSource) ClassificationHistory(context.Context, []int64, time.Time) ([]models.RawSalesRow, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	var rows []models.RawSalesRow
	for _, r := range f.history {
		rows = append(rows, r...)
	}
	return rows, nil
}

func (f *fakeSource) OpenSession(context.Context) (domrepo.SalesSession, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return fakeSession{f}, nil
}

func (f *fakeSource) Health(context.Context) error { return nil }

type fakeSession struct{ src *fakeSource }

func (s fakeSession) EntityHistory(ctx context.Context, key models.EntityKey) ([]models.RawSalesRow, error) {
	if s.src.panicOn[key] {
		panic("corrupt row")
	}
	if s.src.blockOn[key] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := s.src.fetchErr[key]; err != nil {
		return nil, err
	}
	return s.src.history[key], nil
}

func (s fakeSession) Close() error { return nil }

type fakeSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	rows     []models.ForecastResult
}

func (f *fakeSink) Upsert(_ context.Context, rows []models.ForecastResult) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return 0, errors.New("connection reset")
	}
	f.rows = append([]models.ForecastResult(nil), rows...)
	return len(rows), nil
}

func (f *fakeSink) Health(context.Context) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, time.Duration)   {}
func (nopMetrics) RecordEntity(string)               {}
func (nopMetrics) RecordTechniqueWin(string)         {}
func (nopMetrics) RecordCandidateFailure(string)     {}
func (nopMetrics) RecordBatch(string, time.Duration) {}
func (nopMetrics) RecordProgress(int)                {}
func (nopMetrics) RecordLatency(string, float64)     {}
func (nopMetrics) RecordError(string)                {}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.RunEvent
}

func (f *fakeEvents) PublishRunEvent(_ context.Context, e models.RunEvent) error {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
	return nil
}

func (f *fakeEvents) statuses() []models.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RunStatus
	for _, e := range f.events {
		if len(out) == 0 || out[len(out)-1] != e.Status {
			out = append(out, e.Status)
		}
	}
	return out
}

type fakeTracker struct {
	tags    map[string]string
	metrics map[string]float64
	failed  bool
	ended   bool
}

func (f *fakeTracker) StartRun(_ context.Context, _ string, tags, _ map[string]string) (string, error) {
	f.tags = tags
	return "mlflow-1", nil
}

func (f *fakeTracker) LogMetrics(_ context.Context, _ string, m map[string]float64) error {
	f.metrics = m
	return nil
}

func (f *fakeTracker) EndRun(_ context.Context, _ string, failed bool) error {
	f.ended, f.failed = true, failed
	return nil
}

type fakeStore struct {
	mu     sync.Mutex
	lock   string
	snaps  map[string]models.RunSnapshot
	latest string
}

func newFakeStore() *fakeStore { return &fakeStore{snaps: map[string]models.RunSnapshot{}} }

func (f *fakeStore) SaveSnapshot(_ context.Context, s models.RunSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[s.RunID] = s
	f.latest = s.RunID
	return nil
}

func (f *fakeStore) Snapshot(_ context.Context, id string) (*models.RunSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snaps[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) Latest(ctx context.Context) (*models.RunSnapshot, error) {
	f.mu.Lock()
	id := f.latest
	f.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	return f.Snapshot(ctx, id)
}

func (f *fakeStore) AcquireRunLock(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lock != "" && f.lock != id {
		return false, nil
	}
	f.lock = id
	return true, nil
}

func (f *fakeStore) ReleaseRunLock(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lock == id {
		f.lock = ""
	}
	return nil
}

func (f *fakeStore) holder() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lock
}

type fakeQueue struct {
	err      error
	msgType  string
	payloads []any
}

func (f *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.msgType = msgType
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakePipeline struct {
	err     error
	sawLock string
	store   *fakeStore
}

func (f *fakePipeline) Run(_ context.Context, rc *RunContext) (*models.RunSummary, error) {
	if f.store != nil {
		f.sawLock = f.store.holder()
	}
	rc.update(func(s *models.RunSnapshot) { s.Status = models.RunRunning; s.Progress = 50 })
	if f.err != nil {
		rc.update(func(s *models.RunSnapshot) { s.Status = models.RunError; s.Progress = models.ProgressFatal })
		return nil, f.err
	}
	rc.update(func(s *models.RunSnapshot) { s.Status = models.RunCompleted; s.Progress = 100 })
	return &models.RunSummary{TotalItems: 1, Successful: 1}, nil
}
