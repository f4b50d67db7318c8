package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	"DemandCast/pkg/logger"
	"DemandCast/pkg/queue"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RunJobType is the queue message type that carries a submitted run.
const RunJobType = "forecast.run"

type RunJobPayload struct {
	RunID   string            `json:"run_id"`
	Request models.RunRequest `json:"request"`
}

type runPipeline interface {
	Run(ctx context.Context, rc *RunContext) (*models.RunSummary, error)
}

// RunService owns the run lifecycle: submission, the single-run guard, execution and status.
type RunService struct {
	pipeline       runPipeline
	store          domrepo.RunStateStore
	queue          queue.QueueService
	log            *logger.Logger
	defaultHorizon int
	newID          func() string

	mu     sync.RWMutex
	active map[string]*RunContext
}

func NewRunService(
	pipeline runPipeline,
	store domrepo.RunStateStore,
	q queue.QueueService,
	log *logger.Logger,
	defaultHorizon int,
) *RunService {
	return &RunService{
		pipeline:       pipeline,
		store:          store,
		queue:          q,
		log:            log,
		defaultHorizon: defaultHorizon,
		newID:          func() string { return uuid.NewString() },
		active:         make(map[string]*RunContext),
	}
}

var requestValidator = newRequestValidator()

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeRequest fills defaults and validates req. A zero horizon takes fallbackHorizon.
func NormalizeRequest(req models.RunRequest, fallbackHorizon int) (models.RunRequest, error) {
	if req.HorizonDays == 0 && fallbackHorizon > 0 {
		req.HorizonDays = fallbackHorizon
	}
	if err := defaults.Set(&req); err != nil {
		return req, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	if err := requestValidator.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %w", models.ErrInvalidRequest, err)
	}
	return req, nil
}

// Submit takes the run lock, records a pending snapshot and enqueues the run.
func (s *RunService) Submit(ctx context.Context, req models.RunRequest) (models.RunSnapshot, error) {
	req, err := NormalizeRequest(req, s.defaultHorizon)
	if err != nil {
		return models.RunSnapshot{}, err
	}

	id := s.newID()
	ok, err := s.store.AcquireRunLock(ctx, id)
	if err != nil {
		return models.RunSnapshot{}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return models.RunSnapshot{}, models.ErrRunInProgress
	}

	snap := NewRunContext(id, req).Snapshot()
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.release(id)
		return models.RunSnapshot{}, fmt.Errorf("save run snapshot: %w", err)
	}
	if err := s.queue.PublishMessage(ctx, RunJobType, RunJobPayload{RunID: id, Request: req}); err != nil {
		s.release(id)
		return models.RunSnapshot{}, fmt.Errorf("enqueue run: %w", err)
	}

	s.log.Info("forecast run submitted",
		logger.String("run_id", id),
		logger.String("source", req.SourceTag),
		logger.String("initiated_by", req.InitiatedBy))
	return snap, nil
}

// RunNow executes a run in the caller's goroutine. Used by the CLI.
func (s *RunService) RunNow(ctx context.Context, req models.RunRequest) (string, *models.RunSummary, error) {
	req, err := NormalizeRequest(req, s.defaultHorizon)
	if err != nil {
		return "", nil, err
	}
	id := s.newID()
	summary, err := s.Execute(ctx, id, req)
	return id, summary, err
}

// Execute runs the pipeline for runID under the run lock. A lock already held for the
// same runID (taken by Submit) is reused.
func (s *RunService) Execute(ctx context.Context, runID string, req models.RunRequest) (*models.RunSummary, error) {
	ok, err := s.store.AcquireRunLock(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, models.ErrRunInProgress
	}
	defer s.release(runID)

	rc := NewRunContext(runID, req)
	rc.OnUpdate(s.persistSnapshot)

	s.mu.Lock()
	s.active[runID] = rc
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, runID)
		s.mu.Unlock()
	}()

	return s.pipeline.Run(ctx, rc)
}

// Status prefers the live in-process snapshot over the stored one.
func (s *RunService) Status(ctx context.Context, runID string) (models.RunSnapshot, error) {
	s.mu.RLock()
	rc, ok := s.active[runID]
	s.mu.RUnlock()
	if ok {
		return rc.Snapshot(), nil
	}

	snap, err := s.store.Snapshot(ctx, runID)
	if err != nil {
		return models.RunSnapshot{}, err
	}
	if snap == nil {
		return models.RunSnapshot{}, models.ErrRunNotFound
	}
	return *snap, nil
}

func (s *RunService) Latest(ctx context.Context) (models.RunSnapshot, error) {
	snap, err := s.store.Latest(ctx)
	if err != nil {
		return models.RunSnapshot{}, err
	}
	if snap == nil {
		return models.RunSnapshot{}, models.ErrRunNotFound
	}
	if live, err := s.Status(ctx, snap.RunID); err == nil {
		return live, nil
	}
	return *snap, nil
}

func (s *RunService) persistSnapshot(snap models.RunSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.log.Warn("run snapshot not stored", logger.String("run_id", snap.RunID), logger.Error(err))
	}
}

func (s *RunService) release(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.store.ReleaseRunLock(ctx, runID); err != nil {
		s.log.Warn("run lock not released", logger.String("run_id", runID), logger.Error(err))
	}
}

// IsClientError reports errors caused by the caller rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, models.ErrInvalidRequest) || errors.Is(err, models.ErrRunInProgress)
}
