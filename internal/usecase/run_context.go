package usecase

import (
	"sync"
	"time"

	"DemandCast/internal/domain/models"
)

// RunContext is the state of one pipeline invocation. Only the pipeline and its batch
// coordinator write to it; pollers read copies through Snapshot.
type RunContext struct {
	ID      string
	Request models.RunRequest

	mu        sync.RWMutex
	snap      models.RunSnapshot
	observers []func(models.RunSnapshot)
}

func NewRunContext(id string, req models.RunRequest) *RunContext {
	now := time.Now().UTC()
	return &RunContext{
		ID:      id,
		Request: req,
		snap: models.RunSnapshot{
			RunID:     id,
			Status:    models.RunPending,
			Request:   req,
			StartedAt: now,
			UpdatedAt: now,
		},
	}
}

// OnUpdate registers fn to receive every snapshot after it is published. Observers run
// on the writer's goroutine and must not block.
func (r *RunContext) OnUpdate(fn func(models.RunSnapshot)) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

func (r *RunContext) Snapshot() models.RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// update applies fn to a copy of the snapshot. Progress never moves backwards, except
// to the fatal marker.
func (r *RunContext) update(fn func(s *models.RunSnapshot)) models.RunSnapshot {
	r.mu.Lock()
	prev := r.snap.Progress
	next := r.snap
	fn(&next)
	if next.Progress != models.ProgressFatal && next.Progress < prev {
		next.Progress = prev
	}
	if next.Progress > models.ProgressDone {
		next.Progress = models.ProgressDone
	}
	next.UpdatedAt = time.Now().UTC()
	r.snap = next
	obs := r.observers
	r.mu.Unlock()

	for _, fn := range obs {
		fn(next)
	}
	return next
}
