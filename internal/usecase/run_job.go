package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/logger"
	"DemandCast/pkg/queue"
)

// RunJob executes submitted runs from the Redis queue.
type RunJob struct {
	runs *RunService
	log  *logger.Logger
}

func NewRunJob(runs *RunService, log *logger.Logger) *RunJob {
	return &RunJob{runs: runs, log: log}
}

func (j *RunJob) Name() string { return "forecast-run" }
func (j *RunJob) Type() string { return RunJobType }

// Handle returns an error only when a retry could help: fatal pipeline failures and a
// lock held by another run.
func (j *RunJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[RunJobPayload](payload)
	if err != nil || p.RunID == "" {
		j.log.Error("malformed run job dropped", logger.Error(err))
		return nil
	}

	_, err = j.runs.Execute(ctx, p.RunID, p.Request)
	switch {
	case err == nil:
		return nil
	case IsFatal(err), errors.Is(err, models.ErrRunInProgress):
		return err
	default:
		j.log.Warn("run job finished with error", logger.String("run_id", p.RunID), logger.Error(err))
		return nil
	}
}
