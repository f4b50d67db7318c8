package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/logger"
)

// TriggerHandler accepts run requests from the scheduler topic.
type TriggerHandler struct {
	topic string
	runs  *RunService
	log   *logger.Logger
}

func NewTriggerHandler(topic string, runs *RunService, log *logger.Logger) *TriggerHandler {
	return &TriggerHandler{topic: topic, runs: runs, log: log}
}

func (h *TriggerHandler) Topic() string { return h.topic }

func (h *TriggerHandler) Handle(ctx context.Context, data []byte) error {
	var req models.RunRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.log.Warn("invalid trigger message", logger.Error(err))
		return nil
	}
	if req.SourceTag == "" {
		req.SourceTag = "scheduler"
	}

	snap, err := h.runs.Submit(ctx, req)
	switch {
	case err == nil:
		h.log.Info("scheduled run accepted", logger.String("run_id", snap.RunID))
		return nil
	case errors.Is(err, models.ErrRunInProgress):
		h.log.Warn("scheduled run ignored, another run is in flight")
		return nil
	case errors.Is(err, models.ErrInvalidRequest):
		h.log.Warn("scheduled run rejected", logger.Error(err))
		return nil
	default:
		return err
	}
}
