package models

import "time"

// RunRequest is the trigger contract shared by the API, the scheduler topic and the CLI.
type RunRequest struct {
	HorizonDays int     `json:"forecast_horizon_days" default:"60" validate:"gt=0,lte=365"`
	StoreIDs    []int64 `json:"store_ids" validate:"omitempty,dive,gt=0"`
	SourceTag   string  `json:"run_source_tag" default:"manual" validate:"required,max=64"`
	InitiatedBy string  `json:"initiated_by" default:"system" validate:"required,max=128"`
}

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunError
}

// Progress milestones of one run. ProgressFatal is reported only for fatal errors.
const (
	ProgressDiscovered   = 10
	ProgressForecastCap  = 85
	ProgressConsolidated = 90
	ProgressPersisted    = 95
	ProgressDone         = 100
	ProgressFatal        = -1
)

// RunSnapshot is the immutable view a poller sees.
type RunSnapshot struct {
	RunID     string      `json:"run_id"`
	Status    RunStatus   `json:"status"`
	Progress  int         `json:"progress_percent"`
	Completed int         `json:"completed_count"`
	Total     int         `json:"total_count"`
	Summary   *RunSummary `json:"terminal_summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	Request   RunRequest  `json:"request"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// StoreAggregate accumulates evaluated MAPE per store.
type StoreAggregate struct {
	Total   int     `json:"total"`
	MAPESum float64 `json:"mape_sum"`
}

// RunIssue is one error recorded against a batch or entity.
type RunIssue struct {
	Batch  int    `json:"batch"`
	Entity string `json:"entity,omitempty"`
	Error  string `json:"error"`
}

// RunSummary is the terminal report of a run.
type RunSummary struct {
	TotalItems    int                      `json:"total_items"`
	Successful    int                      `json:"successful"`
	Failed        int                      `json:"failed"`
	Skipped       int                      `json:"skipped"`
	RowsPersisted int                      `json:"rows_persisted"`
	ByModel       map[Technique]int        `json:"by_model"`
	ByStore       map[int64]StoreAggregate `json:"by_store"`
	Errors        []RunIssue               `json:"errors,omitempty"`
	Warnings      []string                 `json:"warnings,omitempty"`
	AvgMAPE       float64                  `json:"avg_mape"`
	MedianMAPE    float64                  `json:"median_mape"`
	StdMAPE       float64                  `json:"std_mape"`
	AvgRMSE       float64                  `json:"avg_rmse"`
	AvgMAE        float64                  `json:"avg_mae"`
	AvgBatchTime  time.Duration            `json:"avg_batch_time"`
	ExecutionTime time.Duration            `json:"execution_time"`
}

// SuccessRate is successful over total, in percent.
func (s RunSummary) SuccessRate() float64 {
	if s.TotalItems == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.TotalItems) * 100
}

// RunEvent is published on every lifecycle transition of a run.
type RunEvent struct {
	RunID     string      `json:"run_id"`
	Status    RunStatus   `json:"status"`
	Progress  int         `json:"progress_percent"`
	Source    string      `json:"source"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
