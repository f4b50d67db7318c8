package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"DemandCast/internal/domain/models"
	xhttp "DemandCast/pkg/http"
	xlogger "DemandCast/pkg/logger"
	xutil "DemandCast/pkg/util"

	"github.com/labstack/echo/v4"
)

const defaultAccuracyDays = 30

type RunService interface {
	Submit(ctx context.Context, req models.RunRequest) (models.RunSnapshot, error)
	Status(ctx context.Context, runID string) (models.RunSnapshot, error)
	Latest(ctx context.Context) (models.RunSnapshot, error)
}

type AccuracyReporter interface {
	Report(ctx context.Context, from, to time.Time) (*models.AccuracyReport, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// ForecastEchoHandler serves run submission, run status and accuracy reports.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	runs     RunService
	accuracy AccuracyReporter
	checks   map[string]HealthCheck
	now      func() time.Time
}

func NewForecastEchoHandler(logger *xlogger.Logger, runs RunService, accuracy AccuracyReporter, checks map[string]HealthCheck) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, runs: runs, accuracy: accuracy, checks: checks, now: time.Now}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1/forecast")
	g.POST("/runs", h.SubmitRun)
	g.GET("/runs/latest", h.LatestRun)
	g.GET("/runs/:id", h.RunStatus)
	g.GET("/accuracy", h.Accuracy)
}

// SubmitRun answers 202 with the pending snapshot, 409 when a run is active.
func (h *ForecastEchoHandler) SubmitRun(c echo.Context) error {
	var req models.RunRequest
	if err := c.Bind(&req); err != nil {
		return xhttp.BadRequestResponse(c, xhttp.ValidationErrors(err))
	}
	if req.SourceTag == "" {
		req.SourceTag = "api"
	}

	snap, err := h.runs.Submit(c.Request().Context(), req)
	switch {
	case err == nil:
		return xhttp.AcceptedResponse(c, snap)
	case errors.Is(err, models.ErrInvalidRequest):
		return xhttp.BadRequestResponse(c, xhttp.ValidationErrors(err))
	case errors.Is(err, models.ErrRunInProgress):
		return xhttp.ConflictResponse(c, err.Error())
	default:
		h.logger.Error("submit run failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

func (h *ForecastEchoHandler) RunStatus(c echo.Context) error {
	snap, err := h.runs.Status(c.Request().Context(), c.Param("id"))
	return h.snapshotResponse(c, snap, err)
}

func (h *ForecastEchoHandler) LatestRun(c echo.Context) error {
	snap, err := h.runs.Latest(c.Request().Context())
	return h.snapshotResponse(c, snap, err)
}

func (h *ForecastEchoHandler) snapshotResponse(c echo.Context, snap models.RunSnapshot, err error) error {
	if errors.Is(err, models.ErrRunNotFound) {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	if err != nil {
		h.logger.Error("run status lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !snap.Status.Terminal() {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	}
	return xhttp.SuccessResponse(c, snap)
}

// Accuracy takes from/to dates; without from it looks back ?days (30) from to,
// and to defaults to yesterday.
func (h *ForecastEchoHandler) Accuracy(c echo.Context) error {
	to := xutil.TruncateDay(h.now()).AddDate(0, 0, -1)
	if s := c.QueryParam("to"); s != "" {
		t, ok := xhttp.ParseDate(s)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to date %q", s))
		}
		to = t
	}
	days := xhttp.ParseIntDefault(c.QueryParam("days"), defaultAccuracyDays)
	if days <= 0 {
		days = defaultAccuracyDays
	}
	from := to.AddDate(0, 0, -(days - 1))
	if s := c.QueryParam("from"); s != "" {
		t, ok := xhttp.ParseDate(s)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from date %q", s))
		}
		from = t
	}

	rep, err := h.accuracy.Report(c.Request().Context(), from, to)
	if errors.Is(err, models.ErrInvalidRequest) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	if err != nil {
		h.logger.Error("accuracy report failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}
