package api

import (
	"errors"
	"net/http"
	"time"

	"DemandCast/internal/domain/models"
	xhttp "DemandCast/pkg/http"
	xlogger "DemandCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	defaultStreamInterval = time.Second
	minStreamInterval     = 200 * time.Millisecond
	streamWriteWait       = 5 * time.Second
)

// RunStreamHandler pushes run snapshots over a websocket until the run is terminal.
type RunStreamHandler struct {
	logger   *xlogger.Logger
	runs     RunService
	upgrader websocket.Upgrader
}

func NewRunStreamHandler(logger *xlogger.Logger, runs RunService) *RunStreamHandler {
	return &RunStreamHandler{
		logger: logger,
		runs:   runs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *RunStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/forecast/runs/:id/stream", h.Stream)
}

// Stream sends a snapshot whenever progress, counts or status change. ?interval_ms sets the poll period.
func (h *RunStreamHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("id")

	// 404 before the upgrade so plain HTTP clients get a normal error.
	snap, err := h.runs.Status(ctx, runID)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			return xhttp.NotFoundResponse(c, err.Error())
		}
		return xhttp.AppErrorResponse(c, err)
	}

	interval := time.Duration(xhttp.ParseIntDefault(c.QueryParam("interval_ms"), 0)) * time.Millisecond
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	interval = max(interval, minStreamInterval)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()
	log := h.logger.With(xlogger.String("run_id", runID))

	// read pump; only control frames and close are expected
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *models.RunSnapshot
	for {
		if last == nil || changed(*last, snap) {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				log.Debug("run stream write failed", xlogger.Error(err))
				return nil
			}
			s := snap
			last = &s
		}
		if snap.Status.Terminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Status)),
				time.Now().Add(streamWriteWait))
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case <-ticker.C:
		}

		next, err := h.runs.Status(ctx, runID)
		if err != nil {
			log.Warn("run stream status failed", xlogger.Error(err))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "status unavailable"),
				time.Now().Add(streamWriteWait))
			return nil
		}
		snap = next
	}
}

func changed(a, b models.RunSnapshot) bool {
	return a.Status != b.Status || a.Progress != b.Progress || a.Completed != b.Completed || a.Total != b.Total
}
