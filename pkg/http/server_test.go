package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method, route string
	code          int
}

type recorder struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (r *recorder) RecordHTTP(method, route string, code int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedRequest{method, route, code})
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/things/:id", func(c echo.Context) error {
		if c.Param("id") == "boom" {
			panic("kaboom")
		}
		if c.Param("id") == "missing" {
			return AppErrorResponse(c, NotFoundError("no such thing"))
		}
		return SuccessResponse(c, map[string]string{"id": c.Param("id")})
	})
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServerRoutesAndMetrics(t *testing.T) {
	rec := &recorder{}
	s := NewServer([]Handler{routes{}}, WithMetrics(rec, "/metrics"), WithCORS(false))

	res := serve(s, http.MethodGet, "/things/42")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"id":"42"`)

	res = serve(s, http.MethodGet, "/things/missing")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "ERR_NOT_FOUND")

	res = serve(s, http.MethodGet, "/things/boom")
	assert.Equal(t, http.StatusInternalServerError, res.Code)

	res = serve(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, res.Code)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.GreaterOrEqual(t, len(rec.seen), 2)
	assert.Equal(t, recordedRequest{"GET", "/things/:id", 200}, rec.seen[0])
	assert.Equal(t, recordedRequest{"GET", "/things/:id", 404}, rec.seen[1])
}

func TestValidationErrors(t *testing.T) {
	type req struct {
		Horizon int `validate:"gt=0,lte=365"`
	}
	err := validator.New().Struct(req{Horizon: 400})
	got := ValidationErrors(err)
	require.Len(t, got, 1)
	assert.Equal(t, "ERR_LTE", got[0].Code)
	assert.Equal(t, "Horizon must be less than or equal to 365", got[0].Message)
	assert.Equal(t, "365", got[0].Params["max"])

	got = ValidationErrors(errors.New("plain"))
	require.Len(t, got, 1)
	assert.Equal(t, "ERR_UNKNOWN", got[0].Code)

	assert.Nil(t, ValidationErrors(nil))
}
