package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// HTTPRecorder receives one observation per request.
type HTTPRecorder interface {
	RecordHTTP(method, route string, code int, d time.Duration)
}

// Metrics labels by the route template (c.Path) to keep cardinality low. Handler
// errors are rendered here so the recorded status is the one sent.
func Metrics(rec HTTPRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			rec.RecordHTTP(c.Request().Method, route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
