package middleware

import (
	"time"

	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics creates a middleware that records Prometheus metrics for HTTP requests
func Metrics(m *monitoring.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Process request
			err := next(c)

			// Record metrics
			duration := time.Since(start)
			method := c.Request().Method
			path := c.Path()
			status := c.Response().Status

			// Get request and response sizes
			reqSize := int(c.Request().ContentLength)
			if reqSize < 0 {
				reqSize = 0
			}
			respSize := int(c.Response().Size)

			m.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)

			return err
		}
	}
}

// MetricsEndpoint wraps promhttp.Handler so Prometheus can scrape the
// process's registered collectors through an echo route.
func MetricsEndpoint() echo.HandlerFunc {
	h := promhttp.Handler()
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}
