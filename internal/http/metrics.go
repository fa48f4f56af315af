package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/telemetry"
)

const httpInstrumentationName = "github.com/bparpette/MistralHackathon/internal/http"

var responseSizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000}

// HTTPMetrics records request counts, latency and payload sizes per route.
type HTTPMetrics struct {
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics builds the instruments on meter, or on the global meter
// when meter is nil.
func NewHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	in := telemetry.NewInstruments(meter, httpInstrumentationName, logger)
	return &HTTPMetrics{
		requestsTotal: in.Counter("brain.http.requests_total",
			"HTTP requests by method, route and status", "{request}"),
		requestDur: in.Histogram("brain.http.request_duration_seconds",
			"HTTP request duration by method, route and status", "s", telemetry.LatencyBuckets...),
		responseSize: in.IntHistogram("brain.http.response_size_bytes",
			"HTTP response body size by method, route and status", "By", responseSizeBuckets...),
		activeRequests: in.UpDownCounter("brain.http.active_requests",
			"HTTP requests in flight", "{request}"),
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()

			m.activeRequests.Add(ctx, 1)
			defer m.activeRequests.Add(ctx, -1)

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			m.requestsTotal.Add(ctx, 1, attrs)
			m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			m.responseSize.Record(ctx, c.Response().Size, attrs)
			return err
		}
	}
}

// normalizePath returns the route template, which already has parameters
// like :id in place of concrete values. Unmatched requests have no route
// and share one label.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
