package mcp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/telemetry"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

const instrumentationName = "github.com/bparpette/MistralHackathon/internal/mcp"

// Metrics records tool invocations, their latency and their failures.
type Metrics struct {
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	errors         metric.Int64Counter
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics builds the tool instruments on meter, or on the global meter
// when meter is nil.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	in := telemetry.NewInstruments(meter, instrumentationName, logger)
	return &Metrics{
		invocations:    in.Counter("brain.mcp.tool.invocations_total", "MCP tool invocations", "{invocation}"),
		duration:       in.Histogram("brain.mcp.tool.duration_seconds", "MCP tool latency", "s", telemetry.LatencyBuckets...),
		errors:         in.Counter("brain.mcp.tool.errors_total", "MCP tool failures by error class", "{error}"),
		activeRequests: in.UpDownCounter("brain.mcp.tool.active_requests", "MCP tool calls in flight", "{request}"),
	}
}

// RecordInvocation counts one finished call of tool.
func (m *Metrics) RecordInvocation(ctx context.Context, tool string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("reason", categorizeError(err)),
		))
	}
}

func (m *Metrics) IncrementActive(ctx context.Context, tool string) {
	m.activeRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

func (m *Metrics) DecrementActive(ctx context.Context, tool string) {
	m.activeRequests.Add(ctx, -1, metric.WithAttributes(attribute.String("tool", tool)))
}

// categorizeError maps an error to its class in the brain error taxonomy.
func categorizeError(err error) string {
	return v1.Code(err)
}
