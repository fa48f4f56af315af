package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewTestTelemetry returns an exporting instance whose spans and metrics
// stay in process.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	t := &Telemetry{
		config:         cfg,
		tracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	t.setStatus(StateExporting, "")
	return &TestTelemetry{Telemetry: t, spans: spans, reader: reader}
}

// Spans returns the ended spans.
func (t *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return t.spans.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) sdktrace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		names := make([]string, 0, len(t.Spans()))
		for _, span := range t.Spans() {
			names = append(names, span.Name())
		}
		tb.Errorf("span %q not recorded, got %v", name, names)
	}
}

func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, want any) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not recorded", spanName)
	}
	for _, kv := range span.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := attrValue(kv.Value); got != want {
			tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, want)
		}
		return
	}
	tb.Errorf("span %q has no attribute %q", spanName, key)
}

func attrValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}

// Collect reads the current metric state.
func (t *TestTelemetry) Collect(tb testing.TB) metricdata.ResourceMetrics {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	return rm
}

// Counter sums every data point of the int64 sum called name, across all
// attribute sets. Missing instruments read as zero.
func (t *TestTelemetry) Counter(tb testing.TB, name string) int64 {
	tb.Helper()
	var total int64
	for _, m := range t.metrics(tb, name) {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

// HistogramCount is the number of observations of the histogram called
// name, float64 or int64.
func (t *TestTelemetry) HistogramCount(tb testing.TB, name string) uint64 {
	tb.Helper()
	var count uint64
	for _, m := range t.metrics(tb, name) {
		switch h := m.Data.(type) {
		case metricdata.Histogram[float64]:
			for _, dp := range h.DataPoints {
				count += dp.Count
			}
		case metricdata.Histogram[int64]:
			for _, dp := range h.DataPoints {
				count += dp.Count
			}
		}
	}
	return count
}

func (t *TestTelemetry) metrics(tb testing.TB, name string) []metricdata.Metrics {
	tb.Helper()
	var out []metricdata.Metrics
	rm := t.Collect(tb)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				out = append(out, m)
			}
		}
	}
	return out
}
