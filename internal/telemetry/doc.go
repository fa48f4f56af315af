// Package telemetry wires OpenTelemetry tracing and metrics for the brain.
//
// When enabled, New installs a TracerProvider and a MeterProvider that
// export over OTLP (gRPC by default, or HTTP/protobuf) and sets the W3C
// trace context propagator. When disabled every accessor falls back to the
// global no-op providers.
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// An exporter that cannot be built does not stop the service. Status
// reports the instance as degraded with the reason, and /health shows it.
//
// Packages create their meters through Instruments, which swaps any
// instrument the SDK rejects for a no-op:
//
//	in := telemetry.NewInstruments(tel.Meter(scope), scope, logger)
//	added := in.Counter("brain.memory.added_total", "Memories stored", "{memory}")
//
// Tests use NewTestTelemetry, which keeps spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
//	assert.Equal(t, int64(1), tt.Counter(t, "brain.memory.added_total"))
package telemetry
