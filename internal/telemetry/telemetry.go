package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// State is where the export pipeline stands.
type State string

const (
	StateDisabled  State = "disabled"
	StateExporting State = "exporting"
	StateDegraded  State = "degraded"
	StateStopped   State = "stopped"
)

// Status is reported by the health endpoint.
type Status struct {
	State State `json:"state"`
	// Reason is set when State is degraded.
	Reason string `json:"reason,omitempty"`
}

// String renders "degraded: <reason>" or the bare state.
func (s Status) String() string {
	if s.Reason == "" {
		return string(s.State)
	}
	return string(s.State) + ": " + s.Reason
}

// Telemetry owns the tracer and meter providers of the process.
type Telemetry struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	status         atomic.Pointer[Status]
}

// New validates cfg and, when enabled, installs OTLP-backed providers as
// the globals along with the W3C propagator. An exporter that cannot be
// built leaves the instance degraded instead of failing startup.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		t.setStatus(StateDisabled, "")
		return t, nil
	}
	t.setStatus(StateExporting, "")

	res := newResource(cfg)
	var failures []string
	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		failures = append(failures, err.Error())
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}
	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		failures = append(failures, err.Error())
	} else {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}
	if len(failures) > 0 {
		t.setStatus(StateDegraded, strings.Join(failures, "; "))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Tracer returns a tracer from the owned provider, or the global one when
// export is off.
func (t *Telemetry) Tracer(scope string) trace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.Tracer(scope)
	}
	return t.tracerProvider.Tracer(scope)
}

// Meter returns a meter from the owned provider, or the global one when
// export is off.
func (t *Telemetry) Meter(scope string) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.Meter(scope)
	}
	return t.meterProvider.Meter(scope)
}

// LoggerProvider feeds the otelzap bridge. It is nil when export is off;
// otherwise it is the global log provider, which a host process may
// replace with an exporting one.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.Status().State == StateDisabled {
		return nil
	}
	return global.GetLoggerProvider()
}

// Status reports the pipeline state. A nil Telemetry is disabled.
func (t *Telemetry) Status() Status {
	if t == nil {
		return Status{State: StateDisabled}
	}
	if s := t.status.Load(); s != nil {
		return *s
	}
	return Status{State: StateDisabled}
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if t.Status().State != StateDisabled {
		t.setStatus(StateStopped, "")
	}
	return errors.Join(errs...)
}

func (t *Telemetry) setStatus(state State, reason string) {
	t.status.Store(&Status{State: state, Reason: reason})
}
