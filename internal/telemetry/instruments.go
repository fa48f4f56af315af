package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// LatencyBuckets are histogram bounds in seconds for request, tool and
// embedding latencies.
var LatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Instruments creates metric instruments on one meter. An instrument the
// SDK rejects is logged and replaced by a no-op, so record sites never
// check for nil.
type Instruments struct {
	meter  metric.Meter
	logger *zap.Logger
}

// NewInstruments builds on meter, or on the global meter for scope when
// meter is nil.
func NewInstruments(meter metric.Meter, scope string, logger *zap.Logger) *Instruments {
	if meter == nil {
		meter = otel.Meter(scope)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instruments{meter: meter, logger: logger}
}

func (b *Instruments) Counter(name, description, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		b.rejected(name, err)
		return noop.Int64Counter{}
	}
	return c
}

func (b *Instruments) UpDownCounter(name, description, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		b.rejected(name, err)
		return noop.Int64UpDownCounter{}
	}
	return c
}

func (b *Instruments) Histogram(name, description, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	if err != nil {
		b.rejected(name, err)
		return noop.Float64Histogram{}
	}
	return h
}

func (b *Instruments) IntHistogram(name, description, unit string, bounds ...float64) metric.Int64Histogram {
	opts := []metric.Int64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := b.meter.Int64Histogram(name, opts...)
	if err != nil {
		b.rejected(name, err)
		return noop.Int64Histogram{}
	}
	return h
}

func (b *Instruments) rejected(name string, err error) {
	b.logger.Warn("metric instrument rejected, recording disabled",
		zap.String("instrument", name), zap.Error(err))
}
