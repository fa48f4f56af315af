package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/telemetry"
)

const embeddingsInstrumentationName = "github.com/bparpette/MistralHackathon/internal/embeddings"

var batchSizeBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500}

// instrumented measures every call into a provider, whichever backend
// serves it.
type instrumented struct {
	Provider
	documents metric.MeasurementOption
	query     metric.MeasurementOption

	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

func instrument(p Provider, provider, model string, meter metric.Meter, logger *zap.Logger) *instrumented {
	in := telemetry.NewInstruments(meter, embeddingsInstrumentationName, logger)
	attrs := func(op string) metric.MeasurementOption {
		return metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
			attribute.String("operation", op),
		)
	}
	return &instrumented{
		Provider:  p,
		documents: attrs("embed_documents"),
		query:     attrs("embed_query"),
		duration: in.Histogram("brain.embedding.generation_duration_seconds",
			"Embedding latency by provider, model and operation", "s", telemetry.LatencyBuckets...),
		batchSize: in.IntHistogram("brain.embedding.batch_size",
			"Texts per embedding call", "{text}", batchSizeBuckets...),
		errors: in.Counter("brain.embedding.errors_total",
			"Failed embedding calls by provider, model and operation", "{error}"),
	}
}

func (p *instrumented) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := p.Provider.EmbedDocuments(ctx, texts)
	p.record(ctx, p.documents, start, len(texts), err)
	return vectors, err
}

func (p *instrumented) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := p.Provider.EmbedQuery(ctx, text)
	p.record(ctx, p.query, start, 1, err)
	return vector, err
}

func (p *instrumented) record(ctx context.Context, attrs metric.MeasurementOption, start time.Time, batch int, err error) {
	p.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	p.batchSize.Record(ctx, int64(batch), attrs)
	if err != nil {
		p.errors.Add(ctx, 1, attrs)
	}
}
