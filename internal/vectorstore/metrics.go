package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts index operations.
	// Labels: backend, op, result (success, not_found, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brain",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector index operations",
		},
		[]string{"backend", "op", "result"},
	)

	// OperationDuration tracks how long index operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brain",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector index operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	// SearchResults tracks how many hits a search returns.
	SearchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brain",
			Subsystem: "vectorstore",
			Name:      "search_results",
			Help:      "Number of points returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 400},
		},
		[]string{"backend"},
	)
)

// Instrumented decorates an Index with Prometheus metrics.
type Instrumented struct {
	next    Index
	backend string
}

// NewInstrumented wraps next. backend labels every sample.
func NewInstrumented(next Index, backend string) *Instrumented {
	if backend == "" {
		backend = "chromem"
	}
	return &Instrumented{next: next, backend: backend}
}

func (m *Instrumented) observe(op string, start time.Time, err error) {
	OperationDuration.WithLabelValues(m.backend, op).Observe(time.Since(start).Seconds())
	result := "success"
	switch {
	case errors.Is(err, ErrPointNotFound), errors.Is(err, ErrCollectionNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	OperationsTotal.WithLabelValues(m.backend, op, result).Inc()
}

// EnsureCollection implements Index.
func (m *Instrumented) EnsureCollection(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { m.observe("ensure_collection", start, err) }(time.Now())
	return m.next.EnsureCollection(ctx, name)
}

// ListCollections implements Index.
func (m *Instrumented) ListCollections(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { m.observe("list_collections", start, err) }(time.Now())
	return m.next.ListCollections(ctx)
}

// Upsert implements Index.
func (m *Instrumented) Upsert(ctx context.Context, collection string, points ...Point) (err error) {
	defer func(start time.Time) { m.observe("upsert", start, err) }(time.Now())
	return m.next.Upsert(ctx, collection, points...)
}

// Get implements Index.
func (m *Instrumented) Get(ctx context.Context, collection, id string) (p *Point, err error) {
	defer func(start time.Time) { m.observe("get", start, err) }(time.Now())
	return m.next.Get(ctx, collection, id)
}

// Delete implements Index.
func (m *Instrumented) Delete(ctx context.Context, collection string, ids ...string) (err error) {
	defer func(start time.Time) { m.observe("delete", start, err) }(time.Now())
	return m.next.Delete(ctx, collection, ids...)
}

// Search implements Index.
func (m *Instrumented) Search(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) (hits []ScoredPoint, err error) {
	defer func(start time.Time) {
		m.observe("search", start, err)
		if err == nil {
			SearchResults.WithLabelValues(m.backend).Observe(float64(len(hits)))
		}
	}(time.Now())
	return m.next.Search(ctx, collection, vector, limit, filter)
}

// Scroll implements Index.
func (m *Instrumented) Scroll(ctx context.Context, collection string, filter *Filter) (points []Point, err error) {
	defer func(start time.Time) { m.observe("scroll", start, err) }(time.Now())
	return m.next.Scroll(ctx, collection, filter)
}

// Close implements Index.
func (m *Instrumented) Close() error {
	return m.next.Close()
}

var _ Index = (*Instrumented)(nil)
