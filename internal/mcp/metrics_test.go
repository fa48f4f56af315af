package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/telemetry"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

func TestMetrics_RecordInvocation(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	m := NewMetrics(tel.Meter(instrumentationName), zap.NewNop())
	ctx := context.Background()

	m.RecordInvocation(ctx, "add_memory", 100*time.Millisecond, nil)
	m.RecordInvocation(ctx, "add_memory", 50*time.Millisecond, fmt.Errorf("%w: content is empty", v1.ErrValidation))

	assert.Equal(t, int64(2), tel.Counter(t, "brain.mcp.tool.invocations_total"))
	assert.Equal(t, uint64(2), tel.HistogramCount(t, "brain.mcp.tool.duration_seconds"))
	assert.Equal(t, int64(1), tel.Counter(t, "brain.mcp.tool.errors_total"))
}

func TestMetrics_ActiveRequests(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	m := NewMetrics(tel.Meter(instrumentationName), zap.NewNop())
	ctx := context.Background()

	m.IncrementActive(ctx, "search_memories")
	m.IncrementActive(ctx, "search_memories")
	m.DecrementActive(ctx, "search_memories")

	assert.Equal(t, int64(1), tel.Counter(t, "brain.mcp.tool.active_requests"))
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"validation", fmt.Errorf("%w: limit must be positive", v1.ErrValidation), "validation_error"},
		{"forbidden", fmt.Errorf("%w: not a member", v1.ErrForbidden), "forbidden"},
		{"not found", fmt.Errorf("%w: memory m-1", v1.ErrNotFound), "not_found"},
		{"timeout", fmt.Errorf("embed: %w", v1.ErrTimeout), "timeout"},
		{"embedding", v1.ErrEmbeddingUnavailable, "embedding_unavailable"},
		{"index", v1.ErrIndexUnavailable, "index_unavailable"},
		{"conflict", v1.ErrConflict, "conflict"},
		{"unclassified", errors.New("something went wrong"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, categorizeError(tt.err))
		})
	}
}
