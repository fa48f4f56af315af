package brain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/memory/memorytest"
	"github.com/bparpette/MistralHackathon/internal/telemetry"
)

func TestService_Spans(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	f := memorytest.New(t)
	svc, err := New(Options{
		Store:  f.Store,
		Guard:  f.Guard,
		Logger: zap.NewNop(),
		Tracer: tel.Tracer(instrumentationName),
	})
	require.NoError(t, err)
	ctx := context.Background()

	res := add(t, svc, AddMemoryRequest{Content: "deploys freeze on fridays", Category: "process"})
	tel.AssertSpanExists(t, "brain.AddMemory")
	tel.AssertSpanAttribute(t, "brain.AddMemory", "workspace_id", "ws1")
	tel.AssertSpanAttribute(t, "brain.AddMemory", "category", "process")
	tel.AssertSpanAttribute(t, "brain.AddMemory", "memory_id", res.Memory.ID)

	err = svc.DeleteMemory(ctx, res.Memory.ID, "bob")
	require.Error(t, err)

	span := tel.SpanByName("brain.DeleteMemory")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "forbidden", span.Status().Description)
}
