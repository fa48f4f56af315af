package brain

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/linking"
	"github.com/bparpette/MistralHackathon/internal/telemetry"
)

const instrumentationName = "github.com/bparpette/MistralHackathon/internal/brain"

// knowledgeMetrics tracks how the shared memory grows and gets used.
type knowledgeMetrics struct {
	added         metric.Int64Counter
	links         metric.Int64Counter
	verifications metric.Int64Counter
	deletions     metric.Int64Counter
	searchHits    metric.Int64Counter
	searchMisses  metric.Int64Counter
}

func newKnowledgeMetrics(meter metric.Meter, logger *zap.Logger) *knowledgeMetrics {
	in := telemetry.NewInstruments(meter, instrumentationName, logger)
	return &knowledgeMetrics{
		added:         in.Counter("brain.memory.added_total", "Total memories added", "{memory}"),
		links:         in.Counter("brain.memory.links_created_total", "Total links created between related memories", "{link}"),
		verifications: in.Counter("brain.memory.verifications_total", "Total verifications recorded", "{verification}"),
		deletions:     in.Counter("brain.memory.deleted_total", "Total memories deleted", "{memory}"),
		// A search that returns nothing is a gap in the team's knowledge.
		searchHits:   in.Counter("brain.search.hits_total", "Searches that returned at least one memory", "{search}"),
		searchMisses: in.Counter("brain.search.misses_total", "Searches that returned no memory", "{search}"),
	}
}

func workspaceAttr(workspaceID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("workspace_id", workspaceID))
}

func (m *knowledgeMetrics) recordAdded(ctx context.Context, workspaceID, category string, link linking.Result) {
	m.added.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workspace_id", workspaceID),
		attribute.String("category", category),
		attribute.String("link_status", link.Status.String()),
	))
	if len(link.LinkedIDs) > 0 {
		m.links.Add(ctx, int64(len(link.LinkedIDs)), workspaceAttr(workspaceID))
	}
}

func (m *knowledgeMetrics) recordVerified(ctx context.Context, workspaceID string) {
	m.verifications.Add(ctx, 1, workspaceAttr(workspaceID))
}

func (m *knowledgeMetrics) recordDeleted(ctx context.Context, workspaceID string) {
	m.deletions.Add(ctx, 1, workspaceAttr(workspaceID))
}

func (m *knowledgeMetrics) recordSearch(ctx context.Context, workspaceID string, results int) {
	if results > 0 {
		m.searchHits.Add(ctx, 1, workspaceAttr(workspaceID))
		return
	}
	m.searchMisses.Add(ctx, 1, workspaceAttr(workspaceID))
}
