package brain

import (
	"context"

	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
)

// hideUnreadableLinks narrows RelatedIDs to memories requesterID may read.
// Links are symmetric, so a team memory can point at its author's private
// note; other readers must not learn that id.
func (s *Service) hideUnreadableLinks(ctx context.Context, requesterID string, ms ...*memory.Memory) {
	filters := make(map[string]*vectorstore.Filter)
	for _, m := range ms {
		if m == nil || len(m.RelatedIDs) == 0 {
			continue
		}
		filter, ok := filters[m.WorkspaceID]
		if !ok {
			var err error
			filter, err = s.guard.ReadFilter(ctx, requesterID, m.WorkspaceID)
			if err != nil {
				s.logger.Warn("failed to resolve read filter for related memories",
					zap.String("memory_id", m.ID), zap.Error(err))
			}
			filters[m.WorkspaceID] = filter
		}

		visible := make([]string, 0, len(m.RelatedIDs))
		if filter != nil {
			for _, id := range m.RelatedIDs {
				related, err := s.store.Get(ctx, id)
				if err != nil {
					continue
				}
				if filter.Matches(related.Payload()) {
					visible = append(visible, id)
				}
			}
		}
		m.RelatedIDs = visible
	}
}
