package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/brain"
	"github.com/bparpette/MistralHackathon/internal/insights"
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/search"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

const defaultSearchLimit = 5

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_memory",
		Description: "Store a piece of team knowledge and link it to similar memories",
	}, instrument(s, "add_memory", s.addMemory))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_memories",
		Description: "Semantic search over the memories the requester may read, ranked by similarity times confidence with newer memories first on ties",
	}, instrument(s, "search_memories", s.searchMemories))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_team_insights",
		Description: "Summarize a workspace's shared memories: top categories, tags, contributors and most accessed memories. requester_id must name a member of the workspace",
	}, instrument(s, "get_team_insights", s.teamInsights))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "verify_memory",
		Description: "Corroborate a memory, raising its confidence once per requester",
	}, instrument(s, "verify_memory", s.verifyMemory))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_memory",
		Description: "Delete a memory owned by the requester, or any memory of a workspace the requester administers",
	}, instrument(s, "delete_memory", s.deleteMemory))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_memories",
		Description: "Page through the memories of a workspace the requester may read, newest first",
	}, instrument(s, "list_memories", s.listMemories))
}

// instrument wraps a tool body with metrics, logging and error sanitizing.
func instrument[In, Out any](s *Server, tool string, fn func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, tool)
		out, err := fn(ctx, args)
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
		if err != nil {
			if v1.Code(err) == "internal" || v1.Retryable(err) {
				s.logger.Error("tool failed", zap.String("tool", tool), zap.Error(err))
			} else {
				s.logger.Debug("tool rejected", zap.String("tool", tool), zap.Error(err))
			}
			var zero Out
			return nil, zero, errors.New(v1.Message(err))
		}
		return nil, out, nil
	}
}

// memoryView is the wire shape of a memory.
type memoryView struct {
	ID               string   `json:"id"`
	Content          string   `json:"content"`
	Author           string   `json:"author"`
	WorkspaceID      string   `json:"workspace_id"`
	Category         string   `json:"category"`
	Tags             []string `json:"tags"`
	Visibility       string   `json:"visibility"`
	Timestamp        string   `json:"timestamp" jsonschema:"Creation time (RFC 3339)"`
	Confidence       float64  `json:"confidence"`
	Verifiers        []string `json:"verifiers"`
	InteractionCount int64    `json:"interaction_count"`
	RelatedIDs       []string `json:"related_ids"`
}

func viewOf(m *memory.Memory) memoryView {
	return memoryView{
		ID:               m.ID,
		Content:          m.Content,
		Author:           m.OwnerID,
		WorkspaceID:      m.WorkspaceID,
		Category:         m.Category,
		Tags:             nonNil(m.Tags),
		Visibility:       string(m.Visibility),
		Timestamp:        m.CreatedAt.UTC().Format(time.RFC3339),
		Confidence:       m.Confidence,
		Verifiers:        nonNil(m.Verifiers),
		InteractionCount: m.InteractionCount,
		RelatedIDs:       nonNil(m.RelatedIDs),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ===== ADD =====

type addMemoryInput struct {
	Content        string   `json:"content" jsonschema:"The knowledge to store"`
	RequesterID    string   `json:"requester_id" jsonschema:"Identity of the caller, who becomes the owner"`
	WorkspaceID    string   `json:"workspace_id" jsonschema:"Workspace the memory belongs to"`
	Category       string   `json:"category,omitempty" jsonschema:"Category such as api or deploy (default: general)"`
	Tags           []string `json:"tags,omitempty" jsonschema:"Free-form tags"`
	Visibility     string   `json:"visibility,omitempty" jsonschema:"private, team or public (default: team)"`
	ConfidenceHint *float64 `json:"confidence_hint,omitempty" jsonschema:"Initial confidence in [0,1] (default: 0.5)"`
}

type addMemoryOutput struct {
	MemoryID   string   `json:"memory_id"`
	LinkedIDs  []string `json:"linked_ids"`
	Confidence float64  `json:"confidence"`
	LinkStatus string   `json:"link_status" jsonschema:"Outcome of linking, e.g. linked to 2 neighbors"`
}

func (s *Server) addMemory(ctx context.Context, args addMemoryInput) (addMemoryOutput, error) {
	res, err := s.svc.AddMemory(ctx, brain.AddMemoryRequest{
		RequesterID:    args.RequesterID,
		WorkspaceID:    args.WorkspaceID,
		Content:        args.Content,
		Category:       args.Category,
		Tags:           args.Tags,
		Visibility:     args.Visibility,
		ConfidenceHint: args.ConfidenceHint,
	})
	if err != nil {
		return addMemoryOutput{}, err
	}
	return addMemoryOutput{
		MemoryID:   res.Memory.ID,
		LinkedIDs:  nonNil(res.Link.LinkedIDs),
		Confidence: res.Memory.Confidence,
		LinkStatus: res.Link.String(),
	}, nil
}

// ===== SEARCH =====

type searchMemoriesInput struct {
	Query       string `json:"query" jsonschema:"Natural language query"`
	RequesterID string `json:"requester_id" jsonschema:"Identity of the caller"`
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace to search"`
	Limit       *int   `json:"limit,omitempty" jsonschema:"Maximum results (default: 5)"`
	Category    string `json:"category,omitempty" jsonschema:"Only search this category"`
	Visibility  string `json:"visibility,omitempty" jsonschema:"Only return memories with this visibility"`
}

type searchResult struct {
	ID               string   `json:"id"`
	Content          string   `json:"content"`
	Author           string   `json:"author"`
	Category         string   `json:"category"`
	Tags             []string `json:"tags"`
	Visibility       string   `json:"visibility"`
	Timestamp        string   `json:"timestamp"`
	Score            float64  `json:"score" jsonschema:"Combined ranking score"`
	Similarity       float64  `json:"similarity" jsonschema:"Cosine similarity to the query"`
	Confidence       float64  `json:"confidence"`
	Verifiers        []string `json:"verifiers"`
	InteractionCount int64    `json:"interaction_count"`
	RelatedIDs       []string `json:"related_ids"`
}

type searchMemoriesOutput struct {
	Results []searchResult `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) searchMemories(ctx context.Context, args searchMemoriesInput) (searchMemoriesOutput, error) {
	limit := defaultSearchLimit
	if args.Limit != nil {
		limit = *args.Limit
	}
	hits, err := s.svc.SearchMemories(ctx, search.Query{
		Text:        args.Query,
		RequesterID: args.RequesterID,
		WorkspaceID: args.WorkspaceID,
		Limit:       limit,
		Category:    args.Category,
		Visibility:  args.Visibility,
	})
	if err != nil {
		return searchMemoriesOutput{}, err
	}
	out := searchMemoriesOutput{Results: make([]searchResult, 0, len(hits)), Count: len(hits)}
	for _, h := range hits {
		v := viewOf(h.Memory)
		out.Results = append(out.Results, searchResult{
			ID:               v.ID,
			Content:          v.Content,
			Author:           v.Author,
			Category:         v.Category,
			Tags:             v.Tags,
			Visibility:       v.Visibility,
			Timestamp:        v.Timestamp,
			Score:            h.Score,
			Similarity:       h.Similarity,
			Confidence:       v.Confidence,
			Verifiers:        v.Verifiers,
			InteractionCount: v.InteractionCount,
			RelatedIDs:       v.RelatedIDs,
		})
	}
	return out, nil
}

// ===== INSIGHTS =====

type teamInsightsInput struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace to summarize"`
	RequesterID string `json:"requester_id" jsonschema:"Identity of the caller, who must be a member"`
	Timeframe   string `json:"timeframe,omitempty" jsonschema:"day, week, month or all (default: week)"`
}

type memorySummaryView struct {
	ID               string  `json:"id"`
	Content          string  `json:"content"`
	Author           string  `json:"author"`
	Category         string  `json:"category"`
	Confidence       float64 `json:"confidence"`
	InteractionCount int64   `json:"interaction_count"`
	Timestamp        string  `json:"timestamp"`
}

type teamInsightsOutput struct {
	WorkspaceID          string              `json:"workspace_id"`
	Timeframe            string              `json:"timeframe"`
	GeneratedAt          string              `json:"generated_at"`
	TotalMemories        int                 `json:"total_memories"`
	RecentMemories24h    int                 `json:"recent_memories_24h"`
	ImportantRecent      int                 `json:"important_recent"`
	TopCategories        []insights.Count    `json:"top_categories"`
	TopTags              []insights.Count    `json:"top_tags"`
	TopContributors      []insights.Count    `json:"top_contributors"`
	MostAccessedMemories []memorySummaryView `json:"most_accessed_memories"`
}

func (s *Server) teamInsights(ctx context.Context, args teamInsightsInput) (teamInsightsOutput, error) {
	r, err := s.svc.TeamInsights(ctx, args.WorkspaceID, args.RequesterID, args.Timeframe)
	if err != nil {
		return teamInsightsOutput{}, err
	}
	out := teamInsightsOutput{
		WorkspaceID:          r.WorkspaceID,
		Timeframe:            string(r.Timeframe),
		GeneratedAt:          r.GeneratedAt.UTC().Format(time.RFC3339),
		TotalMemories:        r.TotalMemories,
		RecentMemories24h:    r.RecentMemories24h,
		ImportantRecent:      r.ImportantRecent,
		TopCategories:        r.TopCategories,
		TopTags:              r.TopTags,
		TopContributors:      r.TopContributors,
		MostAccessedMemories: make([]memorySummaryView, 0, len(r.MostAccessedMemories)),
	}
	for _, m := range r.MostAccessedMemories {
		out.MostAccessedMemories = append(out.MostAccessedMemories, memorySummaryView{
			ID:               m.ID,
			Content:          m.Content,
			Author:           m.Author,
			Category:         m.Category,
			Confidence:       m.Confidence,
			InteractionCount: m.InteractionCount,
			Timestamp:        m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// ===== VERIFY / DELETE / LIST =====

type verifyMemoryInput struct {
	MemoryID    string `json:"memory_id" jsonschema:"Memory to verify"`
	RequesterID string `json:"requester_id" jsonschema:"Identity of the verifier"`
}

type verifyMemoryOutput struct {
	MemoryID   string   `json:"memory_id"`
	Confidence float64  `json:"confidence"`
	Verifiers  []string `json:"verifiers"`
}

func (s *Server) verifyMemory(ctx context.Context, args verifyMemoryInput) (verifyMemoryOutput, error) {
	m, err := s.svc.VerifyMemory(ctx, args.MemoryID, args.RequesterID)
	if err != nil {
		return verifyMemoryOutput{}, err
	}
	return verifyMemoryOutput{
		MemoryID:   m.ID,
		Confidence: m.Confidence,
		Verifiers:  nonNil(m.Verifiers),
	}, nil
}

type deleteMemoryInput struct {
	MemoryID    string `json:"memory_id" jsonschema:"Memory to delete"`
	RequesterID string `json:"requester_id" jsonschema:"Identity of the caller"`
}

type deleteMemoryOutput struct {
	MemoryID string `json:"memory_id"`
	Deleted  bool   `json:"deleted"`
}

func (s *Server) deleteMemory(ctx context.Context, args deleteMemoryInput) (deleteMemoryOutput, error) {
	if err := s.svc.DeleteMemory(ctx, args.MemoryID, args.RequesterID); err != nil {
		return deleteMemoryOutput{}, err
	}
	return deleteMemoryOutput{MemoryID: args.MemoryID, Deleted: true}, nil
}

type listMemoriesInput struct {
	WorkspaceID string `json:"workspace_id" jsonschema:"Workspace to list"`
	RequesterID string `json:"requester_id" jsonschema:"Identity of the caller"`
	Offset      int    `json:"offset,omitempty" jsonschema:"Index of the first memory to return"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Page size (default: 20, max: 100)"`
}

type listMemoriesOutput struct {
	Memories   []memoryView `json:"memories"`
	NextOffset int          `json:"next_offset" jsonschema:"Offset of the next page, or -1 when exhausted"`
	Total      int          `json:"total"`
}

func (s *Server) listMemories(ctx context.Context, args listMemoriesInput) (listMemoriesOutput, error) {
	page, err := s.svc.ListMemories(ctx, args.WorkspaceID, args.RequesterID, memory.Page{Offset: args.Offset, Limit: args.Limit})
	if err != nil {
		return listMemoriesOutput{}, err
	}
	out := listMemoriesOutput{
		Memories:   make([]memoryView, 0, len(page.Memories)),
		NextOffset: page.NextOffset,
		Total:      page.Total,
	}
	for _, m := range page.Memories {
		out.Memories = append(out.Memories, viewOf(m))
	}
	return out, nil
}
