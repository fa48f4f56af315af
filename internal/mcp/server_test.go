package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/brain"
	"github.com/bparpette/MistralHackathon/internal/memory/memorytest"
)

func newBrain(t *testing.T) *brain.Service {
	t.Helper()
	f := memorytest.New(t)
	svc, err := brain.New(brain.Options{Store: f.Store, Guard: f.Guard, Logger: zap.NewNop()})
	require.NoError(t, err)
	return svc
}

// connect starts s on an in-memory transport and returns a client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := s.mcp.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, tool string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func errorText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	svc := newBrain(t)

	t.Run("successful creation", func(t *testing.T) {
		cfg := &Config{
			Name:    "test-server",
			Version: "1.0.0",
			Logger:  zap.NewNop(),
		}
		server, err := NewServer(cfg, svc)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NotNil(t, server.mcp)
		require.NoError(t, server.Close())
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		server, err := NewServer(nil, svc)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NoError(t, server.Close())
	})

	t.Run("missing brain service", func(t *testing.T) {
		_, err := NewServer(DefaultConfig(), nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "brain service is required")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	require.Equal(t, "collective-brain", cfg.Name)
	require.Equal(t, "0.1.0", cfg.Version)
	require.NotNil(t, cfg.Logger)
}

func TestServer_ListTools(t *testing.T) {
	server, err := NewServer(nil, newBrain(t))
	require.NoError(t, err)
	cs := connect(t, server)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	tools := map[string]*mcp.Tool{}
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		tools[tool.Name] = tool
	}
	assert.ElementsMatch(t, []string{
		"add_memory", "search_memories", "get_team_insights",
		"verify_memory", "delete_memory", "list_memories",
	}, names)

	search := tools["search_memories"].Description
	assert.Contains(t, search, "similarity times confidence")
	assert.NotContains(t, search, "usage")

	insights := tools["get_team_insights"]
	assert.Contains(t, insights.Description, "requester_id")
	schema, err := json.Marshal(insights.InputSchema)
	require.NoError(t, err)
	assert.Contains(t, string(schema), `"requester_id"`)
	assert.Contains(t, string(schema), "must be a member")
}

func TestServer_MemoryLifecycle(t *testing.T) {
	server, err := NewServer(nil, newBrain(t))
	require.NoError(t, err)
	cs := connect(t, server)

	var added addMemoryOutput
	res := call(t, cs, "add_memory", map[string]any{
		"content":      "API returns 429 when rate limit exceeded, fix: add exponential backoff",
		"requester_id": "alice",
		"workspace_id": "ws1",
		"category":     "api",
		"tags":         []string{"api", "rate-limit"},
	}, &added)
	require.False(t, res.IsError)
	require.NotEmpty(t, added.MemoryID)
	assert.Equal(t, 0.8, added.Confidence)
	assert.Empty(t, added.LinkedIDs)

	var found searchMemoriesOutput
	res = call(t, cs, "search_memories", map[string]any{
		"query":        "rate limit 429",
		"requester_id": "bob",
		"workspace_id": "ws1",
	}, &found)
	require.False(t, res.IsError)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, added.MemoryID, found.Results[0].ID)
	assert.Equal(t, "alice", found.Results[0].Author)
	assert.Equal(t, "api", found.Results[0].Category)

	var verified verifyMemoryOutput
	res = call(t, cs, "verify_memory", map[string]any{"memory_id": added.MemoryID, "requester_id": "bob"}, &verified)
	require.False(t, res.IsError)
	assert.InDelta(t, 0.9, verified.Confidence, 1e-9)
	assert.Equal(t, []string{"bob"}, verified.Verifiers)

	var listed listMemoriesOutput
	res = call(t, cs, "list_memories", map[string]any{"workspace_id": "ws1", "requester_id": "bob"}, &listed)
	require.False(t, res.IsError)
	assert.Equal(t, 1, listed.Total)
	assert.Equal(t, -1, listed.NextOffset)

	var report teamInsightsOutput
	res = call(t, cs, "get_team_insights", map[string]any{"workspace_id": "ws1", "requester_id": "bob", "timeframe": "all"}, &report)
	require.False(t, res.IsError)
	assert.Equal(t, 1, report.TotalMemories)
	assert.Equal(t, "all", report.Timeframe)

	res = call(t, cs, "delete_memory", map[string]any{"memory_id": added.MemoryID, "requester_id": "bob"}, nil)
	assert.Equal(t, "forbidden", errorText(t, res))

	var deleted deleteMemoryOutput
	res = call(t, cs, "delete_memory", map[string]any{"memory_id": added.MemoryID, "requester_id": "alice"}, &deleted)
	require.False(t, res.IsError)
	assert.True(t, deleted.Deleted)

	res = call(t, cs, "verify_memory", map[string]any{"memory_id": added.MemoryID, "requester_id": "bob"}, nil)
	assert.Contains(t, errorText(t, res), "not found")
}

func TestServer_ToolErrors(t *testing.T) {
	server, err := NewServer(nil, newBrain(t))
	require.NoError(t, err)
	cs := connect(t, server)

	res := call(t, cs, "add_memory", map[string]any{
		"content":      "   ",
		"requester_id": "alice",
		"workspace_id": "ws1",
	}, nil)
	assert.Contains(t, errorText(t, res), "validation error")

	res = call(t, cs, "add_memory", map[string]any{
		"content":      "dave is not in ws1",
		"requester_id": "dave",
		"workspace_id": "ws1",
	}, nil)
	assert.Equal(t, "forbidden", errorText(t, res))

	res = call(t, cs, "search_memories", map[string]any{
		"query":        "anything",
		"requester_id": "alice",
		"workspace_id": "ws1",
		"limit":        -1,
	}, nil)
	assert.Contains(t, errorText(t, res), "validation error")
}
