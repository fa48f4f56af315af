package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/config"
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/memory/memorytest"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

func newEngine(t *testing.T, store Store, f *memorytest.Fixture) *Engine {
	t.Helper()
	e, err := NewEngine(store, f.Guard, zap.NewNop())
	require.NoError(t, err)
	return e
}

func ids(results []ScoredMemory) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Memory.ID)
	}
	return out
}

func TestEngine_Validation(t *testing.T) {
	f := memorytest.New(t)
	e := newEngine(t, f.Store, f)
	ctx := context.Background()

	_, err := e.Search(ctx, Query{Text: " ", RequesterID: "alice", WorkspaceID: "ws1", Limit: 5})
	assert.ErrorIs(t, err, v1.ErrValidation)

	_, err = e.Search(ctx, Query{Text: "x", RequesterID: "alice", WorkspaceID: "ws1", Limit: 0})
	assert.ErrorIs(t, err, v1.ErrValidation)

	_, err = e.Search(ctx, Query{Text: "x", RequesterID: "alice", WorkspaceID: "ws1", Limit: 5, Visibility: "secret"})
	assert.ErrorIs(t, err, v1.ErrValidation)
}

func TestEngine_EmptyIndex(t *testing.T) {
	f := memorytest.New(t)
	e := newEngine(t, f.Store, f)

	results, err := e.Search(context.Background(), Query{Text: "anything", RequesterID: "alice", WorkspaceID: "ws1", Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestEngine_RanksBySimilarityTimesConfidence(t *testing.T) {
	f := memorytest.New(t)
	e := newEngine(t, f.Store, f)

	loose := f.Create(t, memory.CreateRequest{Content: "postgres connection pool exhausted under heavy load"})
	exact := f.Create(t, memory.CreateRequest{Content: "postgres connection pool exhausted", ConfidenceHint: memorytest.Hint(0.9), Category: "ops"})
	f.Create(t, memory.CreateRequest{Content: "quarterly offsite agenda and venue"})

	results, err := e.Search(context.Background(), Query{
		Text: "postgres connection pool exhausted", RequesterID: "bob", WorkspaceID: "ws1", Limit: 2,
	})
	require.NoError(t, err)
	require.Equal(t, []string{exact.ID, loose.ID}, ids(results))

	top := results[0]
	assert.InDelta(t, 1.0, top.Similarity, 1e-4)
	assert.InDelta(t, top.Similarity*0.9, top.Score, 1e-9)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestEngine_RespectsPermissions(t *testing.T) {
	f := memorytest.New(t)
	e := newEngine(t, f.Store, f)
	ctx := context.Background()

	team := f.Create(t, memory.CreateRequest{Content: "deploy checklist lives in the wiki"})
	private := f.Create(t, memory.CreateRequest{Content: "deploy checklist draft notes", Visibility: "private"})
	public := f.Create(t, memory.CreateRequest{Content: "deploy checklist public summary", Visibility: "public"})
	f.Create(t, memory.CreateRequest{Content: "deploy checklist for ws2", OwnerID: "dave", WorkspaceID: "ws2"})

	q := Query{Text: "deploy checklist", WorkspaceID: "ws1", Limit: 10}

	q.RequesterID = "alice"
	results, err := e.Search(ctx, q)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{team.ID, private.ID, public.ID}, ids(results))

	q.RequesterID = "bob"
	results, err = e.Search(ctx, q)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{team.ID, public.ID}, ids(results))

	q.RequesterID = "dave"
	results, err = e.Search(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{public.ID}, ids(results))

	q.RequesterID = "bob"
	q.Visibility = "public"
	results, err = e.Search(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{public.ID}, ids(results))
}

func TestEngine_CategoryFilter(t *testing.T) {
	f := memorytest.New(t)
	e := newEngine(t, f.Store, f)

	ops := f.Create(t, memory.CreateRequest{Content: "restart the queue workers", Category: "Ops"})
	f.Create(t, memory.CreateRequest{Content: "restart the queue workers weekly"})

	results, err := e.Search(context.Background(), Query{
		Text: "restart queue workers", RequesterID: "bob", WorkspaceID: "ws1", Limit: 5, Category: "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ops.ID}, ids(results))

	results, err = e.Search(context.Background(), Query{
		Text: "restart queue workers", RequesterID: "bob", WorkspaceID: "ws1", Limit: 5, Category: "unused",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_TouchesResults(t *testing.T) {
	f := memorytest.New(t)
	e := newEngine(t, f.Store, f)
	m := f.Create(t, memory.CreateRequest{Content: "feature flags are in launchdarkly"})
	q := Query{Text: "feature flags", RequesterID: "bob", WorkspaceID: "ws1", Limit: 1}

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Memory.InteractionCount)

	results, err = e.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), results[0].Memory.InteractionCount)

	stored, err := f.Store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.InteractionCount)
}

func TestEngine_ClampsLimit(t *testing.T) {
	f := memorytest.New(t, func(c *config.MemoryConfig) { c.MaxSearchLimit = 2 })
	e := newEngine(t, f.Store, f)
	for i := 0; i < 4; i++ {
		f.Create(t, memory.CreateRequest{Content: "release train notes"})
	}

	results, err := e.Search(context.Background(), Query{Text: "release train", RequesterID: "bob", WorkspaceID: "ws1", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

// flakyStore overrides selected Store calls.
type flakyStore struct {
	*memory.Store
	touchErr   map[string]error
	nearestErr error
}

func (s *flakyStore) Touch(ctx context.Context, id string) (*memory.Memory, error) {
	if err, ok := s.touchErr[id]; ok {
		return nil, err
	}
	return s.Store.Touch(ctx, id)
}

func (s *flakyStore) Nearest(ctx context.Context, collection string, vector []float32, k int, filter *vectorstore.Filter) ([]memory.Candidate, error) {
	if s.nearestErr != nil {
		return nil, s.nearestErr
	}
	return s.Store.Nearest(ctx, collection, vector, k, filter)
}

func TestEngine_TouchFailures(t *testing.T) {
	f := memorytest.New(t)
	gone := f.Create(t, memory.CreateRequest{Content: "cache warmup job"})
	flaky := f.Create(t, memory.CreateRequest{Content: "cache warmup job schedule"})
	fine := f.Create(t, memory.CreateRequest{Content: "cache warmup job owner"})

	store := &flakyStore{Store: f.Store, touchErr: map[string]error{
		gone.ID:  v1.ErrNotFound,
		flaky.ID: errors.New("index hiccup"),
	}}
	e := newEngine(t, store, f)

	results, err := e.Search(context.Background(), Query{Text: "cache warmup job", RequesterID: "bob", WorkspaceID: "ws1", Limit: 5})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{flaky.ID, fine.ID}, ids(results))
	for _, r := range results {
		if r.Memory.ID == flaky.ID {
			assert.Equal(t, int64(0), r.Memory.InteractionCount)
		}
	}
}

func TestEngine_IndexFailure(t *testing.T) {
	f := memorytest.New(t)
	f.Create(t, memory.CreateRequest{Content: "something"})
	f.Create(t, memory.CreateRequest{Content: "something else", Category: "ops"})

	store := &flakyStore{Store: f.Store, nearestErr: v1.ErrIndexUnavailable}
	e := newEngine(t, store, f)

	_, err := e.Search(context.Background(), Query{Text: "something", RequesterID: "bob", WorkspaceID: "ws1", Limit: 5})
	assert.ErrorIs(t, err, v1.ErrIndexUnavailable)
}

func TestRank(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, conf float64, created time.Time) *memory.Memory {
		return &memory.Memory{ID: id, Confidence: conf, CreatedAt: created}
	}
	older := mk("b", 0.5, at)
	newer := mk("c", 0.5, at.Add(time.Hour))
	sameTime := mk("a", 0.5, at)
	strong := mk("d", 1.0, at)

	got := rank([][]memory.Candidate{
		{{Memory: older, Similarity: 0.8}, {Memory: strong, Similarity: 0.9}},
		{{Memory: newer, Similarity: 0.8}, {Memory: sameTime, Similarity: 0.8}, {Memory: older, Similarity: 0.8}},
	}, 10)

	assert.Equal(t, []string{"d", "c", "a", "b"}, ids(got))
	assert.Len(t, rank([][]memory.Candidate{{{Memory: older, Similarity: 1}}, {{Memory: newer, Similarity: 1}}}, 1), 1)
}

func TestEngine_LimitWithTies(t *testing.T) {
	f := memorytest.New(t)
	e := newEngine(t, f.Store, f)

	var created []string
	for i := 0; i < 10; i++ {
		created = append(created, f.Create(t, memory.CreateRequest{Content: "the bridge line is in the on call doc"}).ID)
	}

	results, err := e.Search(context.Background(), Query{Text: "bridge line", RequesterID: "bob", WorkspaceID: "ws1", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{created[9], created[8], created[7]}, ids(results))
}
