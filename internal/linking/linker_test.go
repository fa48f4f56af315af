package linking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/config"
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/memory/memorytest"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	"github.com/bparpette/MistralHackathon/internal/workspace"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

func newLinker(t *testing.T, store Store) *Linker {
	t.Helper()
	l, err := NewLinker(store, zap.NewNop())
	require.NoError(t, err)
	return l
}

func scopeFor(m *memory.Memory) *vectorstore.Filter {
	return workspace.BuildReadFilter(m.OwnerID, m.WorkspaceID, workspace.RoleMember)
}

func TestLinker_LinksSimilarNeighbors(t *testing.T) {
	f := memorytest.New(t)
	l := newLinker(t, f.Store)
	ctx := context.Background()

	near := f.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit is exceeded", Category: "api"})
	far := f.Create(t, memory.CreateRequest{Content: "team offsite is in lisbon this spring"})
	m := f.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit exceeded"})

	res := l.Link(ctx, m, scopeFor(m))
	require.NoError(t, res.Err)
	assert.Equal(t, StatusLinked, res.Status)
	assert.Equal(t, []string{near.ID}, res.LinkedIDs)
	assert.Equal(t, "linked to 1 neighbors", res.String())

	gotNear, err := f.Store.Get(ctx, near.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{m.ID}, gotNear.RelatedIDs)
	gotFar, err := f.Store.Get(ctx, far.ID)
	require.NoError(t, err)
	assert.Empty(t, gotFar.RelatedIDs)
}

func TestLinker_StaysInWorkspace(t *testing.T) {
	f := memorytest.New(t)
	l := newLinker(t, f.Store)
	f.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit exceeded", OwnerID: "dave", WorkspaceID: "ws2"})
	m := f.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit exceeded"})

	res := l.Link(context.Background(), m, scopeFor(m))
	assert.Equal(t, StatusLinked, res.Status)
	assert.Empty(t, res.LinkedIDs)
}

func TestLinker_IgnoresOthersPrivate(t *testing.T) {
	f := memorytest.New(t)
	l := newLinker(t, f.Store)
	f.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit exceeded", OwnerID: "bob", Visibility: "private"})
	m := f.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit exceeded"})

	res := l.Link(context.Background(), m, scopeFor(m))
	assert.Empty(t, res.LinkedIDs)
}

func TestLinker_RespectsNeighborCountAndThreshold(t *testing.T) {
	f := memorytest.New(t, func(c *config.MemoryConfig) {
		c.LinkNeighborCount = 2
	})
	l := newLinker(t, f.Store)
	for i := 0; i < 4; i++ {
		f.Create(t, memory.CreateRequest{Content: "nightly backup job runs at two"})
	}
	m := f.Create(t, memory.CreateRequest{Content: "nightly backup job runs at two"})

	res := l.Link(context.Background(), m, scopeFor(m))
	assert.Len(t, res.LinkedIDs, 2)

	strict := memorytest.New(t, func(c *config.MemoryConfig) {
		c.LinkThreshold = 0.99
	})
	l = newLinker(t, strict.Store)
	strict.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit is exceeded"})
	m = strict.Create(t, memory.CreateRequest{Content: "API returns 429 when rate limit exceeded"})
	res = l.Link(context.Background(), m, scopeFor(m))
	assert.Empty(t, res.LinkedIDs)
}

type failingStore struct {
	*memory.Store
	nearestErr error
	linkErr    map[string]error
}

func (s *failingStore) Nearest(ctx context.Context, collection string, vector []float32, k int, filter *vectorstore.Filter) ([]memory.Candidate, error) {
	if s.nearestErr != nil {
		return nil, s.nearestErr
	}
	return s.Store.Nearest(ctx, collection, vector, k, filter)
}

func (s *failingStore) Link(ctx context.Context, a, b string) error {
	if err, ok := s.linkErr[b]; ok {
		return err
	}
	return s.Store.Link(ctx, a, b)
}

func TestLinker_IndexUnavailable(t *testing.T) {
	f := memorytest.New(t)
	m := f.Create(t, memory.CreateRequest{Content: "anything"})

	l := newLinker(t, &failingStore{Store: f.Store, nearestErr: v1.ErrIndexUnavailable})
	res := l.Link(context.Background(), m, scopeFor(m))
	assert.Equal(t, StatusSkipped, res.Status)
	assert.ErrorIs(t, res.Err, v1.ErrIndexUnavailable)
	assert.Equal(t, "linking skipped: index unavailable", res.String())

	l = newLinker(t, &failingStore{Store: f.Store, nearestErr: v1.ErrTimeout})
	res = l.Link(context.Background(), m, scopeFor(m))
	assert.Equal(t, "linking skipped: timeout", res.String())
}

func TestLinker_SkipsFailedNeighbor(t *testing.T) {
	f := memorytest.New(t)
	bad := f.Create(t, memory.CreateRequest{Content: "redis eviction policy is allkeys lru"})
	good := f.Create(t, memory.CreateRequest{Content: "redis eviction policy is allkeys lru"})
	m := f.Create(t, memory.CreateRequest{Content: "redis eviction policy is allkeys lru"})

	l := newLinker(t, &failingStore{Store: f.Store, linkErr: map[string]error{bad.ID: errors.New("boom")}})
	res := l.Link(context.Background(), m, scopeFor(m))
	assert.Equal(t, StatusLinked, res.Status)
	assert.Equal(t, []string{good.ID}, res.LinkedIDs)
}
