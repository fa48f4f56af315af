package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/config"
	"github.com/bparpette/MistralHackathon/internal/embeddings"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

const testDimension = 64

// ownerAuthorizer lets workspace members read non-private memories and
// their own private ones, and lets owners delete.
type ownerAuthorizer struct{}

func (ownerAuthorizer) ReadFilter(_ context.Context, requesterID, workspaceID string) (*vectorstore.Filter, error) {
	return (&vectorstore.Filter{}).And(
		vectorstore.Eq(FieldWorkspaceID, workspaceID),
		vectorstore.Nested(&vectorstore.Filter{Should: []vectorstore.Condition{
			vectorstore.Eq(FieldVisibility, string(VisibilityTeam)),
			vectorstore.Eq(FieldVisibility, string(VisibilityPublic)),
			vectorstore.Nested(&vectorstore.Filter{Must: []vectorstore.Condition{
				vectorstore.Eq(FieldVisibility, string(VisibilityPrivate)),
				vectorstore.Eq(FieldOwnerID, requesterID),
			}}),
		}}),
	), nil
}

func (ownerAuthorizer) AuthorizeDelete(_ context.Context, requesterID string, m *Memory) error {
	if m.OwnerID != requesterID {
		return fmt.Errorf("%w: not the owner", v1.ErrForbidden)
	}
	return nil
}

// faultyIndex wraps an index and fails selected operations.
type faultyIndex struct {
	vectorstore.Index

	mu         sync.Mutex
	failDelete error
	failUpsert error
	failSearch error
}

func (f *faultyIndex) Delete(ctx context.Context, collection string, ids ...string) error {
	f.mu.Lock()
	err := f.failDelete
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Index.Delete(ctx, collection, ids...)
}

func (f *faultyIndex) Upsert(ctx context.Context, collection string, points ...vectorstore.Point) error {
	f.mu.Lock()
	err := f.failUpsert
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Index.Upsert(ctx, collection, points...)
}

func (f *faultyIndex) Search(ctx context.Context, collection string, vector []float32, limit int, filter *vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	f.mu.Lock()
	err := f.failSearch
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Index.Search(ctx, collection, vector, limit, filter)
}

// blockingEmbedder waits for the context to expire.
type blockingEmbedder struct{}

func (blockingEmbedder) EmbedDocuments(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingEmbedder) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// brokenEmbedder always fails.
type brokenEmbedder struct{}

func (brokenEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

func (brokenEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

// steppingClock returns times one second apart.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func testOptions(t *testing.T, edit func(*config.MemoryConfig)) *Options {
	t.Helper()
	cfg := config.Default().Memory
	if edit != nil {
		edit(&cfg)
	}
	opts, err := NewOptions(cfg)
	require.NoError(t, err)
	return opts
}

type storeFixture struct {
	store *Store
	index *faultyIndex
}

func newFixture(t *testing.T, embedder vectorstore.Embedder, opts *Options, options ...StoreOption) *storeFixture {
	t.Helper()
	chromem, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{VectorSize: testDimension}, zap.NewNop())
	require.NoError(t, err)
	idx := &faultyIndex{Index: chromem}

	if embedder == nil {
		embedder, err = embeddings.NewHashProvider(testDimension)
		require.NoError(t, err)
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	options = append([]StoreOption{WithClock(steppingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))}, options...)

	store, err := NewStore(idx, embedder, ownerAuthorizer{}, opts, zap.NewNop(), options...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = chromem.Close()
	})
	return &storeFixture{store: store, index: idx}
}

func (f *storeFixture) create(t *testing.T, req CreateRequest) *Memory {
	t.Helper()
	if req.OwnerID == "" {
		req.OwnerID = "alice"
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = "ws1"
	}
	m, err := f.store.Create(context.Background(), req)
	require.NoError(t, err)
	return m
}

func hint(v float64) *float64 { return &v }
