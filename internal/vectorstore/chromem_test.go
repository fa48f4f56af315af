package vectorstore_test

import (
	"context"
	"testing"

	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCollection = "memories_general"

func newTestChromemIndex(t *testing.T, path string) *vectorstore.ChromemIndex {
	t.Helper()
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{
		Path:       path,
		VectorSize: 4,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func point(id, workspace, visibility, owner string, vec ...float32) vectorstore.Point {
	return vectorstore.Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]string{
			"memory_id":    id,
			"workspace_id": workspace,
			"visibility":   visibility,
			"owner_id":     owner,
		},
	}
}

func seed(t *testing.T, idx vectorstore.Index) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, testCollection))
	require.NoError(t, idx.Upsert(ctx, testCollection,
		point("m1", "acme", "team", "bob", 1, 0, 0, 0),
		point("m2", "acme", "private", "alice", 0.9, 0.1, 0, 0),
		point("m3", "acme", "private", "bob", 0.8, 0.2, 0, 0),
		point("m4", "globex", "public", "carol", 1, 0, 0, 0),
		point("m5", "acme", "public", "carol", 0, 0, 1, 0),
	))
}

func readFilter(workspace, user string) *vectorstore.Filter {
	return &vectorstore.Filter{
		Must: []vectorstore.Condition{vectorstore.Eq("workspace_id", workspace)},
		Should: []vectorstore.Condition{
			vectorstore.Eq("visibility", "team"),
			vectorstore.Eq("visibility", "public"),
			vectorstore.Nested(&vectorstore.Filter{Must: []vectorstore.Condition{
				vectorstore.Eq("visibility", "private"),
				vectorstore.Eq("owner_id", user),
			}}),
		},
	}
}

func ids(points []vectorstore.ScoredPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.ID
	}
	return out
}

func TestChromemIndex_SearchAppliesFilter(t *testing.T) {
	idx := newTestChromemIndex(t, "")
	seed(t, idx)

	hits, err := idx.Search(context.Background(), testCollection, []float32{1, 0, 0, 0}, 10, readFilter("acme", "alice"))
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "m5"}, ids(hits))
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, "team", hits[0].Payload["visibility"])
}

func TestChromemIndex_SearchLimit(t *testing.T) {
	idx := newTestChromemIndex(t, "")
	seed(t, idx)

	hits, err := idx.Search(context.Background(), testCollection, []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	// A limit above the collection size is capped rather than rejected.
	hits, err = idx.Search(context.Background(), testCollection, []float32{1, 0, 0, 0}, 100, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 5)
}

func TestChromemIndex_SearchEmptyCollection(t *testing.T) {
	idx := newTestChromemIndex(t, "")
	require.NoError(t, idx.EnsureCollection(context.Background(), testCollection))

	hits, err := idx.Search(context.Background(), testCollection, []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemIndex_Errors(t *testing.T) {
	ctx := context.Background()
	idx := newTestChromemIndex(t, "")
	seed(t, idx)

	_, err := idx.Search(ctx, "memories_missing", []float32{1, 0, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)

	_, err = idx.Get(ctx, testCollection, "nope")
	assert.ErrorIs(t, err, vectorstore.ErrPointNotFound)

	err = idx.Upsert(ctx, testCollection, point("bad", "acme", "team", "bob", 1, 0))
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	err = idx.EnsureCollection(ctx, "Bad-Name")
	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}

func TestChromemIndex_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	idx := newTestChromemIndex(t, "")
	seed(t, idx)

	p, err := idx.Get(ctx, testCollection, "m1")
	require.NoError(t, err)
	p.Payload["visibility"] = "private"

	again, err := idx.Get(ctx, testCollection, "m1")
	require.NoError(t, err)
	assert.Equal(t, "team", again.Payload["visibility"])
}

func TestChromemIndex_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newTestChromemIndex(t, "")
	seed(t, idx)

	require.NoError(t, idx.Upsert(ctx, testCollection, point("m1", "acme", "public", "bob", 1, 0, 0, 0)))

	p, err := idx.Get(ctx, testCollection, "m1")
	require.NoError(t, err)
	assert.Equal(t, "public", p.Payload["visibility"])
}

func TestChromemIndex_Scroll(t *testing.T) {
	ctx := context.Background()
	idx := newTestChromemIndex(t, "")
	seed(t, idx)

	all, err := idx.Scroll(ctx, testCollection, nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	acme, err := idx.Scroll(ctx, testCollection, (&vectorstore.Filter{}).And(vectorstore.Eq("workspace_id", "acme")))
	require.NoError(t, err)
	assert.Len(t, acme, 4)
}

func TestChromemIndex_DeleteAndPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx := newTestChromemIndex(t, dir)
	seed(t, idx)
	require.NoError(t, idx.Delete(ctx, testCollection, "m1", "does-not-exist"))
	require.NoError(t, idx.Delete(ctx, testCollection))

	_, err := idx.Get(ctx, testCollection, "m1")
	assert.ErrorIs(t, err, vectorstore.ErrPointNotFound)

	reopened := newTestChromemIndex(t, dir)
	names, err := reopened.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testCollection}, names)

	points, err := reopened.Scroll(ctx, testCollection, nil)
	require.NoError(t, err)
	assert.Len(t, points, 4)
}
