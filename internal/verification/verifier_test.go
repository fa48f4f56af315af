package verification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/memory/memorytest"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

func newVerifier(t *testing.T) (*Verifier, *memorytest.Fixture) {
	t.Helper()
	f := memorytest.New(t)
	v, err := NewVerifier(f.Store, f.Guard, zap.NewNop())
	require.NoError(t, err)
	return v, f
}

func TestVerify(t *testing.T) {
	v, f := newVerifier(t)
	ctx := context.Background()
	m := f.Create(t, memory.CreateRequest{Content: "staging uses the eu-west region"})

	got, err := v.Verify(ctx, m.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.Verifiers)
	assert.InDelta(t, 0.6, got.Confidence, 1e-9)

	again, err := v.Verify(ctx, m.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, got.Version, again.Version)
	assert.InDelta(t, 0.6, again.Confidence, 1e-9)

	owner, err := v.Verify(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, got.Version, owner.Version)
}

func TestVerify_CapsAtOne(t *testing.T) {
	v, f := newVerifier(t)
	m := f.Create(t, memory.CreateRequest{Content: "staging uses the eu-west region", ConfidenceHint: memorytest.Hint(0.95)})

	got, err := v.Verify(context.Background(), m.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)

	got, err = v.Verify(context.Background(), m.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Len(t, got.Verifiers, 3)
}

func TestVerify_Concurrent(t *testing.T) {
	v, f := newVerifier(t)
	m := f.Create(t, memory.CreateRequest{Content: "on-call rotation changes on mondays", ConfidenceHint: memorytest.Hint(0.2)})

	var wg sync.WaitGroup
	for _, user := range []string{"bob", "carol", "bob", "carol"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := v.Verify(context.Background(), m.ID, user)
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()

	got, err := f.Store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, got.Verifiers)
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)
}

func TestVerify_Errors(t *testing.T) {
	v, f := newVerifier(t)
	ctx := context.Background()
	private := f.Create(t, memory.CreateRequest{Content: "my salary notes", Visibility: "private"})
	team := f.Create(t, memory.CreateRequest{Content: "team lunch on friday"})

	_, err := v.Verify(ctx, "missing", "bob")
	assert.ErrorIs(t, err, v1.ErrNotFound)

	_, err = v.Verify(ctx, private.ID, "bob")
	assert.ErrorIs(t, err, v1.ErrNotFound)

	_, err = v.Verify(ctx, team.ID, "dave")
	assert.ErrorIs(t, err, v1.ErrForbidden)

	_, err = v.Verify(ctx, team.ID, "")
	assert.ErrorIs(t, err, v1.ErrValidation)
}

func TestVerify_AfterDelete(t *testing.T) {
	v, f := newVerifier(t)
	ctx := context.Background()
	m := f.Create(t, memory.CreateRequest{Content: "deprecated runbook"})
	require.NoError(t, f.Store.Delete(ctx, m.ID, "alice"))

	_, err := v.Verify(ctx, m.ID, "bob")
	assert.ErrorIs(t, err, v1.ErrNotFound)
}
