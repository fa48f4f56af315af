package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bparpette/MistralHackathon/internal/config"
	"github.com/bparpette/MistralHackathon/internal/memory"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	dir := StaticDirectoryFromConfig(config.WorkspacesConfig{
		Members: map[string][]string{"ws1": {"alice", "bob"}},
		Admins:  map[string][]string{"ws1": {"carol"}},
	})
	g, err := NewGuard(dir, nil)
	require.NoError(t, err)
	return g
}

func TestStaticDirectory(t *testing.T) {
	dir := StaticDirectoryFromConfig(config.WorkspacesConfig{
		Members: map[string][]string{"ws1": {"alice", "carol"}},
		Admins:  map[string][]string{"ws1": {"carol"}, "ws2": {"dave"}},
	})
	ctx := context.Background()

	for user, want := range map[string]Role{"alice": RoleMember, "carol": RoleAdmin, "eve": RoleNone} {
		got, err := dir.Role(ctx, "ws1", user)
		require.NoError(t, err)
		assert.Equal(t, want, got, user)
	}
	assert.Equal(t, []string{"ws1", "ws2"}, dir.Workspaces())

	_, err := dir.Role(ctx, "ws9", "alice")
	assert.ErrorIs(t, err, ErrUnknownWorkspace)
}

func TestGuard_AuthorizeWrite(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	assert.NoError(t, g.AuthorizeWrite(ctx, "alice", "ws1"))
	assert.NoError(t, g.AuthorizeWrite(ctx, "carol", "ws1"))
	assert.ErrorIs(t, g.AuthorizeWrite(ctx, "eve", "ws1"), v1.ErrForbidden)
	assert.ErrorIs(t, g.AuthorizeWrite(ctx, "alice", "ws2"), v1.ErrForbidden)
	assert.ErrorIs(t, g.AuthorizeWrite(ctx, "alice", "unknown"), v1.ErrForbidden)
	assert.ErrorIs(t, g.AuthorizeWrite(ctx, "", "ws1"), v1.ErrValidation)
	assert.ErrorIs(t, g.AuthorizeWrite(ctx, "alice", ""), v1.ErrValidation)
}

func TestGuard_AuthorizeRead(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	team := &memory.Memory{ID: "t", WorkspaceID: "ws1", OwnerID: "alice", Visibility: memory.VisibilityTeam}
	private := &memory.Memory{ID: "p", WorkspaceID: "ws1", OwnerID: "alice", Visibility: memory.VisibilityPrivate}
	public := &memory.Memory{ID: "u", WorkspaceID: "ws1", OwnerID: "alice", Visibility: memory.VisibilityPublic}

	assert.NoError(t, g.AuthorizeRead(ctx, "bob", team))
	assert.NoError(t, g.AuthorizeRead(ctx, "alice", private))
	assert.ErrorIs(t, g.AuthorizeRead(ctx, "bob", private), v1.ErrNotFound)
	assert.ErrorIs(t, g.AuthorizeRead(ctx, "carol", private), v1.ErrNotFound)
	assert.ErrorIs(t, g.AuthorizeRead(ctx, "eve", team), v1.ErrForbidden)
	assert.NoError(t, g.AuthorizeRead(ctx, "eve", public))
}

func TestGuard_AuthorizeDelete(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	team := &memory.Memory{ID: "t", WorkspaceID: "ws1", OwnerID: "alice", Visibility: memory.VisibilityTeam}
	private := &memory.Memory{ID: "p", WorkspaceID: "ws1", OwnerID: "alice", Visibility: memory.VisibilityPrivate}

	assert.NoError(t, g.AuthorizeDelete(ctx, "alice", team))
	assert.NoError(t, g.AuthorizeDelete(ctx, "carol", team))
	assert.ErrorIs(t, g.AuthorizeDelete(ctx, "bob", team), v1.ErrForbidden)
	assert.ErrorIs(t, g.AuthorizeDelete(ctx, "eve", team), v1.ErrForbidden)

	assert.NoError(t, g.AuthorizeDelete(ctx, "alice", private))
	assert.ErrorIs(t, g.AuthorizeDelete(ctx, "bob", private), v1.ErrNotFound)
	assert.ErrorIs(t, g.AuthorizeDelete(ctx, "eve", private), v1.ErrNotFound)
	assert.NoError(t, g.AuthorizeDelete(ctx, "carol", private))
}

func TestGuard_ReadFilter(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	f, err := g.ReadFilter(ctx, "eve", "ws1")
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{
		memory.FieldWorkspaceID: "ws1",
		memory.FieldVisibility:  "public",
	}}, f.Branches())

	f, err = g.ReadFilter(ctx, "bob", "ws1")
	require.NoError(t, err)
	assert.Len(t, f.Branches(), 3)

	_, err = g.ReadFilter(ctx, "", "ws1")
	assert.ErrorIs(t, err, v1.ErrValidation)
}
