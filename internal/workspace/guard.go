package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
	v1 "github.com/bparpette/MistralHackathon/pkg/api/v1"
)

// Guard makes permission decisions from a Directory. It implements
// memory.Authorizer.
type Guard struct {
	dir    Directory
	logger *zap.Logger
}

var _ memory.Authorizer = (*Guard)(nil)

// NewGuard creates a Guard.
func NewGuard(dir Directory, logger *zap.Logger) (*Guard, error) {
	if dir == nil {
		return nil, errors.New("directory cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{dir: dir, logger: logger}, nil
}

// Role resolves requesterID's role in workspaceID.
func (g *Guard) Role(ctx context.Context, requesterID, workspaceID string) (Role, error) {
	if strings.TrimSpace(requesterID) == "" {
		return RoleNone, fmt.Errorf("%w: requester id cannot be empty", v1.ErrValidation)
	}
	if strings.TrimSpace(workspaceID) == "" {
		return RoleNone, fmt.Errorf("%w: workspace id cannot be empty", v1.ErrValidation)
	}
	role, err := g.dir.Role(ctx, workspaceID, requesterID)
	if errors.Is(err, ErrUnknownWorkspace) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("resolving role: %w", err)
	}
	return role, nil
}

// ReadFilter implements memory.Authorizer.
func (g *Guard) ReadFilter(ctx context.Context, requesterID, workspaceID string) (*vectorstore.Filter, error) {
	role, err := g.Role(ctx, requesterID, workspaceID)
	if err != nil {
		return nil, err
	}
	return BuildReadFilter(requesterID, workspaceID, role), nil
}

// AuthorizeWrite allows members and admins of workspaceID.
func (g *Guard) AuthorizeWrite(ctx context.Context, requesterID, workspaceID string) error {
	role, err := g.Role(ctx, requesterID, workspaceID)
	if err != nil {
		return err
	}
	if !role.IsMember() {
		g.logger.Debug("write denied",
			zap.String("requester_id", requesterID),
			zap.String("workspace_id", workspaceID))
		return fmt.Errorf("%w: not a member of workspace %s", v1.ErrForbidden, workspaceID)
	}
	return nil
}

// AuthorizeRead allows what BuildReadFilter selects. A private memory the
// requester cannot see is reported as not found.
func (g *Guard) AuthorizeRead(ctx context.Context, requesterID string, m *memory.Memory) error {
	role, err := g.Role(ctx, requesterID, m.WorkspaceID)
	if err != nil {
		return err
	}
	if BuildReadFilter(requesterID, m.WorkspaceID, role).Matches(m.Payload()) {
		return nil
	}
	if m.Visibility == memory.VisibilityPrivate {
		return fmt.Errorf("%w: memory %s", v1.ErrNotFound, m.ID)
	}
	return fmt.Errorf("%w: cannot read memory %s", v1.ErrForbidden, m.ID)
}

// AuthorizeDelete implements memory.Authorizer: owners and workspace
// admins may delete, private memories included. Anyone else asking for
// another user's private memory is told it does not exist.
func (g *Guard) AuthorizeDelete(ctx context.Context, requesterID string, m *memory.Memory) error {
	role, err := g.Role(ctx, requesterID, m.WorkspaceID)
	if err != nil {
		return err
	}
	if m.OwnerID == requesterID || role == RoleAdmin {
		return nil
	}
	if m.Visibility == memory.VisibilityPrivate {
		return fmt.Errorf("%w: memory %s", v1.ErrNotFound, m.ID)
	}
	return fmt.Errorf("%w: only the owner or a workspace admin may delete memory %s", v1.ErrForbidden, m.ID)
}
