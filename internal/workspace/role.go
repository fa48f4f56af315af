package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownWorkspace is returned by directories for workspaces they do not
// list. Guard treats it as no role.
var ErrUnknownWorkspace = errors.New("unknown workspace")

// Role is a user's standing in a workspace.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// IsMember reports whether r grants workspace membership.
func (r Role) IsMember() bool {
	return r >= RoleMember
}

// Directory resolves workspace roles.
type Directory interface {
	Role(ctx context.Context, workspaceID, userID string) (Role, error)
}

// Membership lists the members and admins of one workspace. Admins are
// members too.
type Membership struct {
	Members []string `koanf:"members" yaml:"members"`
	Admins  []string `koanf:"admins" yaml:"admins"`
}

// roster is an immutable lookup table built from memberships.
type roster map[string]map[string]Role

func newRoster(workspaces map[string]Membership) roster {
	r := make(roster, len(workspaces))
	for ws, m := range workspaces {
		users := make(map[string]Role, len(m.Members)+len(m.Admins))
		for _, u := range m.Members {
			if u != "" {
				users[u] = RoleMember
			}
		}
		for _, u := range m.Admins {
			if u != "" {
				users[u] = RoleAdmin
			}
		}
		r[ws] = users
	}
	return r
}

func (r roster) role(workspaceID, userID string) (Role, error) {
	users, ok := r[workspaceID]
	if !ok {
		return RoleNone, fmt.Errorf("%w: %s", ErrUnknownWorkspace, workspaceID)
	}
	return users[userID], nil
}

func (r roster) workspaces() []string {
	out := make([]string, 0, len(r))
	for ws := range r {
		out = append(out, ws)
	}
	sort.Strings(out)
	return out
}
