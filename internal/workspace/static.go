package workspace

import (
	"context"

	"github.com/bparpette/MistralHackathon/internal/config"
)

// StaticDirectory is a fixed membership table.
type StaticDirectory struct {
	roster roster
}

// NewStaticDirectory builds a directory from explicit memberships.
func NewStaticDirectory(workspaces map[string]Membership) *StaticDirectory {
	return &StaticDirectory{roster: newRoster(workspaces)}
}

// StaticDirectoryFromConfig builds a directory from the inline member and
// admin maps of the configuration.
func StaticDirectoryFromConfig(cfg config.WorkspacesConfig) *StaticDirectory {
	workspaces := make(map[string]Membership)
	for ws, users := range cfg.Members {
		m := workspaces[ws]
		m.Members = append(m.Members, users...)
		workspaces[ws] = m
	}
	for ws, users := range cfg.Admins {
		m := workspaces[ws]
		m.Admins = append(m.Admins, users...)
		workspaces[ws] = m
	}
	return NewStaticDirectory(workspaces)
}

// Role implements Directory.
func (d *StaticDirectory) Role(_ context.Context, workspaceID, userID string) (Role, error) {
	return d.roster.role(workspaceID, userID)
}

// Workspaces returns the known workspace ids, sorted.
func (d *StaticDirectory) Workspaces() []string {
	return d.roster.workspaces()
}
