package workspace

import (
	"github.com/bparpette/MistralHackathon/internal/memory"
	"github.com/bparpette/MistralHackathon/internal/vectorstore"
)

// BuildReadFilter returns the predicate selecting what requesterID may
// read in workspaceID given role.
//
// Members and admins see team and public memories plus their own private
// ones. Anyone else sees only public memories. The workspace condition is
// always present.
func BuildReadFilter(requesterID, workspaceID string, role Role) *vectorstore.Filter {
	f := &vectorstore.Filter{Must: []vectorstore.Condition{
		vectorstore.Eq(memory.FieldWorkspaceID, workspaceID),
	}}
	if !role.IsMember() {
		return f.And(vectorstore.Eq(memory.FieldVisibility, string(memory.VisibilityPublic)))
	}
	return f.And(vectorstore.Nested(&vectorstore.Filter{Should: []vectorstore.Condition{
		vectorstore.Eq(memory.FieldVisibility, string(memory.VisibilityTeam)),
		vectorstore.Eq(memory.FieldVisibility, string(memory.VisibilityPublic)),
		vectorstore.Nested(&vectorstore.Filter{Must: []vectorstore.Condition{
			vectorstore.Eq(memory.FieldVisibility, string(memory.VisibilityPrivate)),
			vectorstore.Eq(memory.FieldOwnerID, requesterID),
		}}),
	}}))
}
