// Package workspace resolves workspace membership and turns it into
// permission decisions.
//
// A Directory maps (workspace, user) to a Role. Guard combines the role
// with a memory's visibility and owner to decide reads, writes and
// deletes. Reads are expressed as a vectorstore.Filter so the same
// predicate runs inside the index for listings and searches and in
// process for single-memory checks.
package workspace
