// Package memory stores team memories in a vector index.
//
// A Memory is a short immutable text with an embedding, an owner, a
// workspace, a visibility and a confidence score. Store persists memories
// as index points partitioned by category (one collection per category),
// serializes concurrent mutations of the same memory with a keyed lock
// table and a version check, and keeps related-memory links symmetric.
//
// Authorization decisions are delegated to an Authorizer; the workspace
// package provides the implementation.
package memory
