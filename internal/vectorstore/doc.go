// Package vectorstore is the vector index boundary of the brain service.
//
// An Index stores points (id, vector, string payload) in named collections
// and answers filtered nearest-neighbor queries. Two backends exist:
//
//   - ChromemIndex: embedded chromem-go database, optionally persisted to
//     disk. Zero external services; the default.
//   - QdrantIndex: Qdrant over gRPC.
//
// Filters are structured predicates (see Filter) rather than backend query
// strings, so the permission layer can build them once and every backend
// evaluates them the same way: Qdrant natively, chromem by expanding them
// into equality branches.
package vectorstore
