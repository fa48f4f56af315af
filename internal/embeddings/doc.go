// Package embeddings turns memory content and search queries into vectors.
//
// Three providers exist: FastEmbed (local ONNX models, requires cgo), TEI
// (a text-embeddings-inference server over HTTP) and hash (deterministic
// feature hashing, for offline use and tests). NewProvider picks one from
// configuration.
package embeddings
