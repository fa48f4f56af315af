// Package services assembles the brain from configuration.
//
// NewRegistry builds the vector index, embedding provider, secret scrubber,
// workspace directory, memory store, event publisher and brain.Service, in
// that order. Any of them can be injected through Options instead, which is
// how tests swap in in-memory components. The registry closes what it built.
package services
