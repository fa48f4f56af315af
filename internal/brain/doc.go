// Package brain composes the memory core into the operations exposed by
// the MCP and HTTP transports.
//
// Service is the only entry point transports use. Each operation checks
// permissions, delegates to the owning component and publishes a
// lifecycle event. Event delivery is best effort and never fails a call.
package brain
