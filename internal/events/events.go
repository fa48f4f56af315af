// Package events publishes memory lifecycle events.
//
// Events go to NATS subjects of the form
//
//	{prefix}.{workspace_id}.memory.{type}
//
// so subscribers can follow one workspace or all of them with wildcards.
package events

import (
	"context"
	"time"
)

// Type names a lifecycle transition.
type Type string

const (
	MemoryCreated  Type = "created"
	MemoryVerified Type = "verified"
	MemoryDeleted  Type = "deleted"
)

// Event is one lifecycle notification.
type Event struct {
	Type        Type              `json:"type"`
	WorkspaceID string            `json:"workspace_id"`
	MemoryID    string            `json:"memory_id"`
	ActorID     string            `json:"actor_id"`
	At          time.Time         `json:"at"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
