package interfaces

import (
	"context"
)

// Event is a domain event as seen by the bus.
type Event interface {
	// EventType identifies the kind of event, e.g. "video.deleted".
	EventType() string

	// Timestamp returns when the event occurred, in nanoseconds since epoch.
	Timestamp() int64

	// AggregateID names the entity the event is about; empty for broad
	// events such as a catalog refresh.
	AggregateID() string
}

// EventHandler consumes events of a single type.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error

	// EventType returns the event type this handler is interested in.
	EventType() string
}

// EventBus is the pub/sub seam between the services and whatever transports
// events further (in-process handlers, the NATS relay).
type EventBus interface {
	// Publish delivers the event synchronously to all subscribers.
	Publish(ctx context.Context, event Event) error

	// PublishAsync delivers the event without blocking the caller.
	PublishAsync(ctx context.Context, event Event)

	// Subscribe registers a handler for one event type.
	Subscribe(eventType string, handler EventHandler) error

	// Unsubscribe removes a handler for one event type.
	Unsubscribe(eventType string, handler EventHandler) error
}
