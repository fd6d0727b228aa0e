package events

import (
	"time"
)

// BaseEvent carries the event type, an optional aggregate id (video id,
// playlist id, or archive key depending on the producer) and a free-form
// payload. All domain events in this codebase are BaseEvents.
type BaseEvent struct {
	Type  string                 `json:"type"`
	Time  int64                  `json:"timestamp"`
	AggID string                 `json:"aggregate_id"`
	Data  map[string]interface{} `json:"data"`
}

// NewEvent creates an event with no aggregate id.
func NewEvent(eventType string, data map[string]interface{}) *BaseEvent {
	return NewAggregateEvent(eventType, "", data)
}

// NewAggregateEvent creates an event attributed to a specific aggregate.
func NewAggregateEvent(eventType string, aggregateID string, data map[string]interface{}) *BaseEvent {
	return &BaseEvent{
		Type:  eventType,
		Time:  time.Now().UnixNano(),
		AggID: aggregateID,
		Data:  data,
	}
}

// EventType returns the type of the event.
func (e *BaseEvent) EventType() string {
	return e.Type
}

// Timestamp returns when the event occurred, in nanoseconds since epoch.
func (e *BaseEvent) Timestamp() int64 {
	return e.Time
}

// AggregateID returns the id of the aggregate that produced the event.
func (e *BaseEvent) AggregateID() string {
	return e.AggID
}
