// Package events defines the contract shared by every domain event that is
// recorded in the outbox.
// This is part of the platform layer and contains no business logic.
package events

import (
	"time"
)

// Event is the base interface all domain events must implement.
type Event interface {
	// EventName returns the outbox type tag (for example "permit.created").
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent creates a base event stamped with the given time in UTC.
func NewBaseEvent(at time.Time) BaseEvent {
	return BaseEvent{Timestamp: at.UTC()}
}
