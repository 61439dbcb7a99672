// Package events defines the domain events recorded in the outbox.
// The event contract lives in platform/events.
package events

import (
	"time"

	leadsdomain "permit_ingest_backend/internal/leads/domain"
	permitsdomain "permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event     = events.Event
	BaseEvent = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

const (
	TypePermitCreated     = "permit.created"
	TypeLeadCreated       = "lead.created"
	TypeLeadStatusChanged = "lead.status_changed"
)

// =============================================================================
// Permit Events
// =============================================================================

// PermitCreated is recorded when the upsert engine inserts a new permit.
// The snapshot omits the raw payload.
type PermitCreated struct {
	BaseEvent
	Permit permitsdomain.Permit `json:"permit"`
}

func (e PermitCreated) EventName() string { return TypePermitCreated }

// =============================================================================
// Lead Events
// =============================================================================

// LeadCreated is recorded when a lead is derived from a permit.
type LeadCreated struct {
	BaseEvent
	Lead leadsdomain.Lead `json:"lead"`
}

func (e LeadCreated) EventName() string { return TypeLeadCreated }

// LeadStatusChanged is recorded when a lead moves to a different status.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return TypeLeadStatusChanged }

// NewPermitCreated snapshots p at time at.
func NewPermitCreated(p permitsdomain.Permit, at time.Time) PermitCreated {
	return PermitCreated{BaseEvent: NewBaseEvent(at), Permit: p}
}

// NewLeadCreated snapshots l at time at.
func NewLeadCreated(l leadsdomain.Lead, at time.Time) LeadCreated {
	return LeadCreated{BaseEvent: NewBaseEvent(at), Lead: l}
}

// NewLeadStatusChanged records a move of lead id from old to next.
func NewLeadStatusChanged(id uuid.UUID, old, next string, at time.Time) LeadStatusChanged {
	return LeadStatusChanged{BaseEvent: NewBaseEvent(at), LeadID: id, OldStatus: old, NewStatus: next}
}
