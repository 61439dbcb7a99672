// Package domain holds the durable outbox record.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one outbox row. Events are never deleted; delivered ones drop out
// of the pending view.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Seq         int64           `json:"seq"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
	DeliveredAt *time.Time      `json:"deliveredAt,omitempty"`
	Attempts    int             `json:"attempts"`
	LastError   *string         `json:"lastError,omitempty"`
}

// Pending reports whether the event still awaits acknowledgment.
func (e Event) Pending() bool {
	return e.DeliveredAt == nil
}

// PendingFilter bounds a ListPending call. MaxAttempts <= 0 means unlimited.
type PendingFilter struct {
	Limit       int
	MaxAttempts int
}

// Eligible reports whether e belongs in the pending view for f.
func (f PendingFilter) Eligible(e Event) bool {
	if !e.Pending() {
		return false
	}
	return f.MaxAttempts <= 0 || e.Attempts < f.MaxAttempts
}
