// Package domain holds the lead record derived from canonical permits.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SourcePermitIngest tags every lead produced by the permit pipeline.
	SourcePermitIngest = "permit_ingest"
	// UnknownValue fills name and county when nothing better is known.
	UnknownValue = "Unknown"
	// MetaOriginatingPermitID is the metadata key older leads used to reference their permit.
	MetaOriginatingPermitID = "originating_permit_id"
)

// Lead is a sales lead derived from one permit.
type Lead struct {
	ID        uuid.UUID      `json:"id"`
	PermitID  *uuid.UUID     `json:"permitId,omitempty"`
	Name      string         `json:"name"`
	Email     *string        `json:"email,omitempty"`
	Phone     *string        `json:"phone,omitempty"`
	Address   *string        `json:"address,omitempty"`
	City      *string        `json:"city,omitempty"`
	State     *string        `json:"state,omitempty"`
	Zip       *string        `json:"zip,omitempty"`
	County    string         `json:"county"`
	Service   string         `json:"service"`
	Trade     string         `json:"trade"`
	Value     *float64       `json:"value,omitempty"`
	Status    string         `json:"status"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ListFilter narrows lead listings.
type ListFilter struct {
	Status string
	County string
	Trade  string
	Limit  int
	Offset int
}
