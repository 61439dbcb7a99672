// Package domain holds the permit pipeline types shared by adapters, the
// identity resolver, the upsert engine and the stores.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Source identifies one external municipal data provider.
type Source string

const (
	SourceAustin     Source = "austin"
	SourceDallas     Source = "dallas"
	SourceHouston    Source = "houston"
	SourceSanAntonio Source = "san_antonio"
)

// KnownSources is the ordered list of sources with adapters.
var KnownSources = []Source{SourceAustin, SourceDallas, SourceHouston, SourceSanAntonio}

// IsKnownSource reports whether s has an adapter.
func IsKnownSource(s string) bool {
	for _, known := range KnownSources {
		if string(known) == s {
			return true
		}
	}
	return false
}

// RawPayload is one source row exactly as decoded from the feed.
// It never travels past the adapter boundary except as Permit.RawPayload.
type RawPayload map[string]any

// NormalizedPermit is the adapter output for one source row.
type NormalizedPermit struct {
	Source          Source
	SourceRecordID  string
	PermitNo        Field[string]
	Jurisdiction    Field[string]
	County          Field[string]
	PermitType      Field[string]
	PermitClass     Field[string]
	WorkDescription Field[string]
	Address         Field[string]
	City            Field[string]
	State           Field[string]
	Zipcode         Field[string]
	Latitude        Field[float64]
	Longitude       Field[float64]
	Valuation       Field[float64]
	ApplicantName   Field[string]
	OwnerName       Field[string]
	ContractorName  Field[string]
	Status          Field[string]
	AppliedDate     Field[time.Time]
	IssuedDate      Field[time.Time]
	ExpirationDate  Field[time.Time]
	RawPayload      RawPayload
}

// Permit is the canonical, durable permit record.
type Permit struct {
	ID              uuid.UUID       `json:"id"`
	Source          Source          `json:"source"`
	SourceRecordID  string          `json:"sourceRecordId"`
	PermitKey       string          `json:"permitKey"`
	PermitNo        *string         `json:"permitNo,omitempty"`
	Jurisdiction    *string         `json:"jurisdiction,omitempty"`
	County          *string         `json:"county,omitempty"`
	PermitType      *string         `json:"permitType,omitempty"`
	PermitClass     *string         `json:"permitClass,omitempty"`
	WorkDescription *string         `json:"workDescription,omitempty"`
	Address         *string         `json:"address,omitempty"`
	City            *string         `json:"city,omitempty"`
	State           *string         `json:"state,omitempty"`
	Zipcode         *string         `json:"zipcode,omitempty"`
	Latitude        *float64        `json:"latitude,omitempty"`
	Longitude       *float64        `json:"longitude,omitempty"`
	Valuation       *float64        `json:"valuation,omitempty"`
	ApplicantName   *string         `json:"applicantName,omitempty"`
	OwnerName       *string         `json:"ownerName,omitempty"`
	ContractorName  *string         `json:"contractorName,omitempty"`
	Status          *string         `json:"status,omitempty"`
	AppliedDate     *time.Time      `json:"appliedDate,omitempty"`
	IssuedDate      *time.Time      `json:"issuedDate,omitempty"`
	ExpirationDate  *time.Time      `json:"expirationDate,omitempty"`
	RawPayload      json.RawMessage `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// UpsertAction tells the caller which path an upsert took.
type UpsertAction string

const (
	ActionInserted UpsertAction = "inserted"
	ActionUpdated  UpsertAction = "updated"
)

// UpsertResult is returned for every upserted record.
type UpsertResult struct {
	ID        uuid.UUID    `json:"id"`
	Action    UpsertAction `json:"action"`
	PermitKey string       `json:"permitKey"`
	// Changed is false when an update found nothing new to write.
	Changed bool `json:"changed"`
	// LeadID is set when the insert derived a lead.
	LeadID *uuid.UUID `json:"leadId,omitempty"`
}

// StringValue dereferences an optional string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListFilter narrows permit listings.
type ListFilter struct {
	Source Source
	County string
	Limit  int
	Offset int
}
