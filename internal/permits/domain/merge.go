package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EncodeRaw serializes a raw payload for storage. Map keys are emitted sorted,
// so equal payloads always encode to equal bytes.
func EncodeRaw(raw RawPayload) (json.RawMessage, error) {
	if raw == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(raw)
}

// NewPermit builds the record stored on the insert path.
func NewPermit(np NormalizedPermit, permitKey string, now time.Time) (Permit, error) {
	raw, err := EncodeRaw(np.RawPayload)
	if err != nil {
		return Permit{}, err
	}
	p := Permit{
		ID:             uuid.New(),
		Source:         np.Source,
		SourceRecordID: np.SourceRecordID,
		PermitKey:      permitKey,
		RawPayload:     raw,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.applyFields(np)
	return p, nil
}

// Merge applies an incoming record over a stored one and reports whether
// anything changed. Present fields overwrite (present and empty clears), absent
// fields keep their stored value, and the raw payload is always replaced.
// permitKey is the key resolved for np. updated_at only moves when content
// changed.
func Merge(stored Permit, np NormalizedPermit, permitKey string, now time.Time) (Permit, bool, error) {
	raw, err := EncodeRaw(np.RawPayload)
	if err != nil {
		return stored, false, err
	}

	merged := stored
	merged.SourceRecordID = np.SourceRecordID
	merged.PermitKey = permitKey
	merged.RawPayload = raw
	merged.applyFields(np)

	if merged.sameContent(stored) {
		return stored, false, nil
	}
	merged.UpdatedAt = now
	return merged, true, nil
}

func (p *Permit) applyFields(np NormalizedPermit) {
	p.PermitNo = np.PermitNo.Merge(p.PermitNo)
	p.Jurisdiction = np.Jurisdiction.Merge(p.Jurisdiction)
	p.County = np.County.Merge(p.County)
	p.PermitType = np.PermitType.Merge(p.PermitType)
	p.PermitClass = np.PermitClass.Merge(p.PermitClass)
	p.WorkDescription = np.WorkDescription.Merge(p.WorkDescription)
	p.Address = np.Address.Merge(p.Address)
	p.City = np.City.Merge(p.City)
	p.State = np.State.Merge(p.State)
	p.Zipcode = np.Zipcode.Merge(p.Zipcode)
	p.Latitude = np.Latitude.Merge(p.Latitude)
	p.Longitude = np.Longitude.Merge(p.Longitude)
	p.Valuation = np.Valuation.Merge(p.Valuation)
	p.ApplicantName = np.ApplicantName.Merge(p.ApplicantName)
	p.OwnerName = np.OwnerName.Merge(p.OwnerName)
	p.ContractorName = np.ContractorName.Merge(p.ContractorName)
	p.Status = np.Status.Merge(p.Status)
	p.AppliedDate = np.AppliedDate.Merge(p.AppliedDate)
	p.IssuedDate = np.IssuedDate.Merge(p.IssuedDate)
	p.ExpirationDate = np.ExpirationDate.Merge(p.ExpirationDate)
}

func (p Permit) sameContent(o Permit) bool {
	return p.SourceRecordID == o.SourceRecordID &&
		p.PermitKey == o.PermitKey &&
		eqPtr(p.PermitNo, o.PermitNo) &&
		eqPtr(p.Jurisdiction, o.Jurisdiction) &&
		eqPtr(p.County, o.County) &&
		eqPtr(p.PermitType, o.PermitType) &&
		eqPtr(p.PermitClass, o.PermitClass) &&
		eqPtr(p.WorkDescription, o.WorkDescription) &&
		eqPtr(p.Address, o.Address) &&
		eqPtr(p.City, o.City) &&
		eqPtr(p.State, o.State) &&
		eqPtr(p.Zipcode, o.Zipcode) &&
		eqPtr(p.Latitude, o.Latitude) &&
		eqPtr(p.Longitude, o.Longitude) &&
		eqPtr(p.Valuation, o.Valuation) &&
		eqPtr(p.ApplicantName, o.ApplicantName) &&
		eqPtr(p.OwnerName, o.OwnerName) &&
		eqPtr(p.ContractorName, o.ContractorName) &&
		eqPtr(p.Status, o.Status) &&
		eqTime(p.AppliedDate, o.AppliedDate) &&
		eqTime(p.IssuedDate, o.IssuedDate) &&
		eqTime(p.ExpirationDate, o.ExpirationDate) &&
		sameJSON(p.RawPayload, o.RawPayload)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// sameJSON compares two JSON documents ignoring key order and whitespace,
// since jsonb does not round-trip the original formatting.
func sameJSON(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	decA := json.NewDecoder(bytes.NewReader(a))
	decA.UseNumber()
	decB := json.NewDecoder(bytes.NewReader(b))
	decB.UseNumber()
	if decA.Decode(&va) != nil || decB.Decode(&vb) != nil {
		return false
	}
	ca, errA := json.Marshal(va)
	cb, errB := json.Marshal(vb)
	return errA == nil && errB == nil && bytes.Equal(ca, cb)
}
