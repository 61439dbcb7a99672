package sources

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"permit_ingest_backend/internal/permits/domain"
)

// FieldMap lists, per normalized attribute, the raw column names to try in order.
type FieldMap struct {
	RecordID        []string
	PermitNo        []string
	County          []string
	PermitType      []string
	PermitClass     []string
	WorkDescription []string
	Address         []string
	City            []string
	State           []string
	Zipcode         []string
	Latitude        []string
	Longitude       []string
	Location        []string
	Valuation       []string
	ApplicantName   []string
	OwnerName       []string
	ContractorName  []string
	Status          []string
	AppliedDate     []string
	IssuedDate      []string
	ExpirationDate  []string
}

// normalize maps one raw row. The row is never modified.
func (d Definition) normalize(row domain.RawPayload, index int) (domain.NormalizedPermit, *domain.ParseError) {
	if len(row) == 0 {
		return domain.NormalizedPermit{}, &domain.ParseError{Source: d.Source, Row: index, Reason: "empty row"}
	}
	f := d.Fields
	np := domain.NormalizedPermit{
		Source:          d.Source,
		PermitNo:        pickStr(row, f.PermitNo...),
		Jurisdiction:    domain.Some(d.Jurisdiction),
		County:          pickStr(row, f.County...),
		PermitType:      pickStr(row, f.PermitType...),
		PermitClass:     pickStr(row, f.PermitClass...),
		WorkDescription: pickStr(row, f.WorkDescription...),
		Address:         pickStr(row, f.Address...),
		City:            withDefault(pickStr(row, f.City...), d.DefaultCity),
		State:           withDefault(pickStr(row, f.State...), d.DefaultState),
		Zipcode:         pickStr(row, f.Zipcode...),
		Valuation:       pickFloat(row, f.Valuation...),
		ApplicantName:   pickStr(row, f.ApplicantName...),
		OwnerName:       pickStr(row, f.OwnerName...),
		ContractorName:  pickStr(row, f.ContractorName...),
		Status:          pickStr(row, f.Status...),
		AppliedDate:     pickTime(row, f.AppliedDate...),
		IssuedDate:      pickTime(row, f.IssuedDate...),
		ExpirationDate:  pickTime(row, f.ExpirationDate...),
		RawPayload:      row,
	}
	np.Latitude, np.Longitude = pickCoordinates(row, f.Latitude, f.Longitude, f.Location)

	if id := pickStr(row, f.RecordID...); id.IsSet() {
		np.SourceRecordID = id.Value
	} else {
		np.SourceRecordID = syntheticID(np)
		if np.SourceRecordID == "" {
			return domain.NormalizedPermit{}, &domain.ParseError{Source: d.Source, Row: index, Reason: "no record id and no content to hash"}
		}
	}
	return np, nil
}

func withDefault(f domain.Field[string], fallback string) domain.Field[string] {
	if !f.Present && fallback != "" {
		return domain.Some(fallback)
	}
	return f
}

// syntheticID builds a content-hash id for rows without a native key, so a
// re-fetch of the same record maps to the same id.
func syntheticID(np domain.NormalizedPermit) string {
	issued := ""
	if np.IssuedDate.IsSet() {
		issued = np.IssuedDate.Value.UTC().Format("2006-01-02")
	}
	parts := []string{
		strings.ToUpper(np.Address.Value),
		issued,
		strings.ToUpper(np.WorkDescription.Value),
		strings.ToUpper(np.PermitType.Value),
	}
	if strings.Join(parts, "") == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return string(np.Source) + "_h_" + hex.EncodeToString(sum[:])[:16]
}
