package domain

import (
	"testing"
	"time"
)

func basePermit(t *testing.T) Permit {
	t.Helper()
	issued := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	np := NormalizedPermit{
		Source:          SourceAustin,
		SourceRecordID:  "rec-1",
		PermitNo:        Some("BP-1"),
		Address:         Some("1 Main St"),
		WorkDescription: Some("Reroof"),
		Valuation:       Some(12000.0),
		ContractorName:  Some("ACME"),
		IssuedDate:      Some(issued),
		RawPayload:      RawPayload{"permit_number": "BP-1"},
	}
	p, err := NewPermit(np, "BP-1", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new permit: %v", err)
	}
	return p
}

func TestMergeAbsentKeepsStoredValue(t *testing.T) {
	stored := basePermit(t)
	incoming := NormalizedPermit{
		Source:         SourceAustin,
		SourceRecordID: "rec-1",
		Status:         Some("Issued"),
		RawPayload:     RawPayload{"permit_number": "BP-1", "status": "Issued"},
	}

	merged, changed, err := Merge(stored, incoming, "BP-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if StringValue(merged.Address) != "1 Main St" {
		t.Fatalf("expected address kept, got %v", merged.Address)
	}
	if StringValue(merged.ContractorName) != "ACME" {
		t.Fatalf("expected contractor kept, got %v", merged.ContractorName)
	}
	if StringValue(merged.Status) != "Issued" {
		t.Fatalf("expected status set, got %v", merged.Status)
	}
	if !merged.CreatedAt.Equal(stored.CreatedAt) {
		t.Fatalf("created_at must not move")
	}
}

func TestMergePresentEmptyClears(t *testing.T) {
	stored := basePermit(t)
	incoming := NormalizedPermit{
		Source:         SourceAustin,
		SourceRecordID: "rec-1",
		ContractorName: Empty[string](),
		Valuation:      Empty[float64](),
		RawPayload:     RawPayload{"permit_number": "BP-1"},
	}

	merged, changed, err := Merge(stored, incoming, "BP-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if merged.ContractorName != nil {
		t.Fatalf("expected contractor cleared, got %q", *merged.ContractorName)
	}
	if merged.Valuation != nil {
		t.Fatalf("expected valuation cleared, got %v", *merged.Valuation)
	}
	if StringValue(merged.Address) != "1 Main St" {
		t.Fatalf("expected address kept")
	}
}

func TestMergeIdenticalIsNoop(t *testing.T) {
	stored := basePermit(t)
	incoming := NormalizedPermit{
		Source:          SourceAustin,
		SourceRecordID:  "rec-1",
		PermitNo:        Some("BP-1"),
		Address:         Some("1 Main St"),
		WorkDescription: Some("Reroof"),
		Valuation:       Some(12000.0),
		ContractorName:  Some("ACME"),
		IssuedDate:      Some(*stored.IssuedDate),
		RawPayload:      RawPayload{"permit_number": "BP-1"},
	}

	merged, changed, err := Merge(stored, incoming, "BP-1", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if changed {
		t.Fatalf("expected no change")
	}
	if !merged.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Fatalf("updated_at moved on identical merge")
	}
}

func TestMergeRawPayloadAlwaysReplaced(t *testing.T) {
	stored := basePermit(t)
	incoming := NormalizedPermit{
		Source:         SourceAustin,
		SourceRecordID: "rec-1",
		RawPayload:     RawPayload{"other": "x"},
	}

	merged, changed, err := Merge(stored, incoming, "BP-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if string(merged.RawPayload) != `{"other":"x"}` {
		t.Fatalf("unexpected raw payload %s", merged.RawPayload)
	}
}

func TestMergeRepointsSourceRecordID(t *testing.T) {
	stored := basePermit(t)
	incoming := NormalizedPermit{
		Source:         SourceAustin,
		SourceRecordID: "rec-2",
		RawPayload:     RawPayload{"permit_number": "BP-1"},
	}

	merged, changed, err := Merge(stored, incoming, "BP-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !changed || merged.SourceRecordID != "rec-2" {
		t.Fatalf("expected source record id re-pointed, got %q", merged.SourceRecordID)
	}
	if merged.ID != stored.ID {
		t.Fatalf("id must be stable")
	}
}

func TestSameJSONIgnoresFormatting(t *testing.T) {
	if !sameJSON([]byte(`{"a": 1, "b": "x"}`), []byte(`{"b":"x","a":1}`)) {
		t.Fatalf("expected equal documents")
	}
	if sameJSON([]byte(`{"a":1}`), []byte(`{"a":2}`)) {
		t.Fatalf("expected different documents")
	}
}

func TestSummaryFailedOnStoredValues(t *testing.T) {
	bySource := map[Source]BatchSummary{
		SourceAustin:  {Source: SourceAustin, FetchError: "timeout"},
		SourceDallas:  {Source: SourceDallas, Aborted: "connection reset"},
		SourceHouston: {Source: SourceHouston, Inserted: 2},
	}
	if !bySource[SourceAustin].Failed() || !bySource[SourceDallas].Failed() {
		t.Fatalf("fetch errors and aborts must fail the batch")
	}
	if bySource[SourceHouston].Failed() {
		t.Fatalf("clean batch must not fail")
	}
}
