package service

import (
	"context"
	"testing"
	"time"

	"permit_ingest_backend/internal/events"
	"permit_ingest_backend/internal/leads/domain"
	"permit_ingest_backend/internal/leads/transport"
	outboxdomain "permit_ingest_backend/internal/outbox/domain"
	permitsdomain "permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/store/memory"
	"permit_ingest_backend/platform/apperr"
	"permit_ingest_backend/platform/logger"

	"github.com/google/uuid"
)

func seed(t *testing.T, st *memory.Store) (domain.Lead, permitsdomain.Permit) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	jurisdiction, permitType := "tx-austin", "Residential"
	p := permitsdomain.Permit{
		ID:             uuid.New(),
		Source:         permitsdomain.SourceAustin,
		SourceRecordID: "A-1",
		PermitKey:      "A-1",
		Jurisdiction:   &jurisdiction,
		PermitType:     &permitType,
		IssuedDate:     &now,
		RawPayload:     []byte(`{}`),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := st.Permits().Insert(ctx, p); err != nil {
		t.Fatalf("insert permit: %v", err)
	}
	l := domain.Lead{
		ID:        uuid.New(),
		PermitID:  &p.ID,
		Name:      "Pat Applicant",
		County:    "Travis County",
		Service:   "Roofing",
		Trade:     "Roofing",
		Status:    domain.StatusNew,
		Source:    domain.SourcePermitIngest,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.Leads().Insert(ctx, l); err != nil {
		t.Fatalf("insert lead: %v", err)
	}
	return l, p
}

func pending(t *testing.T, st *memory.Store) []outboxdomain.Event {
	t.Helper()
	evs, err := st.Events().ListPending(context.Background(), outboxdomain.PendingFilter{Limit: 10})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	return evs
}

func TestChangeStatusRecordsEvent(t *testing.T) {
	st := memory.New()
	lead, _ := seed(t, st)
	svc := New(st, logger.Discard())

	resp, err := svc.ChangeStatus(context.Background(), lead.ID, domain.StatusContacted)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if !resp.Changed || resp.Lead.Status != domain.StatusContacted {
		t.Fatalf("unexpected response %+v", resp)
	}
	stored, _ := st.Leads().GetByID(context.Background(), lead.ID)
	if stored.Status != domain.StatusContacted {
		t.Fatalf("status not persisted: %s", stored.Status)
	}
	evs := pending(t, st)
	if len(evs) != 1 || evs[0].Type != events.TypeLeadStatusChanged {
		t.Fatalf("expected one lead.status_changed event, got %+v", evs)
	}
}

func TestChangeStatusSameStatusIsNoop(t *testing.T) {
	st := memory.New()
	lead, _ := seed(t, st)

	resp, err := New(st, logger.Discard()).ChangeStatus(context.Background(), lead.ID, domain.StatusNew)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if resp.Changed {
		t.Fatalf("same status must not report a change")
	}
	if got := len(pending(t, st)); got != 0 {
		t.Fatalf("expected no events, got %d", got)
	}
}

func TestChangeStatusErrors(t *testing.T) {
	st := memory.New()
	lead, _ := seed(t, st)
	svc := New(st, logger.Discard())

	if _, err := svc.ChangeStatus(context.Background(), lead.ID, "archived"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), uuid.New(), domain.StatusWon); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListProjectsPermitFacts(t *testing.T) {
	st := memory.New()
	lead, p := seed(t, st)

	resp, err := New(st, logger.Discard()).List(context.Background(), transport.ListLeadsRequest{County: "Travis County"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Page != 1 || resp.TotalPages != 1 {
		t.Fatalf("unexpected page %+v", resp)
	}
	item := resp.Items[0]
	if item.ID != lead.ID || item.Jurisdiction != "tx-austin" || item.PermitType != "Residential" {
		t.Fatalf("unexpected projection %+v", item)
	}
	if item.IssuedDate == nil || !item.IssuedDate.Equal(*p.IssuedDate) {
		t.Fatalf("issued date not projected")
	}
}
