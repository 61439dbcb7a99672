package ingest

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"permit_ingest_backend/internal/events"
	"permit_ingest_backend/internal/leads/derive"
	leadsdomain "permit_ingest_backend/internal/leads/domain"
	"permit_ingest_backend/internal/leads/rules"
	outboxdomain "permit_ingest_backend/internal/outbox/domain"
	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/permits/service"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/internal/store/memory"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/validator"
)

type staticAdapter struct {
	source domain.Source
	batch  *sources.Batch
	err    error
}

func (a staticAdapter) Source() domain.Source { return a.source }

func (a staticAdapter) Fetch(context.Context) (*sources.Batch, error) {
	if a.err != nil {
		return nil, domain.NewFetchError(a.source, a.err)
	}
	return a.batch, nil
}

type recordingArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *recordingArchive) Put(_ context.Context, source, runID string, at time.Time, _, ext string, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := source + "/" + runID + "." + ext
	a.keys = append(a.keys, key)
	return key, nil
}

func (a *recordingArchive) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (a *recordingArchive) EnsureBucketExists(context.Context) error { return nil }

func permit(source domain.Source, id, desc string) domain.NormalizedPermit {
	return domain.NormalizedPermit{
		Source:          source,
		SourceRecordID:  id,
		PermitNo:        domain.Some(id),
		Jurisdiction:    domain.Some("tx-austin"),
		WorkDescription: domain.Some(desc),
		ApplicantName:   domain.Some("Pat Applicant"),
		RawPayload:      domain.RawPayload{"permit_number": id},
	}
}

func threeRecordBatch(source domain.Source) *sources.Batch {
	return &sources.Batch{
		Source:    source,
		FetchedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Raw:       []byte(`[]`),
		Extension: "json",
		Seen:      3,
		Permits: []domain.NormalizedPermit{
			permit(source, "P-1", "Reroof"),
			permit(source, "P-2", "New pool"),
			permit(source, "P-1", "Reroof"),
		},
	}
}

func newRunner(t *testing.T, st store.Store, archive *recordingArchive, adapters ...sources.Adapter) *Runner {
	t.Helper()
	r, err := rules.Default()
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	permits := service.New(st, derive.New(r, validator.New(), logger.Discard()), logger.Discard())
	runner := New(sources.NewStaticRegistry(adapters...), st, permits, nil, nil, logger.Discard())
	if archive != nil {
		runner.archive = archive
	}
	var n atomic.Int64
	runner.newRunID = func() string {
		return "run-" + strconv.FormatInt(n.Add(1), 10)
	}
	return runner
}

func pending(t *testing.T, st store.Store) []outboxdomain.Event {
	t.Helper()
	evs, err := st.Events().ListPending(context.Background(), outboxdomain.PendingFilter{Limit: 100})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	return evs
}

func TestRunThreeRecordBatch(t *testing.T) {
	st := memory.New()
	archive := &recordingArchive{}
	runner := newRunner(t, st, archive, staticAdapter{source: domain.SourceAustin, batch: threeRecordBatch(domain.SourceAustin)})

	summary, err := runner.Run(context.Background(), domain.SourceAustin, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Fetched != 3 || summary.Upserted != 3 || summary.Errors != 0 {
		t.Fatalf("unexpected totals %+v", summary)
	}
	if summary.Inserted != 2 || summary.Updated != 1 || summary.Unchanged != 1 || summary.LeadsMade != 2 {
		t.Fatalf("unexpected breakdown %+v", summary)
	}
	if summary.ArchiveKey != "austin/run-1.json" {
		t.Fatalf("expected archive key, got %q", summary.ArchiveKey)
	}
	if summary.FinishedAt.Before(summary.StartedAt) {
		t.Fatalf("finish before start")
	}

	counts := map[string]int{}
	for _, ev := range pending(t, st) {
		counts[ev.Type]++
	}
	if counts[events.TypePermitCreated] != 2 || counts[events.TypeLeadCreated] != 2 || len(counts) != 2 {
		t.Fatalf("expected 2 permit.created and 2 lead.created, got %v", counts)
	}

	again, err := runner.Run(context.Background(), domain.SourceAustin, false)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again.Inserted != 0 || again.Unchanged != 3 || len(pending(t, st)) != 4 {
		t.Fatalf("rerun must be a no-op, got %+v", again)
	}
}

func TestRunDryRunLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	archive := &recordingArchive{}
	runner := newRunner(t, st, archive, staticAdapter{source: domain.SourceAustin, batch: threeRecordBatch(domain.SourceAustin)})

	summary, err := runner.Run(ctx, domain.SourceAustin, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !summary.DryRun || summary.Inserted != 2 || summary.Unchanged != 1 || summary.LeadsMade != 2 {
		t.Fatalf("dry run should report what would happen, got %+v", summary)
	}
	if _, total, _ := st.Permits().List(ctx, domain.ListFilter{Limit: 10}); total != 0 {
		t.Fatalf("dry run persisted %d permits", total)
	}
	if got := len(pending(t, st)); got != 0 {
		t.Fatalf("dry run persisted %d events", got)
	}
	if len(archive.keys) != 0 || summary.ArchiveKey != "" {
		t.Fatalf("dry run must not archive")
	}
}

func TestRunReportsFetchFailureInSummary(t *testing.T) {
	runner := newRunner(t, memory.New(), nil, staticAdapter{source: domain.SourceDallas, err: errors.New("connection refused")})

	summary, err := runner.Run(context.Background(), domain.SourceDallas, false)
	if err != nil {
		t.Fatalf("fetch failure must not be returned as error: %v", err)
	}
	if !summary.Failed() || !strings.Contains(summary.FetchError, "connection refused") {
		t.Fatalf("expected fetch error in summary, got %+v", summary)
	}
	if summary.Upserted != 0 {
		t.Fatalf("no records expected after fetch failure")
	}
}

func TestRunCountsParseErrorsAsDropped(t *testing.T) {
	batch := threeRecordBatch(domain.SourceAustin)
	batch.Seen = 4
	batch.ParseErrors = []*domain.ParseError{{Source: domain.SourceAustin, Row: 3, Reason: "row is not an object"}}
	runner := newRunner(t, memory.New(), nil, staticAdapter{source: domain.SourceAustin, batch: batch})

	summary, err := runner.Run(context.Background(), domain.SourceAustin, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Dropped != 1 || summary.Errors != 1 || summary.Upserted != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.RowErrors) != 1 || summary.RowErrors[0].Row != 3 {
		t.Fatalf("expected row error for row 3, got %+v", summary.RowErrors)
	}
}

func TestRunKeepsGoingAfterRowErrors(t *testing.T) {
	batch := threeRecordBatch(domain.SourceAustin)
	batch.Permits = append(batch.Permits, domain.NormalizedPermit{Source: domain.SourceAustin})
	runner := newRunner(t, memory.New(), nil, staticAdapter{source: domain.SourceAustin, batch: batch})

	summary, err := runner.Run(context.Background(), domain.SourceAustin, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Errors != 1 || summary.Upserted != 3 {
		t.Fatalf("expected one row error and three upserts, got %+v", summary)
	}
}

type brokenUpserter struct{}

func (brokenUpserter) UpsertIn(context.Context, store.Tx, domain.NormalizedPermit) (domain.UpsertResult, error) {
	return domain.UpsertResult{}, errors.New("connection reset")
}

func TestRunAbortsOnStoreFailure(t *testing.T) {
	st := memory.New()
	runner := New(sources.NewStaticRegistry(staticAdapter{source: domain.SourceAustin, batch: threeRecordBatch(domain.SourceAustin)}),
		st, brokenUpserter{}, nil, nil, logger.Discard())

	summary, err := runner.Run(context.Background(), domain.SourceAustin, false)
	if err == nil {
		t.Fatalf("expected store failure to be returned")
	}
	if summary.Aborted == "" || !summary.Failed() {
		t.Fatalf("expected aborted summary, got %+v", summary)
	}
}

func TestRunUnknownSource(t *testing.T) {
	runner := newRunner(t, memory.New(), nil)
	if _, err := runner.Run(context.Background(), domain.SourceHouston, false); err == nil {
		t.Fatalf("expected error for unconfigured source")
	}
}

func TestRunAllIsolatesFailingSource(t *testing.T) {
	st := memory.New()
	runner := newRunner(t, st, nil,
		staticAdapter{source: domain.SourceAustin, err: errors.New("timeout")},
		staticAdapter{source: domain.SourceDallas, batch: threeRecordBatch(domain.SourceDallas)},
	)

	summaries := runner.RunAll(context.Background(), false)
	if len(summaries) != 2 {
		t.Fatalf("expected two summaries, got %d", len(summaries))
	}
	bySource := map[domain.Source]domain.BatchSummary{}
	for _, s := range summaries {
		bySource[s.Source] = s
	}
	if !bySource[domain.SourceAustin].Failed() {
		t.Fatalf("austin should have failed")
	}
	dallas := bySource[domain.SourceDallas]
	if dallas.Failed() || dallas.Inserted != 2 {
		t.Fatalf("dallas should have succeeded, got %+v", dallas)
	}
}

func TestRunArchiveFailureIsNotFatal(t *testing.T) {
	archive := &recordingArchive{err: errors.New("bucket missing")}
	runner := newRunner(t, memory.New(), archive, staticAdapter{source: domain.SourceAustin, batch: threeRecordBatch(domain.SourceAustin)})

	summary, err := runner.Run(context.Background(), domain.SourceAustin, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.ArchiveKey != "" || summary.Inserted != 2 {
		t.Fatalf("archive failure must only skip the key, got %+v", summary)
	}
}

const (
	austinBody = `[
  {"permit_number":"2024-100001 BP","permit_type_desc":"Residential Permit","description":"Reroof residential, replace shingles",
   "original_address1":"100 Congress Ave","applicant_full_name":"Jane Roe","issue_date":"2024-03-01T00:00:00.000"},
  {"permit_number":"2024-100001 BP","permit_type_desc":"Residential Permit","description":"Reroof residential, replace shingles",
   "original_address1":"100 Congress Ave","applicant_full_name":"Jane Roe","issue_date":"2024-03-01T00:00:00.000"}
]`
	dallasBody = `[
  {"permit_number":"DAL-2024-55","permit_type":"Commercial Alteration","work_description":"Tenant finish out suite 200",
   "street_address":"500 Elm St","value":"250000"}
]`
)

func replayAdapter(t *testing.T, source domain.Source, body string) sources.Adapter {
	t.Helper()
	a, err := sources.NewReplayAdapter(source, []byte(body), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("replay adapter %s: %v", source, err)
	}
	return a
}

func TestRunAustinAndDallasFeedsEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	runner := newRunner(t, st, nil,
		replayAdapter(t, domain.SourceAustin, austinBody),
		replayAdapter(t, domain.SourceDallas, dallasBody),
	)

	austin, err := runner.Run(ctx, domain.SourceAustin, false)
	if err != nil {
		t.Fatalf("austin run: %v", err)
	}
	if austin.Fetched != 2 || austin.Inserted != 1 || austin.Updated != 1 || austin.Unchanged != 1 || austin.Errors != 0 {
		t.Fatalf("unexpected austin summary %+v", austin)
	}
	dallas, err := runner.Run(ctx, domain.SourceDallas, false)
	if err != nil {
		t.Fatalf("dallas run: %v", err)
	}
	if dallas.Inserted != 1 || dallas.Errors != 0 {
		t.Fatalf("unexpected dallas summary %+v", dallas)
	}

	leads, total, err := st.Leads().List(ctx, leadsdomain.ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 leads, got %d", total)
	}
	byName := map[string]leadsdomain.Lead{}
	for _, l := range leads {
		byName[l.Name] = l
	}

	roofer, ok := byName["Jane Roe"]
	if !ok {
		t.Fatalf("expected a lead named after the applicant, got %v", byName)
	}
	if roofer.Trade != "Roofing" || roofer.Service != "Roofing" || roofer.County != "Travis County" {
		t.Fatalf("unexpected austin lead %+v", roofer)
	}
	if roofer.Metadata["classification_rule"] != rules.RuleKeyword {
		t.Fatalf("expected keyword rule, got %v", roofer.Metadata["classification_rule"])
	}

	anonymous, ok := byName[leadsdomain.UnknownValue]
	if !ok {
		t.Fatalf("expected a lead without contact names to be Unknown, got %v", byName)
	}
	if anonymous.Trade != "Commercial" || anonymous.County != "Dallas County" {
		t.Fatalf("unexpected dallas lead %+v", anonymous)
	}
	if anonymous.Metadata["classification_rule"] != rules.RulePermitType {
		t.Fatalf("expected permit type rule, got %v", anonymous.Metadata["classification_rule"])
	}
	if anonymous.Value == nil || *anonymous.Value != 250000 {
		t.Fatalf("expected valuation copied to lead, got %v", anonymous.Value)
	}

	counts := map[string]int{}
	for _, ev := range pending(t, st) {
		counts[ev.Type]++
	}
	if counts[events.TypePermitCreated] != 2 || counts[events.TypeLeadCreated] != 2 || len(counts) != 2 {
		t.Fatalf("expected 2 permit.created and 2 lead.created, got %v", counts)
	}
}
