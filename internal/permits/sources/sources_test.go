package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/platform/config"
	"permit_ingest_backend/platform/logger"
)

func newAdapter(t *testing.T, source domain.Source, url, token string) *HTTPAdapter {
	t.Helper()
	def, ok := Lookup(source)
	if !ok {
		t.Fatalf("no definition for %s", source)
	}
	a, err := NewHTTPAdapter(def, config.SourceSettings{URL: url, Token: token}, 500, http.DefaultClient, logger.Discard())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return a
}

const austinJSON = `[
  {"permit_number":"2024-001 BP","permit_type_desc":"Residential","description":"Reroof",
   "original_address1":"100 Congress Ave","original_zip":"78701","total_job_valuation":"$12,500.00",
   "applicant_full_name":"Pat Applicant","issue_date":"2024-03-01T00:00:00.000",
   "location":{"latitude":"30.2672","longitude":"-97.7431"}},
  "not an object",
  {"permit_number":"2024-002 BP","total_job_valuation":"n/a","issue_date":"garbage","contractor_company_name":""}
]`

func TestSocrataFetchMapsRowsAndSendsToken(t *testing.T) {
	var gotToken, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-App-Token")
		gotLimit = r.URL.Query().Get("$limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(austinJSON))
	}))
	defer srv.Close()

	batch, err := newAdapter(t, domain.SourceAustin, srv.URL, "app-token").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotToken != "app-token" || gotLimit != "500" {
		t.Fatalf("expected token and limit, got %q %q", gotToken, gotLimit)
	}
	if batch.Seen != 3 || len(batch.Permits) != 2 || len(batch.ParseErrors) != 1 {
		t.Fatalf("unexpected batch counts: seen=%d permits=%d errors=%d", batch.Seen, len(batch.Permits), len(batch.ParseErrors))
	}

	first := batch.Permits[0]
	if first.SourceRecordID != "2024-001 BP" || first.Address.Value != "100 Congress Ave" {
		t.Fatalf("unexpected mapping %+v", first)
	}
	if !first.Valuation.IsSet() || first.Valuation.Value != 12500 {
		t.Fatalf("expected valuation 12500, got %+v", first.Valuation)
	}
	if !first.Latitude.IsSet() || first.Latitude.Value != 30.2672 || first.Longitude.Value != -97.7431 {
		t.Fatalf("expected nested coordinates, got %+v %+v", first.Latitude, first.Longitude)
	}
	wantIssued := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	if !first.IssuedDate.Value.Equal(wantIssued) {
		t.Fatalf("expected issued %v, got %v", wantIssued, first.IssuedDate.Value)
	}
	if first.Jurisdiction.Value != "tx-austin" || first.City.Value != "Austin" {
		t.Fatalf("expected source defaults, got %q %q", first.Jurisdiction.Value, first.City.Value)
	}
	if first.ContractorName.Present {
		t.Fatalf("contractor absent from row must stay absent")
	}

	second := batch.Permits[1]
	if second.Valuation.Present || second.IssuedDate.Present {
		t.Fatalf("malformed values must be coerced to absent")
	}
	if !second.ContractorName.Present || second.ContractorName.Value != "" {
		t.Fatalf("explicit empty contractor must be present and empty")
	}
}

func TestFetchUsesBearerForNonSocrata(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("PERMIT #,ADDRESS\nSA-1,1 Alamo Plaza\n"))
	}))
	defer srv.Close()

	if _, err := newAdapter(t, domain.SourceSanAntonio, srv.URL, "secret").Fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
}

func TestCSVFetchToleratesRaggedRows(t *testing.T) {
	body := "\xef\xbb\xbfPERMIT #,PERMIT TYPE,ADDRESS,DATE ISSUED,DECLARED VALUATION,PRIMARY CONTACT\n" +
		"SA-1,Residential Pool,\"1 Alamo Plaza\",03/04/2024,\"45,000\",Sam Owner\n" +
		"SA-2,Fence\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	batch, err := newAdapter(t, domain.SourceSanAntonio, srv.URL, "").Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch.Permits) != 2 {
		t.Fatalf("expected 2 permits, got %d (%v)", len(batch.Permits), batch.ParseErrors)
	}
	first := batch.Permits[0]
	if first.SourceRecordID != "SA-1" || first.ApplicantName.Value != "Sam Owner" || first.Valuation.Value != 45000 {
		t.Fatalf("unexpected mapping %+v", first)
	}
	if first.Jurisdiction.Value != "tx-san-antonio" {
		t.Fatalf("unexpected jurisdiction %q", first.Jurisdiction.Value)
	}
	if batch.Permits[1].Address.Present {
		t.Fatalf("missing trailing cells must be absent")
	}
}

const houstonHTML = `<html><body>
<table id="nav"><tr><td>menu</td></tr></table>
<table class="permits">
  <thead><tr><th>Permit Number</th><th>Address</th><th>Permit Type</th><th>Description</th><th>Issue Date</th><th>Valuation</th></tr></thead>
  <tbody>
    <tr><td>HOU-1</td><td>901 Bagby&nbsp;St</td><td>Building</td><td>Solar <b>panels</b></td><td>01/15/2024</td><td>$9,000</td></tr>
    <tr><td>broken</td></tr>
  </tbody>
</table></body></html>`

func TestHTMLFetchSynthesizesStableIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(houstonHTML))
	}))
	defer srv.Close()

	a := newAdapter(t, domain.SourceHouston, srv.URL, "")
	first, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(first.Permits) != 1 || len(first.ParseErrors) != 1 {
		t.Fatalf("expected 1 permit and 1 parse error, got %d/%d", len(first.Permits), len(first.ParseErrors))
	}
	p := first.Permits[0]
	if p.Address.Value != "901 Bagby St" || p.WorkDescription.Value != "Solar panels" {
		t.Fatalf("unexpected cell text %q %q", p.Address.Value, p.WorkDescription.Value)
	}
	if !strings.HasPrefix(p.SourceRecordID, "houston_h_") || len(p.SourceRecordID) != len("houston_h_")+16 {
		t.Fatalf("unexpected synthesized id %q", p.SourceRecordID)
	}
	if p.PermitNo.Value != "HOU-1" {
		t.Fatalf("expected permit number, got %q", p.PermitNo.Value)
	}

	again, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if again.Permits[0].SourceRecordID != p.SourceRecordID {
		t.Fatalf("synthesized id must be stable across fetches")
	}
}

func TestFetchFailuresAbortTheBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/down") {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"error":"bad query"}`))
	}))
	defer srv.Close()

	for _, path := range []string{"/down", "/garbage"} {
		_, err := newAdapter(t, domain.SourceDallas, srv.URL+path, "").Fetch(context.Background())
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("%s: expected fetch error, got %v", path, err)
		}
		if fetchErr.Source != domain.SourceDallas || fetchErr.At.IsZero() {
			t.Fatalf("%s: fetch error must carry source and time", path)
		}
	}
}

func TestColumnKey(t *testing.T) {
	cases := map[string]string{
		"Permit #":           "permit",
		"  Issue Date ":      "issue_date",
		"X Coord (Lat)":      "x_coord_lat",
		"DECLARED VALUATION": "declared_valuation",
	}
	for in, want := range cases {
		if got := columnKey(in); got != want {
			t.Fatalf("columnKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseMoneyAndTime(t *testing.T) {
	if v, ok := parseMoney(" $1,250.50 "); !ok || v != 1250.5 {
		t.Fatalf("unexpected money parse %v %v", v, ok)
	}
	if _, ok := parseMoney("TBD"); ok {
		t.Fatalf("expected failure")
	}
	if ts, ok := parseTimeFlexible("2024-03-01T12:00:00Z"); !ok || ts.Hour() != 12 {
		t.Fatalf("unexpected zoned parse %v", ts)
	}
	if ts, ok := parseTimeFlexible("1709251200"); !ok || ts.Year() != 2024 {
		t.Fatalf("unexpected epoch parse %v", ts)
	}
}

func TestRegistryBuildsConfiguredSources(t *testing.T) {
	cfg := &config.Config{
		IngestPageLimit: 10,
		Sources: map[string]config.SourceSettings{
			"austin":  {URL: "https://example.test/austin.json"},
			"houston": {URL: ""},
		},
	}
	reg, err := NewRegistry(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	got := reg.Sources()
	if len(got) != 1 || got[0] != domain.SourceAustin {
		t.Fatalf("expected only austin, got %v", got)
	}
	if _, ok := reg.Get(domain.SourceHouston); ok {
		t.Fatalf("unconfigured source must not be registered")
	}
}

func TestPickTimeKeepsMicrosecondPrecision(t *testing.T) {
	row := domain.RawPayload{"issue_date": "2024-03-01T12:00:00.123456789Z"}
	got := pickTime(row, "issue_date")
	if !got.IsSet() {
		t.Fatalf("expected issued date to be set")
	}
	if got.Value.Nanosecond() != 123456000 {
		t.Fatalf("expected time cut to microseconds, got %d ns", got.Value.Nanosecond())
	}
	again := pickTime(domain.RawPayload{"issue_date": "2024-03-01T12:00:00.123456Z"}, "issue_date")
	if !again.Value.Equal(got.Value) {
		t.Fatalf("expected %s to equal %s", again.Value, got.Value)
	}
}

const houstonCaptionedHTML = `<table>
  <tr><td colspan="3">Issued permits, January 2024</td></tr>
  <tr></tr>
  <tr><th>Permit Number</th><th>Address</th><th>Description</th></tr>
  <tr><td>HOU-7</td><td>1200 Main St</td><td>New fence</td></tr>
</table>`

func TestHTMLRowsBeforeHeaderCountAsDropped(t *testing.T) {
	a, err := NewReplayAdapter(domain.SourceHouston, []byte(houstonCaptionedHTML), time.Now())
	if err != nil {
		t.Fatalf("replay adapter: %v", err)
	}
	batch, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if batch.Seen != 2 || len(batch.Permits) != 1 || len(batch.ParseErrors) != 1 {
		t.Fatalf("expected 2 seen, 1 permit, 1 dropped, got %d/%d/%d", batch.Seen, len(batch.Permits), len(batch.ParseErrors))
	}
	if batch.ParseErrors[0].Row != 0 || batch.ParseErrors[0].Reason != "row before header" {
		t.Fatalf("unexpected parse error %+v", batch.ParseErrors[0])
	}
	if batch.Permits[0].PermitNo.Value != "HOU-7" {
		t.Fatalf("unexpected permit %+v", batch.Permits[0])
	}
}
