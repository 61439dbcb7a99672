// Package sources fetches permit feeds and maps their rows to
// NormalizedPermit. Each source is a Definition (format, jurisdiction and
// field map) served by the shared HTTP adapter.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/platform/config"
	"permit_ingest_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	maxBodyBytes   = 64 << 20
	userAgent      = "permit-ingest/1.0"
	socrataTokenHd = "X-App-Token"
)

// Adapter fetches one source. A Fetch either returns a whole batch or fails
// as a whole; it is never resumed.
type Adapter interface {
	Source() domain.Source
	Fetch(ctx context.Context) (*Batch, error)
}

// Batch is the result of one fetch.
type Batch struct {
	Source      domain.Source
	FetchedAt   time.Time
	Raw         []byte
	ContentType string
	Extension   string
	// Seen counts rows found in the body, including dropped ones.
	Seen        int
	Permits     []domain.NormalizedPermit
	ParseErrors []*domain.ParseError
}

// Definition describes one source.
type Definition struct {
	Source       domain.Source
	Format       Format
	Jurisdiction string
	// Socrata sources take $limit and the X-App-Token header.
	Socrata      bool
	DefaultCity  string
	DefaultState string
	Fields       FieldMap
}

// HTTPAdapter serves any Definition over HTTP GET.
type HTTPAdapter struct {
	def       Definition
	settings  config.SourceSettings
	pageLimit int
	client    *http.Client
	limiter   *rate.Limiter
	decode    rowDecoder
	log       *logger.Logger
}

// NewHTTPAdapter builds an adapter. RequestsPerSec <= 0 disables throttling.
func NewHTTPAdapter(def Definition, settings config.SourceSettings, pageLimit int, client *http.Client, log *logger.Logger) (*HTTPAdapter, error) {
	decode, err := decoderFor(def.Format)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", def.Source, err)
	}
	if _, err := url.Parse(settings.URL); err != nil || settings.URL == "" {
		return nil, fmt.Errorf("source %s: invalid url %q", def.Source, settings.URL)
	}
	limit := rate.Inf
	if settings.RequestsPerSec > 0 {
		limit = rate.Limit(settings.RequestsPerSec)
	}
	return &HTTPAdapter{
		def:       def,
		settings:  settings,
		pageLimit: pageLimit,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		decode:    decode,
		log:       log.WithSource(string(def.Source)),
	}, nil
}

func (a *HTTPAdapter) Source() domain.Source { return a.def.Source }

// Fetch downloads one page and normalizes every row. Malformed rows are
// reported in the batch; only transport or body-level failures return an error.
func (a *HTTPAdapter) Fetch(ctx context.Context) (*Batch, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, domain.NewFetchError(a.def.Source, err)
	}

	body, contentType, err := a.get(ctx)
	if err != nil {
		return nil, domain.NewFetchError(a.def.Source, err)
	}

	batch, err := parseBatch(a.def, a.decode, body, contentType, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	a.log.Debug("source fetched", "rows", batch.Seen, "permits", len(batch.Permits), "dropped", len(batch.ParseErrors))
	return batch, nil
}

// parseBatch decodes a response body and normalizes every row.
func parseBatch(def Definition, decode rowDecoder, body []byte, contentType string, fetchedAt time.Time) (*Batch, error) {
	rows, parseErrs, err := decode(body, def.Source)
	if err != nil {
		return nil, domain.NewFetchError(def.Source, err)
	}

	batch := &Batch{
		Source:      def.Source,
		FetchedAt:   fetchedAt,
		Raw:         body,
		ContentType: contentType,
		Extension:   string(def.Format),
		Seen:        len(rows),
		Permits:     make([]domain.NormalizedPermit, 0, len(rows)),
		ParseErrors: parseErrs,
	}
	for i, row := range rows {
		if row == nil {
			continue
		}
		np, parseErr := def.normalize(row, i)
		if parseErr != nil {
			batch.ParseErrors = append(batch.ParseErrors, parseErr)
			continue
		}
		batch.Permits = append(batch.Permits, np)
	}
	return batch, nil
}

func (a *HTTPAdapter) get(ctx context.Context) ([]byte, string, error) {
	u, _ := url.Parse(a.settings.URL)
	if a.def.Socrata && a.pageLimit > 0 {
		q := u.Query()
		if q.Get("$limit") == "" {
			q.Set("$limit", strconv.Itoa(a.pageLimit))
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptFor(a.def.Format))
	if token := strings.TrimSpace(a.settings.Token); token != "" {
		if a.def.Socrata {
			req.Header.Set(socrataTokenHd, token)
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > maxBodyBytes {
		return nil, "", fmt.Errorf("response exceeds %d bytes", maxBodyBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func acceptFor(f Format) string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	default:
		return "text/html"
	}
}
