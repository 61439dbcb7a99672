// Package ingest runs one source end to end: fetch, archive, resolve, upsert
// and summarize. Runs of different sources are independent.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"permit_ingest_backend/internal/adapters/storage"
	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/apperr"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AllSources selects every configured source.
const AllSources = "all"

// Upserter writes one normalized permit in a unit of work nested under scope.
type Upserter interface {
	UpsertIn(ctx context.Context, scope store.Tx, np domain.NormalizedPermit) (domain.UpsertResult, error)
}

// Runner executes ingest runs.
type Runner struct {
	sources  *sources.Registry
	store    store.Store
	permits  Upserter
	archive  storage.RawArchive
	metrics  *metrics.Ingest
	log      *logger.Logger
	newRunID func() string
	now      func() time.Time
}

// New creates a runner. archive and m may be nil.
func New(reg *sources.Registry, st store.Store, permits Upserter, archive storage.RawArchive, m *metrics.Ingest, log *logger.Logger) *Runner {
	return &Runner{
		sources:  reg,
		store:    st,
		permits:  permits,
		archive:  archive,
		metrics:  m,
		log:      log,
		newRunID: func() string { return uuid.NewString() },
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sources lists configured sources.
func (r *Runner) Sources() []domain.Source {
	return r.sources.Sources()
}

// Run ingests one source. A fetch failure is reported in the summary, not as
// an error. The returned error is reserved for unknown sources and store
// failures that stop the batch.
func (r *Runner) Run(ctx context.Context, source domain.Source, dryRun bool) (domain.BatchSummary, error) {
	adapter, ok := r.sources.Get(source)
	if !ok {
		return domain.BatchSummary{}, apperr.Validation(fmt.Sprintf("source %q is not configured", source))
	}
	return r.run(ctx, adapter, dryRun)
}

// RunAll ingests every configured source concurrently. One summary is
// returned per source in registry order; a failing source never stops the
// others.
func (r *Runner) RunAll(ctx context.Context, dryRun bool) []domain.BatchSummary {
	list := r.sources.Sources()
	summaries := make([]domain.BatchSummary, len(list))

	var g errgroup.Group
	for i, source := range list {
		g.Go(func() error {
			adapter, _ := r.sources.Get(source)
			summary, err := r.run(ctx, adapter, dryRun)
			if err != nil {
				summary.Aborted = err.Error()
			}
			summaries[i] = summary
			return nil
		})
	}
	_ = g.Wait()
	return summaries
}

// Replay ingests an archived batch through adapter instead of fetching.
func (r *Runner) Replay(ctx context.Context, adapter sources.Adapter, dryRun bool) (domain.BatchSummary, error) {
	return r.run(ctx, adapter, dryRun)
}

func (r *Runner) run(ctx context.Context, adapter sources.Adapter, dryRun bool) (domain.BatchSummary, error) {
	source := adapter.Source()
	runID := r.newRunID()
	log := r.log.WithRunID(runID).WithSource(string(source))
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)

	summary := domain.BatchSummary{
		RunID:     runID,
		Source:    source,
		DryRun:    dryRun,
		StartedAt: r.now(),
	}

	batch, err := adapter.Fetch(ctx)
	if err != nil {
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = domain.NewFetchError(source, err)
		}
		summary.FetchError = fetchErr.Error()
		log.FetchFailed(string(source), fetchErr.At, fetchErr.Err)
		r.finish(log, &summary, metrics.OutcomeFailed)
		return summary, nil
	}

	summary.Fetched = batch.Seen
	if !dryRun {
		summary.ArchiveKey = r.archiveBatch(ctx, log, runID, batch)
	}
	for _, pe := range batch.ParseErrors {
		summary.Dropped++
		summary.AddRowError(pe.Row, "", pe)
	}

	if dryRun {
		err = r.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := r.upsertAll(ctx, tx, batch.Permits, &summary); err != nil {
				return err
			}
			return store.ErrRollback
		})
		if store.IsRollback(err) {
			err = nil
		}
	} else {
		err = r.upsertAll(ctx, r.store, batch.Permits, &summary)
	}
	if err != nil {
		summary.Aborted = err.Error()
		log.DatabaseError("ingest_upsert", err)
		r.finish(log, &summary, metrics.OutcomeFailed)
		return summary, fmt.Errorf("ingest %s: %w", source, err)
	}

	outcome := metrics.OutcomeSuccess
	if summary.Errors > 0 {
		outcome = metrics.OutcomePartial
	}
	r.finish(log, &summary, outcome)
	return summary, nil
}

// upsertAll writes every record in its own nested unit of work. Row errors are
// counted; anything else stops the batch.
func (r *Runner) upsertAll(ctx context.Context, scope store.Tx, permits []domain.NormalizedPermit, summary *domain.BatchSummary) error {
	for i, np := range permits {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := r.permits.UpsertIn(ctx, scope, np)
		if err != nil {
			if domain.IsRowError(err) {
				summary.AddRowError(i, np.SourceRecordID, err)
				continue
			}
			return err
		}
		summary.AddResult(result)
	}
	return nil
}

func (r *Runner) archiveBatch(ctx context.Context, log *logger.Logger, runID string, batch *sources.Batch) string {
	if r.archive == nil || len(batch.Raw) == 0 {
		return ""
	}
	key, err := r.archive.Put(ctx, string(batch.Source), runID, batch.FetchedAt, batch.ContentType, batch.Extension, batch.Raw)
	if err != nil {
		log.Warn("raw archive failed", "error", err)
		return ""
	}
	return key
}

func (r *Runner) finish(log *logger.Logger, summary *domain.BatchSummary, outcome string) {
	summary.FinishedAt = r.now()
	took := summary.FinishedAt.Sub(summary.StartedAt)
	source := string(summary.Source)
	r.metrics.RecordsUpserted(source, string(domain.ActionInserted), summary.Inserted)
	r.metrics.RecordsUpserted(source, string(domain.ActionUpdated), summary.Updated-summary.Unchanged)
	r.metrics.RecordsUpserted(source, "unchanged", summary.Unchanged)
	r.metrics.RunFinished(source, outcome, summary.DryRun, summary.Errors, took, summary.FinishedAt)
	log.IngestRun(source, summary.Fetched, summary.Upserted, summary.Errors, summary.DryRun, took)
}
