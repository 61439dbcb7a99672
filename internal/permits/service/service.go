// Package service is the permit upsert engine. Each record is written in its
// own unit of work together with its events and, on insert, its lead.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"permit_ingest_backend/internal/events"
	leadsdomain "permit_ingest_backend/internal/leads/domain"
	outbox "permit_ingest_backend/internal/outbox/service"
	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/permits/identity"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/apperr"
	"permit_ingest_backend/platform/logger"

	"github.com/google/uuid"
)

// maxUpsertAttempts bounds retries after a unique violation. The second
// attempt normally finds the row a concurrent writer just inserted.
const maxUpsertAttempts = 3

// LeadDeriver creates the lead for a newly inserted permit within tx.
// It returns nil when the permit already has a lead.
type LeadDeriver interface {
	DeriveLead(ctx context.Context, tx store.Tx, p domain.Permit) (*leadsdomain.Lead, error)
}

type Service struct {
	store store.Store
	leads LeadDeriver
	log   *logger.Logger
	now   func() time.Time
}

func New(st store.Store, leads LeadDeriver, log *logger.Logger) *Service {
	return &Service{
		store: st,
		leads: leads,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Upsert writes np in its own unit of work.
func (s *Service) Upsert(ctx context.Context, np domain.NormalizedPermit) (domain.UpsertResult, error) {
	return s.UpsertIn(ctx, s.store, np)
}

// UpsertIn writes np in a unit of work nested under scope. Passing the root
// store gives a top-level transaction; passing a Tx gives a savepoint.
func (s *Service) UpsertIn(ctx context.Context, scope store.Tx, np domain.NormalizedPermit) (domain.UpsertResult, error) {
	if strings.TrimSpace(np.SourceRecordID) == "" {
		return domain.UpsertResult{}, &domain.ParseError{Source: np.Source, Row: -1, Reason: "missing source_record_id"}
	}
	key, err := identity.Resolve(np)
	if err != nil {
		return domain.UpsertResult{}, err
	}

	for attempt := 1; ; attempt++ {
		var result domain.UpsertResult
		err := scope.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			result, err = s.upsertTx(ctx, tx, np, key)
			return err
		})
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return domain.UpsertResult{}, err
		}
		if attempt >= maxUpsertAttempts {
			return domain.UpsertResult{}, fmt.Errorf("%s/%s after %d attempts: %w", np.Source, key, attempt, domain.ErrConflict)
		}
		s.log.Debug("permit upsert conflict, retrying", "source", np.Source, "permitKey", key, "attempt", attempt)
	}
}

func (s *Service) upsertTx(ctx context.Context, tx store.Tx, np domain.NormalizedPermit, key string) (domain.UpsertResult, error) {
	permits := tx.Permits()

	existing, err := permits.GetBySourceRecordID(ctx, np.Source, np.SourceRecordID)
	if errors.Is(err, store.ErrNotFound) {
		existing, err = permits.GetByKey(ctx, np.Source, key)
	}
	switch {
	case err == nil:
		return s.update(ctx, tx, existing, np, key)
	case errors.Is(err, store.ErrNotFound):
		return s.insert(ctx, tx, np, key)
	default:
		return domain.UpsertResult{}, err
	}
}

func (s *Service) update(ctx context.Context, tx store.Tx, stored domain.Permit, np domain.NormalizedPermit, key string) (domain.UpsertResult, error) {
	merged, changed, err := domain.Merge(stored, np, key, s.now())
	if err != nil {
		return domain.UpsertResult{}, err
	}
	if changed {
		if err := tx.Permits().Update(ctx, merged); err != nil {
			return domain.UpsertResult{}, err
		}
	}
	return domain.UpsertResult{ID: merged.ID, Action: domain.ActionUpdated, PermitKey: key, Changed: changed}, nil
}

func (s *Service) insert(ctx context.Context, tx store.Tx, np domain.NormalizedPermit, key string) (domain.UpsertResult, error) {
	now := s.now()
	p, err := domain.NewPermit(np, key, now)
	if err != nil {
		return domain.UpsertResult{}, err
	}
	if err := tx.Permits().Insert(ctx, p); err != nil {
		return domain.UpsertResult{}, err
	}
	if _, err := outbox.Enqueue(ctx, tx.Events(), events.NewPermitCreated(p, now)); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("enqueue permit.created: %w", err)
	}

	result := domain.UpsertResult{ID: p.ID, Action: domain.ActionInserted, PermitKey: key, Changed: true}
	if s.leads == nil {
		return result, nil
	}
	lead, err := s.leads.DeriveLead(ctx, tx, p)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("derive lead: %w", err)
	}
	if lead != nil {
		result.LeadID = &lead.ID
	}
	return result, nil
}

// Get returns one permit.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Permit, error) {
	p, err := s.store.Permits().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Permit{}, apperr.NotFound("permit not found")
	}
	return p, err
}

// List returns a page of permits and the total match count.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Permit, int, error) {
	if filter.Source != "" && !domain.IsKnownSource(string(filter.Source)) {
		return nil, 0, apperr.Validation("unknown source")
	}
	return s.store.Permits().List(ctx, filter)
}
