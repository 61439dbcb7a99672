// Package service appends domain events to the outbox and serves the
// consumer side: list pending, acknowledge, report failures.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"permit_ingest_backend/internal/events"
	"permit_ingest_backend/internal/outbox/domain"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/apperr"
	"permit_ingest_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPendingLimit = 100
	maxPendingLimit     = 1000
	maxAckBatch         = 1000
)

// Enqueue records ev in es. Call it with the EventStore of the unit of work
// that performs the entity write the event documents.
func Enqueue(ctx context.Context, es store.EventStore, ev events.Event) (uuid.UUID, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal %s payload: %w", ev.EventName(), err)
	}
	id := uuid.New()
	createdAt := ev.OccurredAt()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if err := es.Append(ctx, domain.Event{
		ID:        id,
		Type:      ev.EventName(),
		Payload:   payload,
		CreatedAt: createdAt,
	}); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

type Service struct {
	store       store.Store
	maxAttempts int
	log         *logger.Logger
}

// New builds the consumer-facing service. maxAttempts <= 0 disables parking.
func New(st store.Store, maxAttempts int, log *logger.Logger) *Service {
	return &Service{store: st, maxAttempts: maxAttempts, log: log}
}

// ListPending returns undelivered events oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit < 1 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	return s.store.Events().ListPending(ctx, domain.PendingFilter{Limit: limit, MaxAttempts: s.maxAttempts})
}

// MarkDelivered acknowledges events and returns how many were newly marked.
// Unknown and already delivered ids are ignored.
func (s *Service) MarkDelivered(ctx context.Context, ids []uuid.UUID) (int, error) {
	if err := checkBatch(ids); err != nil {
		return 0, err
	}
	marked, err := s.store.Events().MarkDelivered(ctx, ids, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	s.log.Debug("outbox events acknowledged", "requested", len(ids), "marked", marked)
	return marked, nil
}

// RecordFailure counts a failed delivery attempt on pending events.
func (s *Service) RecordFailure(ctx context.Context, ids []uuid.UUID, reason string) (int, error) {
	if err := checkBatch(ids); err != nil {
		return 0, err
	}
	touched, err := s.store.Events().RecordFailure(ctx, ids, reason)
	if err != nil {
		return 0, err
	}
	if touched > 0 {
		s.log.Warn("outbox delivery failed", "events", touched, "reason", reason)
	}
	return touched, nil
}

func checkBatch(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return apperr.Validation("ids must not be empty")
	}
	if len(ids) > maxAckBatch {
		return apperr.Validation(fmt.Sprintf("at most %d ids per call", maxAckBatch))
	}
	for _, id := range ids {
		if id == uuid.Nil {
			return apperr.Validation("ids must not contain the nil uuid")
		}
	}
	return nil
}
