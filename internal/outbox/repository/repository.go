package repository

import (
	"context"
	"fmt"
	"time"

	"permit_ingest_backend/internal/outbox/domain"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/db"

	"github.com/google/uuid"
)

const defaultPendingLimit = 100

type Repository struct {
	q db.DBTX
}

var _ store.EventStore = (*Repository)(nil)

func New(q db.DBTX) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Append(ctx context.Context, e domain.Event) error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO events (id, type, payload, created_at)
		 VALUES ($1, $2, $3, $4)`,
		e.ID, e.Type, []byte(e.Payload), e.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("append event %s: %w", e.ID, store.ErrConflict)
	}
	return err
}

func (r *Repository) ListPending(ctx context.Context, filter domain.PendingFilter) ([]domain.Event, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = defaultPendingLimit
	}

	rows, err := r.q.Query(ctx,
		`SELECT id, seq, type, payload, created_at, delivered_at, attempts, last_error
		 FROM events
		 WHERE delivered_at IS NULL
		   AND ($2 <= 0 OR attempts < $2)
		 ORDER BY created_at ASC, seq ASC
		 LIMIT $1`,
		limit, filter.MaxAttempts,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Event, 0)
	for rows.Next() {
		var e domain.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Seq, &e.Type, &payload, &e.CreatedAt, &e.DeliveredAt, &e.Attempts, &e.LastError); err != nil {
			return nil, err
		}
		e.Payload = payload
		results = append(results, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

func (r *Repository) MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE events
		 SET delivered_at = $2
		 WHERE id = ANY($1::uuid[]) AND delivered_at IS NULL`,
		idStrings(ids), at,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) RecordFailure(ctx context.Context, ids []uuid.UUID, reason string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE events
		 SET attempts = attempts + 1, last_error = $2
		 WHERE id = ANY($1::uuid[]) AND delivered_at IS NULL`,
		idStrings(ids), reason,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
