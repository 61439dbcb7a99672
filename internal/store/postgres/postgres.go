// Package postgres is the pgx-backed store.Store. Each unit of work is one
// pgx transaction; nested units are savepoints.
package postgres

import (
	"context"

	leadsrepo "permit_ingest_backend/internal/leads/repository"
	outboxrepo "permit_ingest_backend/internal/outbox/repository"
	permitsrepo "permit_ingest_backend/internal/permits/repository"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// beginner is implemented by *pgxpool.Pool and pgx.Tx.
type beginner interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type scope struct {
	q beginner
}

func (s scope) Permits() store.PermitStore { return permitsrepo.New(s.q) }
func (s scope) Leads() store.LeadStore     { return leadsrepo.New(s.q) }
func (s scope) Events() store.EventStore   { return outboxrepo.New(s.q) }

// WithinTx commits when fn returns nil and rolls back otherwise.
func (s scope) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return pgx.BeginFunc(ctx, s.q, func(tx pgx.Tx) error {
		return fn(ctx, scope{q: tx})
	})
}

// Store wraps a pool.
type Store struct {
	scope
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{scope: scope{q: pool}, pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
