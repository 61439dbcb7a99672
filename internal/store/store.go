// Package store defines the unit of work shared by the upsert engine, lead
// derivation and the outbox. Every write of one record happens inside a single
// WithinTx call, so a permit, its lead and their events commit or roll back
// together.
package store

import (
	"context"
	"errors"
	"time"

	leadsdomain "permit_ingest_backend/internal/leads/domain"
	outboxdomain "permit_ingest_backend/internal/outbox/domain"
	permitsdomain "permit_ingest_backend/internal/permits/domain"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict wraps unique-key violations raised by the backing store.
	ErrConflict = errors.New("unique constraint violation")
	// ErrRollback may be returned from a WithinTx callback to discard the
	// work without reporting failure. Dry runs use it.
	ErrRollback = errors.New("rollback requested")
)

// PermitStore reads and writes canonical permits.
type PermitStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (permitsdomain.Permit, error)
	GetBySourceRecordID(ctx context.Context, source permitsdomain.Source, sourceRecordID string) (permitsdomain.Permit, error)
	GetByKey(ctx context.Context, source permitsdomain.Source, permitKey string) (permitsdomain.Permit, error)
	Insert(ctx context.Context, p permitsdomain.Permit) error
	Update(ctx context.Context, p permitsdomain.Permit) error
	List(ctx context.Context, filter permitsdomain.ListFilter) ([]permitsdomain.Permit, int, error)
}

// LeadStore reads and writes derived leads.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadsdomain.Lead, error)
	// GetForUpdate is GetByID that also locks the row until the unit of work ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (leadsdomain.Lead, error)
	// FindByPermit matches permit_id or the legacy originating_permit_id metadata key.
	FindByPermit(ctx context.Context, permitID uuid.UUID) (leadsdomain.Lead, error)
	Insert(ctx context.Context, l leadsdomain.Lead) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error
	List(ctx context.Context, filter leadsdomain.ListFilter) ([]leadsdomain.Lead, int, error)
}

// EventStore is the outbox.
type EventStore interface {
	Append(ctx context.Context, e outboxdomain.Event) error
	ListPending(ctx context.Context, filter outboxdomain.PendingFilter) ([]outboxdomain.Event, error)
	// MarkDelivered returns how many events moved from pending to delivered.
	MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) (int, error)
	// RecordFailure bumps attempts on pending events and returns how many were touched.
	RecordFailure(ctx context.Context, ids []uuid.UUID, reason string) (int, error)
}

// Tx groups the stores available inside one unit of work.
// WithinTx on a Tx opens a nested unit (a savepoint) that can fail without
// discarding the outer one.
type Tx interface {
	Permits() PermitStore
	Leads() LeadStore
	Events() EventStore
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store is the root handle. Calls made directly on it run outside any
// explicit transaction; WithinTx starts a top-level unit of work.
type Store interface {
	Tx
	Ping(ctx context.Context) error
}

// IsRollback reports whether err is the dry-run rollback signal.
func IsRollback(err error) bool {
	return errors.Is(err, ErrRollback)
}
