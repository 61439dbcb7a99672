package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	outboxdomain "permit_ingest_backend/internal/outbox/domain"
	permitsdomain "permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/store"

	"github.com/google/uuid"
)

func newPermit(key, sourceRecordID string) permitsdomain.Permit {
	now := time.Now().UTC()
	return permitsdomain.Permit{
		ID:             uuid.New(),
		Source:         permitsdomain.SourceAustin,
		SourceRecordID: sourceRecordID,
		PermitKey:      key,
		RawPayload:     []byte(`{}`),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Permits().Insert(ctx, newPermit("K1", "r1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_, total, _ := s.Permits().List(ctx, permitsdomain.ListFilter{})
	if total != 0 {
		t.Fatalf("expected rollback, found %d permits", total)
	}
}

func TestNestedTxFailureKeepsOuterWork(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Permits().Insert(ctx, newPermit("K1", "r1")); err != nil {
			return err
		}
		nestedErr := tx.WithinTx(ctx, func(ctx context.Context, inner store.Tx) error {
			if err := inner.Permits().Insert(ctx, newPermit("K2", "r2")); err != nil {
				return err
			}
			return store.ErrRollback
		})
		if !store.IsRollback(nestedErr) {
			t.Fatalf("expected rollback signal, got %v", nestedErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer tx: %v", err)
	}

	_, total, _ := s.Permits().List(ctx, permitsdomain.ListFilter{})
	if total != 1 {
		t.Fatalf("expected only the outer insert, got %d", total)
	}
}

func TestPermitUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Permits().Insert(ctx, newPermit("K1", "r1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.Permits().Insert(ctx, newPermit("K1", "r2")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected key conflict, got %v", err)
	}
	if err := s.Permits().Insert(ctx, newPermit("K2", "r1")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected source record conflict, got %v", err)
	}

	other := newPermit("K1", "r1")
	other.Source = permitsdomain.SourceDallas
	if err := s.Permits().Insert(ctx, other); err != nil {
		t.Fatalf("keys are namespaced by source: %v", err)
	}
}

func TestEventsPendingOrderAndDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		if err := s.Events().Append(ctx, outboxdomain.Event{ID: ids[i], Type: "permit.created", Payload: []byte(`{}`), CreatedAt: at}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	pending, err := s.Events().ListPending(ctx, outboxdomain.PendingFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	for i, e := range pending {
		if e.ID != ids[i] {
			t.Fatalf("expected insertion order at equal timestamps")
		}
	}

	marked, _ := s.Events().MarkDelivered(ctx, []uuid.UUID{ids[0], ids[0], uuid.New()}, at)
	if marked != 1 {
		t.Fatalf("expected 1 marked, got %d", marked)
	}
	marked, _ = s.Events().MarkDelivered(ctx, []uuid.UUID{ids[0]}, at)
	if marked != 0 {
		t.Fatalf("second ack must be a no-op, got %d", marked)
	}

	pending, _ = s.Events().ListPending(ctx, outboxdomain.PendingFilter{Limit: 10})
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
}

func TestRecordFailureParksAtCeiling(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()
	_ = s.Events().Append(ctx, outboxdomain.Event{ID: id, Type: "lead.created", Payload: []byte(`{}`), CreatedAt: time.Now().UTC()})

	for i := 0; i < 2; i++ {
		if n, _ := s.Events().RecordFailure(ctx, []uuid.UUID{id}, "consumer down"); n != 1 {
			t.Fatalf("expected failure recorded")
		}
	}

	pending, _ := s.Events().ListPending(ctx, outboxdomain.PendingFilter{Limit: 10, MaxAttempts: 2})
	if len(pending) != 0 {
		t.Fatalf("expected event parked at ceiling")
	}
	pending, _ = s.Events().ListPending(ctx, outboxdomain.PendingFilter{Limit: 10})
	if len(pending) != 1 || pending[0].Attempts != 2 {
		t.Fatalf("expected event visible without ceiling, got %+v", pending)
	}
}
