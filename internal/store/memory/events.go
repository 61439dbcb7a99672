package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"permit_ingest_backend/internal/outbox/domain"
	"permit_ingest_backend/internal/store"

	"github.com/google/uuid"
)

type eventView struct {
	scope
}

func (v eventView) Append(_ context.Context, e domain.Event) error {
	defer v.lock()()
	for _, existing := range v.h.st.events {
		if existing.ID == e.ID {
			return fmt.Errorf("event %s: %w", e.ID, store.ErrConflict)
		}
	}
	v.h.st.seq++
	e.Seq = v.h.st.seq
	v.h.st.events = append(v.h.st.events, e)
	return nil
}

func (v eventView) ListPending(_ context.Context, filter domain.PendingFilter) ([]domain.Event, error) {
	defer v.lock()()
	pending := make([]domain.Event, 0)
	for _, e := range v.h.st.events {
		if filter.Eligible(e) {
			pending = append(pending, e)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].Seq < pending[j].Seq
	})
	return page(pending, filter.Limit, 0), nil
}

func (v eventView) MarkDelivered(_ context.Context, ids []uuid.UUID, at time.Time) (int, error) {
	defer v.lock()()
	wanted := idSet(ids)
	marked := 0
	for i, e := range v.h.st.events {
		if _, ok := wanted[e.ID]; !ok || !e.Pending() {
			continue
		}
		delivered := at
		v.h.st.events[i].DeliveredAt = &delivered
		marked++
	}
	return marked, nil
}

func (v eventView) RecordFailure(_ context.Context, ids []uuid.UUID, reason string) (int, error) {
	defer v.lock()()
	wanted := idSet(ids)
	touched := 0
	for i, e := range v.h.st.events {
		if _, ok := wanted[e.ID]; !ok || !e.Pending() {
			continue
		}
		msg := reason
		v.h.st.events[i].Attempts++
		v.h.st.events[i].LastError = &msg
		touched++
	}
	return touched, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
