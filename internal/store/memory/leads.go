package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"permit_ingest_backend/internal/leads/domain"
	"permit_ingest_backend/internal/store"

	"github.com/google/uuid"
)

type leadView struct {
	scope
}

func (v leadView) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	defer v.lock()()
	l, ok := v.h.st.leads[id]
	if !ok {
		return domain.Lead{}, store.ErrNotFound
	}
	return l, nil
}

func (v leadView) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return v.GetByID(ctx, id)
}

func (v leadView) FindByPermit(_ context.Context, permitID uuid.UUID) (domain.Lead, error) {
	defer v.lock()()
	for _, l := range v.h.st.leads {
		if l.PermitID != nil && *l.PermitID == permitID {
			return l, nil
		}
		if origin, ok := l.Metadata[domain.MetaOriginatingPermitID].(string); ok && origin == permitID.String() {
			return l, nil
		}
	}
	return domain.Lead{}, store.ErrNotFound
}

func (v leadView) Insert(_ context.Context, l domain.Lead) error {
	defer v.lock()()
	if _, exists := v.h.st.leads[l.ID]; exists {
		return fmt.Errorf("lead %s: %w", l.ID, store.ErrConflict)
	}
	if l.PermitID != nil {
		for _, other := range v.h.st.leads {
			if other.PermitID != nil && *other.PermitID == *l.PermitID {
				return fmt.Errorf("lead for permit %s: %w", *l.PermitID, store.ErrConflict)
			}
		}
	}
	v.h.st.leads[l.ID] = l
	return nil
}

func (v leadView) UpdateStatus(_ context.Context, id uuid.UUID, status string, at time.Time) error {
	defer v.lock()()
	l, ok := v.h.st.leads[id]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = at
	v.h.st.leads[id] = l
	return nil
}

func (v leadView) List(_ context.Context, filter domain.ListFilter) ([]domain.Lead, int, error) {
	defer v.lock()()
	matched := make([]domain.Lead, 0)
	for _, l := range v.h.st.leads {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.County != "" && l.County != filter.County {
			continue
		}
		if filter.Trade != "" && l.Trade != filter.Trade {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}
