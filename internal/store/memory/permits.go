package memory

import (
	"context"
	"fmt"
	"sort"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/store"

	"github.com/google/uuid"
)

type permitView struct {
	scope
}

func (v permitView) GetByID(_ context.Context, id uuid.UUID) (domain.Permit, error) {
	defer v.lock()()
	p, ok := v.h.st.permits[id]
	if !ok {
		return domain.Permit{}, store.ErrNotFound
	}
	return p, nil
}

func (v permitView) GetBySourceRecordID(_ context.Context, source domain.Source, sourceRecordID string) (domain.Permit, error) {
	defer v.lock()()
	for _, p := range v.h.st.permits {
		if p.Source == source && p.SourceRecordID == sourceRecordID {
			return p, nil
		}
	}
	return domain.Permit{}, store.ErrNotFound
}

func (v permitView) GetByKey(_ context.Context, source domain.Source, permitKey string) (domain.Permit, error) {
	defer v.lock()()
	for _, p := range v.h.st.permits {
		if p.Source == source && p.PermitKey == permitKey {
			return p, nil
		}
	}
	return domain.Permit{}, store.ErrNotFound
}

func (v permitView) Insert(_ context.Context, p domain.Permit) error {
	defer v.lock()()
	if _, exists := v.h.st.permits[p.ID]; exists {
		return fmt.Errorf("permit %s: %w", p.ID, store.ErrConflict)
	}
	if err := v.checkUnique(p); err != nil {
		return err
	}
	v.h.st.permits[p.ID] = p
	return nil
}

func (v permitView) Update(_ context.Context, p domain.Permit) error {
	defer v.lock()()
	if _, exists := v.h.st.permits[p.ID]; !exists {
		return store.ErrNotFound
	}
	if err := v.checkUnique(p); err != nil {
		return err
	}
	v.h.st.permits[p.ID] = p
	return nil
}

func (v permitView) checkUnique(p domain.Permit) error {
	for id, other := range v.h.st.permits {
		if id == p.ID || other.Source != p.Source {
			continue
		}
		if other.SourceRecordID == p.SourceRecordID {
			return fmt.Errorf("permit source record %s/%s: %w", p.Source, p.SourceRecordID, store.ErrConflict)
		}
		if other.PermitKey == p.PermitKey {
			return fmt.Errorf("permit key %s/%s: %w", p.Source, p.PermitKey, store.ErrConflict)
		}
	}
	return nil
}

func (v permitView) List(_ context.Context, filter domain.ListFilter) ([]domain.Permit, int, error) {
	defer v.lock()()
	matched := make([]domain.Permit, 0)
	for _, p := range v.h.st.permits {
		if filter.Source != "" && p.Source != filter.Source {
			continue
		}
		if filter.County != "" && domain.StringValue(p.County) != filter.County {
			continue
		}
		matched = append(matched, p)
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

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
