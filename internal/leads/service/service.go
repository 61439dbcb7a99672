// Package service exposes lead projections and the lead status workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"permit_ingest_backend/internal/events"
	"permit_ingest_backend/internal/leads/domain"
	"permit_ingest_backend/internal/leads/transport"
	outbox "permit_ingest_backend/internal/outbox/service"
	permitsdomain "permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/apperr"
	"permit_ingest_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	msgLeadNotFound = "lead not found"
)

type Service struct {
	store store.Store
	log   *logger.Logger
	now   func() time.Time
}

func New(st store.Store, log *logger.Logger) *Service {
	return &Service{
		store: st,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ChangeStatus moves a lead to status. The update and its lead.status_changed
// event share one unit of work. Setting the current status is a no-op and
// records no event.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status string) (transport.StatusChangeResponse, error) {
	if !domain.IsKnownStatus(status) {
		return transport.StatusChangeResponse{}, apperr.Validation(fmt.Sprintf("unknown status %q", status))
	}

	var (
		lead    domain.Lead
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.Leads().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		lead = current
		if current.Status == status {
			return nil
		}

		now := s.now()
		if err := tx.Leads().UpdateStatus(ctx, id, status, now); err != nil {
			return err
		}
		if _, err := outbox.Enqueue(ctx, tx.Events(), events.NewLeadStatusChanged(id, current.Status, status, now)); err != nil {
			return fmt.Errorf("enqueue lead.status_changed: %w", err)
		}
		lead.Status = status
		lead.UpdatedAt = now
		changed = true
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return transport.StatusChangeResponse{}, apperr.NotFound(msgLeadNotFound)
	}
	if err != nil {
		return transport.StatusChangeResponse{}, err
	}

	if changed {
		s.log.Info("lead status changed", "leadId", id, "status", status)
	}
	return transport.StatusChangeResponse{Lead: s.project(ctx, lead), Changed: changed}, nil
}

// Get returns the projection of one lead.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.store.Leads().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound(msgLeadNotFound)
	}
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return s.project(ctx, lead), nil
}

// List returns a page of lead projections.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	leads, total, err := s.store.Leads().List(ctx, domain.ListFilter{
		Status: req.Status,
		County: req.County,
		Trade:  req.Trade,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, l := range leads {
		items = append(items, s.project(ctx, l))
	}
	totalPages := (total + pageSize - 1) / pageSize
	return transport.LeadListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// project flattens a lead with the facts of its originating permit. A missing
// permit leaves the permit columns empty.
func (s *Service) project(ctx context.Context, l domain.Lead) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID:        l.ID,
		PermitID:  l.PermitID,
		Name:      l.Name,
		Email:     l.Email,
		Phone:     l.Phone,
		Address:   l.Address,
		City:      l.City,
		Zip:       l.Zip,
		County:    l.County,
		Trade:     l.Trade,
		Value:     l.Value,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if l.PermitID == nil {
		return resp
	}

	p, err := s.store.Permits().GetByID(ctx, *l.PermitID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.DatabaseError("lead_projection_permit", err)
		}
		return resp
	}
	resp.Jurisdiction = permitsdomain.StringValue(p.Jurisdiction)
	resp.PermitType = permitsdomain.StringValue(p.PermitType)
	resp.IssuedDate = p.IssuedDate
	return resp
}
