package handler

import (
	"context"
	"net/http"
	"time"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/permits/ingest"
	"permit_ingest_backend/internal/permits/service"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/permits/transport"
	"permit_ingest_backend/platform/apperr"
	"permit_ingest_backend/platform/httpkit"
	"permit_ingest_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid permit id"
	msgUnknownSource    = "unknown source"

	defaultPageSize = 50
)

// Handler handles HTTP requests for permits and ingest runs.
type Handler struct {
	svc        *service.Service
	runner     *ingest.Runner
	val        *validator.Validator
	runTimeout time.Duration
}

// New creates a new permits handler. runTimeout <= 0 leaves runs bound only
// to the request context.
func New(svc *service.Service, runner *ingest.Runner, val *validator.Validator, runTimeout time.Duration) *Handler {
	return &Handler{svc: svc, runner: runner, val: val, runTimeout: runTimeout}
}

// TriggerRun runs one source, or every configured source for "all".
// POST /api/v1/ingest/runs
func (h *Handler) TriggerRun(c *gin.Context) {
	var req transport.TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	if req.Source == ingest.AllSources {
		httpkit.OK(c, transport.TriggerRunResponse{Runs: h.runner.RunAll(ctx, req.DryRun)})
		return
	}
	if !domain.IsKnownSource(req.Source) {
		httpkit.Error(c, http.StatusBadRequest, msgUnknownSource, req.Source)
		return
	}

	summary, err := h.runner.Run(ctx, domain.Source(req.Source), req.DryRun)
	if err != nil && summary.Aborted != "" {
		aborted := apperr.Internal("ingest run aborted", err)
		aborted.Details = summary
		err = aborted
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TriggerRunResponse{Runs: []domain.BatchSummary{summary}})
}

// ListSources lists configured sources.
// GET /api/v1/ingest/sources
func (h *Handler) ListSources(c *gin.Context) {
	configured := h.runner.Sources()
	resp := transport.SourceListResponse{Sources: make([]transport.SourceResponse, 0, len(configured))}
	for _, source := range configured {
		item := transport.SourceResponse{Source: string(source)}
		if def, ok := sources.Lookup(source); ok {
			item.Format = string(def.Format)
			item.Jurisdiction = def.Jurisdiction
		}
		resp.Sources = append(resp.Sources, item)
	}
	httpkit.OK(c, resp)
}

// ListPermits returns canonical permits.
// GET /api/v1/permits
func (h *Handler) ListPermits(c *gin.Context) {
	var req transport.ListPermitsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	items, total, err := h.svc.List(c.Request.Context(), domain.ListFilter{
		Source: domain.Source(req.Source),
		County: req.County,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.PermitListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	})
}

// GetPermit returns one permit.
// GET /api/v1/permits/:id
func (h *Handler) GetPermit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
