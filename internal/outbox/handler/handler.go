package handler

import (
	"net/http"

	"permit_ingest_backend/internal/outbox/service"
	"permit_ingest_backend/internal/outbox/transport"
	"permit_ingest_backend/platform/httpkit"
	"permit_ingest_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListPending returns undelivered events, oldest first.
// GET /api/v1/events/pending
func (h *Handler) ListPending(c *gin.Context) {
	var req transport.ListPendingRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	events, err := h.svc.ListPending(c.Request.Context(), req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.PendingResponse{Events: events})
}

// Ack marks events delivered.
// POST /api/v1/events/ack
func (h *Handler) Ack(c *gin.Context) {
	var req transport.AckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	marked, err := h.svc.MarkDelivered(c.Request.Context(), req.IDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AckResponse{Marked: marked})
}

// RecordFailure counts a failed delivery attempt.
// POST /api/v1/events/failures
func (h *Handler) RecordFailure(c *gin.Context) {
	var req transport.FailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	recorded, err := h.svc.RecordFailure(c.Request.Context(), req.IDs, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FailureResponse{Recorded: recorded})
}
