package transport

import (
	"permit_ingest_backend/internal/outbox/domain"

	"github.com/google/uuid"
)

type ListPendingRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=1000"`
}

type PendingResponse struct {
	Events []domain.Event `json:"events"`
}

type AckRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=1000"`
}

type AckResponse struct {
	Marked int `json:"marked"`
}

type FailureRequest struct {
	IDs    []uuid.UUID `json:"ids" validate:"required,min=1,max=1000"`
	Reason string      `json:"reason" validate:"required,max=2000"`
}

type FailureResponse struct {
	Recorded int `json:"recorded"`
}
