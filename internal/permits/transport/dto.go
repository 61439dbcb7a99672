package transport

import "permit_ingest_backend/internal/permits/domain"

type TriggerRunRequest struct {
	Source string `json:"source" validate:"required,max=50"`
	DryRun bool   `json:"dryRun"`
}

type TriggerRunResponse struct {
	Runs []domain.BatchSummary `json:"runs"`
}

type SourceResponse struct {
	Source       string `json:"source"`
	Format       string `json:"format"`
	Jurisdiction string `json:"jurisdiction"`
}

type SourceListResponse struct {
	Sources []SourceResponse `json:"sources"`
}

type ListPermitsRequest struct {
	Source   string `form:"source" validate:"max=50"`
	County   string `form:"county" validate:"max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type PermitListResponse struct {
	Items      []domain.Permit `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}
