package transport

import (
	"time"

	"github.com/google/uuid"
)

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified proposal won lost"`
}

type ListLeadsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=new contacted qualified proposal won lost"`
	County   string `form:"county" validate:"max=100"`
	Trade    string `form:"trade" validate:"max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

// LeadResponse is the flat projection of a lead joined with its permit facts.
type LeadResponse struct {
	ID           uuid.UUID  `json:"id"`
	PermitID     *uuid.UUID `json:"permitId,omitempty"`
	Name         string     `json:"name"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Address      *string    `json:"address,omitempty"`
	City         *string    `json:"city,omitempty"`
	Zip          *string    `json:"zip,omitempty"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	County       string     `json:"county"`
	Trade        string     `json:"trade"`
	PermitType   string     `json:"permitType,omitempty"`
	Value        *float64   `json:"value,omitempty"`
	Status       string     `json:"status"`
	IssuedDate   *time.Time `json:"issuedDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type StatusChangeResponse struct {
	Lead    LeadResponse `json:"lead"`
	Changed bool         `json:"changed"`
}
