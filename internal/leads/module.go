// Package leads provides the lead bounded context module.
// This file defines the module that encapsulates leads setup and route registration.
package leads

import (
	apphttp "permit_ingest_backend/internal/http"
	"permit_ingest_backend/internal/leads/derive"
	"permit_ingest_backend/internal/leads/handler"
	"permit_ingest_backend/internal/leads/rules"
	"permit_ingest_backend/internal/leads/service"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/httpkit"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	deriver *derive.Engine
}

// NewModule creates the leads module. The rule tables are shared with the
// derivation engine the permit pipeline calls.
func NewModule(st store.Store, r *rules.Rules, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(st, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		deriver: derive.New(r, val, log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Deriver returns the engine that turns new permits into leads.
func (m *Module) Deriver() *derive.Engine {
	return m.deriver
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Protected.Group("/leads")
	leadsGroup.GET("", m.handler.List)
	leadsGroup.GET("/:id", m.handler.GetByID)
	leadsGroup.PATCH("/:id/status", httpkit.RequireScope(httpkit.ScopeLeadsWrite), m.handler.UpdateStatus)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
