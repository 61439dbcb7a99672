// Package outbox provides the event outbox module: consumers poll pending
// events over HTTP and acknowledge them.
package outbox

import (
	apphttp "permit_ingest_backend/internal/http"
	"permit_ingest_backend/internal/outbox/handler"
	"permit_ingest_backend/internal/outbox/service"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/config"
	"permit_ingest_backend/platform/httpkit"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/validator"
)

// Module is the outbox module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the outbox module.
func NewModule(st store.Store, cfg config.OutboxConfig, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(st, cfg.GetOutboxMaxAttempts(), log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "outbox"
}

// Service returns the outbox service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts outbox routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/events", httpkit.RequireScope(httpkit.ScopeOutboxConsume))
	group.GET("/pending", m.handler.ListPending)
	group.POST("/ack", m.handler.Ack)
	group.POST("/failures", m.handler.RecordFailure)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
