// Package permits provides the permit ingestion bounded context module.
package permits

import (
	"time"

	"permit_ingest_backend/internal/adapters/storage"
	apphttp "permit_ingest_backend/internal/http"
	"permit_ingest_backend/internal/permits/handler"
	"permit_ingest_backend/internal/permits/ingest"
	"permit_ingest_backend/internal/permits/service"
	"permit_ingest_backend/internal/permits/sources"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/httpkit"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/metrics"
	"permit_ingest_backend/platform/validator"
)

// Module is the permits bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	runner  *ingest.Runner
}

// NewModule wires the upsert engine and the ingest runner. archive and m may be nil.
func NewModule(st store.Store, reg *sources.Registry, leads service.LeadDeriver, archive storage.RawArchive, m *metrics.Ingest, val *validator.Validator, runTimeout time.Duration, log *logger.Logger) *Module {
	svc := service.New(st, leads, log)
	runner := ingest.New(reg, st, svc, archive, m, log)
	return &Module{
		handler: handler.New(svc, runner, val, runTimeout),
		service: svc,
		runner:  runner,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "permits"
}

// Service returns the upsert engine for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Runner returns the ingest runner, shared with the scheduler worker.
func (m *Module) Runner() *ingest.Runner {
	return m.runner
}

// RegisterRoutes mounts permit and ingest routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ingestGroup := ctx.Protected.Group("/ingest")
	ingestGroup.GET("/sources", m.handler.ListSources)
	ingestGroup.POST("/runs", httpkit.RequireScope(httpkit.ScopeIngestRun), m.handler.TriggerRun)

	ctx.Protected.GET("/permits", m.handler.ListPermits)
	ctx.Protected.GET("/permits/:id", m.handler.GetPermit)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
