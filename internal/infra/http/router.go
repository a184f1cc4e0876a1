package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netpad/api/internal/config"
	"github.com/netpad/api/internal/infra/http/handler"
	"github.com/netpad/api/internal/infra/http/middleware"
	"github.com/netpad/api/pkg/logger"
)

// Handlers groups the route handlers mounted by the router.
type Handlers struct {
	Health        *handler.HealthHandler
	Workflows     *handler.WorkflowHandler
	Executions    *handler.ExecutionHandler
	Forms         *handler.FormHandler
	DataSources   *handler.DataSourceHandler
	Organizations *handler.OrganizationHandler
}

// NewRouter builds the route tree. Global middleware is applied by the
// server; the router only wires auth and org scoping per route group.
// The returned cleanup function stops the execute rate limiter.
func NewRouter(cfg *config.Config, log *logger.Logger, validator middleware.TokenValidator, h Handlers) (http.Handler, func()) {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)

	authn := middleware.Authenticate(validator, log)
	orgScope := middleware.OrgContext()

	// Execute gets its own per-org limiter so one tenant's burst cannot
	// exhaust shared HTTP capacity before admission control runs.
	executeLimiter := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:         true,
		RequestsPerSec:  cfg.RateLimit.RequestsPerSec,
		Burst:           cfg.RateLimit.Burst,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	}, log)

	// Probes and metrics.
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.Health)

		// Public, unauthenticated projections.
		r.Get("/workflows/public/{slug}", h.Workflows.GetPublic)
		r.Get("/forms/public/{slug}", h.Forms.GetPublic)

		// Authenticated, organization-scoped API.
		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Post("/orgs", h.Organizations.Create)
			r.Get("/orgs/{orgId}", h.Organizations.Get)
			r.Patch("/orgs/{orgId}/plan", h.Organizations.ChangePlan)
			r.Post("/orgs/{orgId}/members", h.Organizations.AddMember)

			r.Group(func(r chi.Router) {
				r.Use(orgScope)

				r.Get("/usage", h.Executions.Usage)

				r.Route("/workflows", func(r chi.Router) {
					r.Post("/", h.Workflows.Create)
					r.Get("/", h.Workflows.List)
					r.Get("/{workflowId}", h.Workflows.Get)
					r.Put("/{workflowId}", h.Workflows.Update)
					r.Delete("/{workflowId}", h.Workflows.Delete)
					r.Patch("/{workflowId}/status", h.Workflows.ChangeStatus)

					r.With(
						middleware.RequireExecutePermission(),
						executeLimiter.OrgMiddleware(),
					).Post("/{workflowId}/execute", h.Executions.Execute)

					r.Get("/{workflowId}/executions", h.Executions.List)
				})

				r.Get("/executions/{executionId}", h.Executions.Get)

				r.Route("/forms", func(r chi.Router) {
					r.Post("/", h.Forms.Create)
					r.Get("/", h.Forms.List)
					r.Get("/{formId}", h.Forms.Get)
					r.Put("/{formId}", h.Forms.Update)
					r.Delete("/{formId}", h.Forms.Delete)
					r.Post("/{formId}/publish", h.Forms.Publish)
					r.Post("/{formId}/archive", h.Forms.Archive)
				})

				r.Route("/datasources", func(r chi.Router) {
					r.Post("/", h.DataSources.Create)
					r.Get("/", h.DataSources.List)
					r.Get("/{dataSourceId}", h.DataSources.Get)
					r.Post("/{dataSourceId}/rotate", h.DataSources.Rotate)
					r.Delete("/{dataSourceId}", h.DataSources.Delete)
				})
			})
		})
	})

	return r, executeLimiter.Stop
}
