package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spec-kit/umkm-portal/internal/api/http/handlers"
	"github.com/spec-kit/umkm-portal/internal/auth"
	"github.com/spec-kit/umkm-portal/internal/domain"
	"github.com/spec-kit/umkm-portal/internal/observability"
	apperrors "github.com/spec-kit/umkm-portal/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Portal         *handlers.PortalHandler
	AuthMiddleware *auth.AuthMiddleware
	Guard          *auth.RouteGuard
	RateLimiter    *RateLimiter
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes. Probes, metrics and the Auth API are
// registered ahead of the route guard; every other path is a page
// navigation and passes through the guard.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", observability.MetricsHandler(cfg.Gatherer))
	}

	limit := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Handle
	}

	api := app.Group("/api")
	api.Post("/auth/login", limit, cfg.Auth.Login)
	api.Post("/auth/register", limit, cfg.Auth.Register)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/auth/logout", cfg.Auth.Logout)
	protected.Get("/users/me", cfg.Users.Me)
	protected.Put("/users/me/password", cfg.Users.ChangePassword)
	protected.Post("/users", auth.RequireRole(domain.RoleSuperAdmin), cfg.Users.Create)
	api.All("/*", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("route", map[string]any{"path": c.Path()})
	})

	app.Use(cfg.Guard.Handle)
	app.All("/*", cfg.Portal.Serve)
}
