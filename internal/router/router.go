package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-progress-api/internal/config"
	"github.com/noah-isme/gema-progress-api/internal/handler"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	ReviewHandler     *handler.ReviewHandler
	StandingHandler   *handler.StandingHandler
	UploadHandler     *handler.UploadHandler
	AuditHandler      *handler.AuditHandler
	HealthChecks      map[string]handler.Pinger
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	members := api.Group("", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleMember, middleware.AuthRoleAdmin))

	if deps.StandingHandler != nil {
		deps.StandingHandler.Register(members)
	}

	if deps.SubmissionHandler != nil {
		submit := middleware.WithAuth(deps.SubmissionHandler.Submit, middleware.AuthOptions{Role: middleware.AuthRoleMember})
		members.Post("/activities/:id/submission", middleware.RateLimit("submit", cfg.SubmissionRateLimit, time.Minute), submit)
		deps.SubmissionHandler.Register(members)
	}

	if deps.UploadHandler != nil {
		uploads := members.Group("/uploads", middleware.RateLimit("upload", cfg.SubmissionRateLimit, time.Minute))
		deps.UploadHandler.Register(uploads)
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.Register(admin)
	}
	if deps.AuditHandler != nil {
		deps.AuditHandler.Register(admin)
	}
}
