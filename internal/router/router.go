package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/photo-contest-api/internal/config"
	"github.com/noah-isme/photo-contest-api/internal/handler"
	"github.com/noah-isme/photo-contest-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ApplicationHandler *handler.ApplicationHandler
	JuryHandler        *handler.JuryHandler
	AdminHandler       *handler.AdminHandler
	LiveHandler        *handler.LiveResultsHandler
	JWTMiddleware      fiber.Handler
	EventBus           string
	HealthChecks       map[string]handler.HealthCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	health := handler.NewHealthHandler(cfg, deps.EventBus, deps.HealthChecks).Check
	app.Get("/healthz", health)

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", health)

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ApplicationHandler != nil {
		deps.ApplicationHandler.Register(api.Group("/applications"))
	}

	if deps.JuryHandler != nil {
		jury := api.Group("/jury", jwtMiddleware)
		deps.JuryHandler.Register(jury, middleware.RateLimit("vote", cfg.VoteRateLimit, cfg.VoteRateWindow))
	}

	if deps.AdminHandler != nil || deps.LiveHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRoleOrEmail([]string{"admin"}, cfg.AdminEmails))
		if deps.LiveHandler != nil {
			deps.LiveHandler.Register(admin)
		}
		if deps.AdminHandler != nil {
			deps.AdminHandler.Register(admin)
		}
	}
}
