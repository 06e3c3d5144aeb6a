package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gchat-dev/gchat-api/internal/config"
	"github.com/gchat-dev/gchat-api/internal/handler"
	"github.com/gchat-dev/gchat-api/internal/middleware"
	"github.com/gchat-dev/gchat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	WSHandler           *handler.WSHandler
	ProfileHandler      *handler.ProfileHandler
	RoomHandler         *handler.RoomHandler
	GiftHandler         *handler.GiftHandler
	NotificationHandler *handler.NotificationHandler
	UploadHandler       *handler.UploadHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth", middleware.RateLimit("auth", 10, time.Minute)))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	protected := api.Group("", jwtMiddleware)

	if deps.WSHandler != nil {
		deps.WSHandler.Register(protected)
	}
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(protected)
	}
	if deps.RoomHandler != nil {
		deps.RoomHandler.Register(protected)
	}
	if deps.GiftHandler != nil {
		deps.GiftHandler.Register(protected)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(protected)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(protected.Group("", middleware.RateLimit("upload", 30, time.Minute)))
	}
}
