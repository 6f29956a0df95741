// Package routes defines the API routing configuration.
// It wires handlers to paths and applies authentication where required.
package routes

import (
	"log/slog"

	"viewly/internal/handlers"
	"viewly/internal/middleware"
	"viewly/internal/services/payment"
	"viewly/internal/services/viewing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Dependencies are the services the HTTP layer is built from.
type Dependencies struct {
	DB         *gorm.DB
	Cache      handlers.Pinger
	Viewings   *viewing.Service
	Properties *viewing.PropertyCatalog
	Webhooks   payment.WebhookVerifier
	JWTSecret  string
	Logger     *slog.Logger
	Version    string
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Version)
	viewingHandler := handlers.NewViewingHandler(deps.Viewings, deps.Logger)
	authMiddleware := middleware.NewAuthMiddleware(deps.JWTSecret, deps.Logger)

	app.Get("/health", healthHandler.HealthCheck)

	api := app.Group("/api")

	// Public endpoints, authenticated by provider signature
	if deps.Webhooks != nil {
		webhookHandler := handlers.NewWebhookHandler(deps.Webhooks, deps.Viewings, deps.Logger)
		api.Post("/webhooks/payments", webhookHandler.HandlePayment)
	}

	setupViewingRoutes(api.Group("/viewings", authMiddleware.Handler), viewingHandler)
	admin := api.Group("/admin", authMiddleware.Handler, middleware.AdminAuthMiddleware)
	setupAdminRoutes(admin, viewingHandler)
	if deps.Properties != nil {
		admin.Put("/properties/:id", handlers.NewPropertyHandler(deps.Properties, deps.Logger).Register)
	}
}

func setupViewingRoutes(router fiber.Router, h *handlers.ViewingHandler) {
	router.Post("/", h.CreateViewingRequest)
	router.Get("/", h.ListViewings)
	router.Get("/:id", h.GetViewing)
	router.Get("/:id/payout", h.GetPayout)

	router.Post("/:id/cancel", h.Cancel)
	router.Post("/:id/no-show", h.ReportNoShow)
	router.Post("/:id/dispute", h.DisputeNoShow)
	router.Post("/:id/confirm", h.Confirm)
	router.Post("/:id/schedule", h.Schedule)
}

func setupAdminRoutes(router fiber.Router, h *handlers.ViewingHandler) {
	viewings := router.Group("/viewings")
	viewings.Post("/:id/resolve", h.Resolve)
	viewings.Post("/:id/expire", h.Expire)
	viewings.Post("/:id/cancel", h.Cancel)
}
