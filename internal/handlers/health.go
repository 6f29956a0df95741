package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Pinger is anything that can report its own liveness.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db      *gorm.DB
	cache   Pinger
	version string
}

// NewHealthHandler builds the health endpoint. cache may be nil when Redis is disabled.
func NewHealthHandler(db *gorm.DB, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, version: version}
}

func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	services := fiber.Map{"database": "connected", "redis": "disabled"}

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		services["database"] = "unavailable"
		status = "degraded"
	}
	if h.cache != nil {
		services["redis"] = "connected"
		if err := h.cache.HealthCheck(ctx); err != nil {
			services["redis"] = "unavailable"
			status = "degraded"
		}
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"version":  h.version,
		"services": services,
	})
}
