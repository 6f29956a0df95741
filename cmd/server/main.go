// Package main is the entry point for the viewing escrow API.
// It loads configuration, connects the stores, starts the background
// sweeper and serves HTTP until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"viewly/internal/app"
	"viewly/internal/config"
	"viewly/internal/logging"
	"viewly/internal/repositories"
	"viewly/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const version = "1.0.0"

func main() {
	config.LoadEnv()
	cfg := config.Load()
	log := logging.Setup(cfg.LogLevel, cfg.IsProduction())
	if err := cfg.Validate(); err != nil {
		log.Error("refusing to start with unsafe configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown finished with errors", "error", err)
		}
	}()

	if err := repositories.AutoMigrate(a.DB); err != nil {
		log.Error("migration failed", "error", err)
		return
	}
	log.Info("connected to database", "driver", cfg.Database.Driver)

	sqlDB, err := a.DB.DB()
	if err != nil {
		log.Error("failed to get database instance", "error", err)
		return
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := sqlDB.Stats()
				log.Debug("db pool",
					"open", stats.OpenConnections,
					"idle", stats.Idle,
					"in_use", stats.InUse,
					"wait_count", stats.WaitCount,
					"wait_duration", stats.WaitDuration,
				)
				if a.Cache != nil {
					ps := a.Cache.GetStats()
					log.Debug("redis pool", "hits", ps.Hits, "misses", ps.Misses, "timeouts", ps.Timeouts, "total", ps.TotalConns, "idle", ps.IdleConns)
				}
			}
		}
	}()

	go func() {
		if err := a.Sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("sweeper stopped", "error", err)
		}
	}()

	server := fiber.New(fiber.Config{
		AppName:      "viewly",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	})

	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,OPTIONS",
		AllowCredentials: true,
	}))
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// each created request opens a checkout session at the provider
	server.Use("/api/viewings", limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodPost || c.Path() != "/api/viewings"
		},
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{"code": "RATE_LIMITED", "message": "Too many requests. Please try again later."},
			})
		},
	}))

	deps := routes.Dependencies{
		DB:         a.DB,
		Viewings:   a.Viewings,
		Properties: a.Properties,
		Webhooks:   a.Provider,
		JWTSecret:  cfg.JWTSecret,
		Logger:     log,
		Version:    version,
	}
	if a.Cache != nil {
		deps.Cache = a.Cache
	}
	routes.SetupRoutes(server, deps)

	go func() {
		<-ctx.Done()
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Warn("http shutdown", "error", err)
		}
	}()

	log.Info("listening", "port", cfg.Port, "env", cfg.Env)
	if err := server.Listen(":" + cfg.Port); err != nil {
		log.Error("server stopped", "error", err)
	}
}
