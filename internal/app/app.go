// Package app assembles the service graph shared by the server and the ops CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"viewly/internal/config"
	"viewly/internal/repositories"
	"viewly/internal/repositories/cache"
	"viewly/internal/services/notification"
	"viewly/internal/services/payment"
	"viewly/internal/services/viewing"

	"gorm.io/gorm"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	DB         *gorm.DB
	Cache      *cache.CacheService // nil when Redis is disabled or unreachable
	Provider   *payment.StripeProvider
	Dispatcher *notification.Dispatcher
	Properties *viewing.PropertyCatalog
	Viewings   *viewing.Service
	Sweeper    *viewing.Sweeper

	closers []func() error
}

// New connects to the database, cache and broker and builds the services.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	db, err := repositories.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if cfg.Redis.Enabled {
		svc := cache.NewCacheService(cache.NewRedisClient(cfg.Redis), cfg.Redis.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := svc.HealthCheck(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, running without cache", "error", err)
			_ = svc.Close()
		} else {
			a.Cache = svc
			a.closers = append(a.closers, svc.Close)
		}
	}

	var notifier notification.Notifier
	switch cfg.Notifier {
	case "amqp":
		n, err := notification.DialAMQPNotifier(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		notifier = n
		a.closers = append(a.closers, n.Close)
	case "log", "":
		notifier = notification.NewLogNotifier(logger)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
	a.Dispatcher = notification.NewDispatcher(notifier, cfg.Viewing.NotifyTimeout, logger)

	a.Provider = payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Timeout:       cfg.Viewing.ProviderTimeout,
	})

	var opts []viewing.Option
	if a.Cache != nil {
		opts = append(opts, viewing.WithCache(a.Cache))
	}
	a.Properties = viewing.NewPropertyCatalog(repositories.NewPropertyRepository(db), cfg.Viewing.Fee, cfg.Viewing.Currency)
	a.Viewings = viewing.NewService(
		repositories.NewViewingRequestRepository(db),
		a.Properties,
		a.Provider,
		a.Dispatcher,
		viewing.Config{
			ProviderTimeout: cfg.Viewing.ProviderTimeout,
			MaxRetries:      cfg.Viewing.MaxRetries,
			DisputeWindow:   cfg.Viewing.DisputeWindow,
			CallbackURL:     cfg.Stripe.CallbackURL,
			ReturnURL:       cfg.Stripe.SuccessURL,
			CancelURL:       cfg.Stripe.CancelURL,
		},
		logger,
		opts...,
	)
	a.Sweeper = viewing.NewSweeper(a.Viewings, cfg.Viewing.SweepInterval, cfg.Viewing.PendingTTL, 100, logger)
	return a, nil
}

// Close waits for queued notifications and releases connections in reverse order.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
