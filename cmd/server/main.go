package main

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/cache"
	"github.com/flexprice/bookingpay/internal/config"
	"github.com/flexprice/bookingpay/internal/integration/stripe"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/publisher"
	"github.com/flexprice/bookingpay/internal/repository"
	"github.com/flexprice/bookingpay/internal/sentry"
	"github.com/flexprice/bookingpay/internal/service"
	"github.com/flexprice/bookingpay/internal/sweeper"
	"github.com/flexprice/bookingpay/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Event publishing
			publisher.NewPubSub,
			publisher.NewEventPublisher,

			// Payment processor
			stripe.NewGateway,
		),
		sentry.Module(),
		postgres.Module(),
		repository.Module(),
	)

	// Service layer
	opts = append(opts, service.Module())

	// Hooks stop in reverse order, so the publisher outlives the sweeper
	opts = append(opts,
		fx.Invoke(registerPublisherHooks),
		sweeper.Module(),
	)

	app := fx.New(opts...)
	app.Run()
}

func registerPublisherHooks(
	lc fx.Lifecycle,
	pub publisher.EventPublisher,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("event publisher ready")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("closing event publisher")
			return pub.Close()
		},
	})
}
