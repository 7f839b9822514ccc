package postgres

import (
	"context"

	"github.com/flexprice/bookingpay/internal/config"
	"github.com/flexprice/bookingpay/internal/logger"
	sentryService "github.com/flexprice/bookingpay/internal/sentry"
	"go.uber.org/fx"
)

// IClient is the unit-of-work boundary used by services
type IClient interface {
	// WithTx runs fn in a transaction; a call inside an open one joins it
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Module provides the database and the unit-of-work client
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewClient exposes db as the transactional client used by services
func NewClient(db *DB, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return NewSentryClient(db, sentry, logger)
}

func registerHooks(lc fx.Lifecycle, db *DB, cfg *config.Configuration, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("postgres connected",
				"host", cfg.Postgres.Host,
				"dbname", cfg.Postgres.DBName,
			)
			return db.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
}
