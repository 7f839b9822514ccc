package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/bookingpay/internal/config"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/sentry"
	"github.com/flexprice/bookingpay/internal/service"
	"github.com/flexprice/bookingpay/internal/types"
	"go.uber.org/fx"
)

// Result summarizes one sweep
type Result struct {
	ExpiredInvoices   int
	ExpiredPromotions int
}

// Sweeper periodically expires overdue invoices and ended promotions
type Sweeper struct {
	invoiceService   service.InvoiceService
	promotionService service.PromotionService
	cfg              config.SweeperConfig
	sentry           *sentry.Service
	log              *logger.Logger
	now              func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper over the invoice and promotion services
func New(
	invoiceService service.InvoiceService,
	promotionService service.PromotionService,
	cfg *config.Configuration,
	sentry *sentry.Service,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		invoiceService:   invoiceService,
		promotionService: promotionService,
		cfg:              cfg.Sweeper,
		sentry:           sentry,
		log:              log,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Module provides the sweeper and starts it with the application
func Module() fx.Option {
	return fx.Options(
		fx.Provide(New),
		fx.Invoke(func(lc fx.Lifecycle, s *Sweeper) {
			s.RegisterWithLifecycle(lc)
		}),
	)
}

// RegisterWithLifecycle starts the sweep loop on start and waits for it on stop
func (s *Sweeper) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !s.cfg.Enabled {
				s.log.Info("sweeper is disabled")
				return nil
			}
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				s.Stop()
				close(done)
			}()

			select {
			case <-done:
				s.log.Info("sweeper stopped")
			case <-ctx.Done():
				s.log.Error("timeout while stopping sweeper")
			}
			return nil
		},
	})
}

// Start launches the sweep loop. It is an error to start a running sweeper.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("sweeper already running")
	}
	if s.cfg.Interval <= 0 {
		return errors.Newf("invalid sweeper interval %s", s.cfg.Interval)
	}

	ctx, cancel := context.WithCancel(types.NewSystemContext(context.Background()))
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Infow("starting sweeper",
		"interval", s.cfg.Interval,
		"concurrency", s.cfg.Concurrency,
		"batch_size", s.cfg.BatchSize,
	)
	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a fresh request id per sweep keeps the logs of one run together
			if _, err := s.RunOnce(types.SetRequestID(ctx, types.GenerateUUID())); err != nil {
				s.log.Errorw("sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep. Both expiries run even when the first fails.
func (s *Sweeper) RunOnce(ctx context.Context) (*Result, error) {
	now := s.now()
	result := &Result{}

	var errs error
	invoices, err := s.invoiceService.ExpireOverdue(ctx, now)
	if err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "expire overdue invoices"))
	}
	result.ExpiredInvoices = len(invoices)

	promotions, err := s.promotionService.ExpireEnded(ctx, now)
	if err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "expire ended promotions"))
	}
	result.ExpiredPromotions = len(promotions)

	if errs != nil {
		s.sentry.CaptureException(errs)
		return result, errs
	}

	if result.ExpiredInvoices > 0 || result.ExpiredPromotions > 0 {
		s.log.Infow("sweep completed",
			"expired_invoices", result.ExpiredInvoices,
			"expired_promotions", result.ExpiredPromotions,
		)
	}
	return result, nil
}
