package service

import (
	"context"

	"github.com/flexprice/bookingpay/internal/cache"
	"github.com/flexprice/bookingpay/internal/config"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/domain/payment"
	"github.com/flexprice/bookingpay/internal/domain/promotion"
	"github.com/flexprice/bookingpay/internal/domain/refund"
	"github.com/flexprice/bookingpay/internal/domain/revenue"
	"github.com/flexprice/bookingpay/internal/integration"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/publisher"
	"github.com/flexprice/bookingpay/internal/sentry"
	"go.uber.org/fx"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Sentry *sentry.Service
	Cache  cache.Cache

	// Repositories
	InvoiceRepo        invoice.Repository
	PaymentRepo        payment.Repository
	PromotionRepo      promotion.Repository
	PromotionUsageRepo promotion.UsageRepository
	RefundRepo         refund.Repository
	RevenueRepo        revenue.Repository

	// Collaborators
	PaymentGateway integration.PaymentGateway
	EventPublisher publisher.EventPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	cache cache.Cache,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	promotionRepo promotion.Repository,
	promotionUsageRepo promotion.UsageRepository,
	refundRepo refund.Repository,
	revenueRepo revenue.Repository,
	paymentGateway integration.PaymentGateway,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:             logger,
		Config:             config,
		DB:                 db,
		Sentry:             sentry,
		Cache:              cache,
		InvoiceRepo:        invoiceRepo,
		PaymentRepo:        paymentRepo,
		PromotionRepo:      promotionRepo,
		PromotionUsageRepo: promotionUsageRepo,
		RefundRepo:         refundRepo,
		RevenueRepo:        revenueRepo,
		PaymentGateway:     paymentGateway,
		EventPublisher:     eventPublisher,
	}
}

// Module provides the billing services
func Module() fx.Option {
	return fx.Provide(
		NewServiceParams,
		NewPromotionService,
		NewInvoiceService,
		NewPaymentService,
		NewRefundService,
		NewRevenueService,
	)
}

// publishEvent emits a domain event for a committed change. A publish failure
// is logged only, the change it describes is already durable.
func (p ServiceParams) publishEvent(ctx context.Context, eventName string, payload any) {
	if p.EventPublisher == nil {
		return
	}
	if err := p.EventPublisher.Publish(ctx, eventName, payload); err != nil {
		p.Logger.Errorw("failed to publish event",
			"event_name", eventName,
			"error", err,
		)
	}
}
