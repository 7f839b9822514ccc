package testutil

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/cache"
	"github.com/flexprice/bookingpay/internal/config"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/domain/payment"
	"github.com/flexprice/bookingpay/internal/domain/promotion"
	"github.com/flexprice/bookingpay/internal/domain/refund"
	"github.com/flexprice/bookingpay/internal/domain/revenue"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/sentry"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/flexprice/bookingpay/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	InvoiceRepo        invoice.Repository
	PaymentRepo        payment.Repository
	PromotionRepo      promotion.Repository
	PromotionUsageRepo promotion.UsageRepository
	RefundRepo         refund.Repository
	RevenueRepo        revenue.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryEventPublisher
	gateway   *FakePaymentGateway
	cache     cache.Cache
	db        postgres.IClient
	sentry    *sentry.Service
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Stripe.WebhookSecret = FakeWebhookSecret
	cfg.Sentry.Enabled = false

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
	s.sentry = sentry.NewSentryService(cfg, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		InvoiceRepo:        NewInMemoryInvoiceStore(),
		PaymentRepo:        NewInMemoryPaymentStore(),
		PromotionRepo:      NewInMemoryPromotionStore(),
		PromotionUsageRepo: NewInMemoryPromotionUsageStore(),
		RefundRepo:         NewInMemoryRefundStore(),
		RevenueRepo:        NewInMemoryRevenueStore(),
	}

	s.db = NewInMemoryTxClient(s.logger)
	s.gateway = NewFakePaymentGateway()
	s.publisher = NewInMemoryEventPublisher()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.PromotionRepo.(*InMemoryPromotionStore).Clear()
	s.stores.PromotionUsageRepo.(*InMemoryPromotionUsageStore).Clear()
	s.stores.RefundRepo.(*InMemoryRefundStore).Clear()
	s.stores.RevenueRepo.(*InMemoryRevenueStore).Clear()
	s.publisher.Clear()
	s.cache.Flush(context.Background())
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the recording event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetGateway returns the fake payment processor
func (s *BaseServiceTestSuite) GetGateway() *FakePaymentGateway {
	return s.gateway
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetDB returns the in-memory transactional client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetSentry returns a disabled sentry service
func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

// SetupContext returns a context scoped to the default tenant and test user
func SetupContext() context.Context {
	ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	return types.SetRequestID(ctx, types.GenerateUUID())
}
