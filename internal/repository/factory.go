package repository

import (
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/domain/payment"
	"github.com/flexprice/bookingpay/internal/domain/promotion"
	"github.com/flexprice/bookingpay/internal/domain/refund"
	"github.com/flexprice/bookingpay/internal/domain/revenue"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	postgresRepo "github.com/flexprice/bookingpay/internal/repository/postgres"
	"go.uber.org/fx"
)

type RepositoryType string

const (
	PostgresRepo RepositoryType = "postgres"
)

// Module provides every billing repository backed by postgres
func Module() fx.Option {
	return fx.Provide(
		NewInvoiceRepository,
		NewPaymentRepository,
		NewPromotionRepository,
		NewPromotionUsageRepository,
		NewRefundRepository,
		NewRevenueRepository,
	)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewPromotionRepository(db *postgres.DB, logger *logger.Logger) promotion.Repository {
	return postgresRepo.NewPromotionRepository(db, logger)
}

func NewPromotionUsageRepository(db *postgres.DB, logger *logger.Logger) promotion.UsageRepository {
	return postgresRepo.NewPromotionUsageRepository(db, logger)
}

func NewRefundRepository(db *postgres.DB, logger *logger.Logger) refund.Repository {
	return postgresRepo.NewRefundRepository(db, logger)
}

func NewRevenueRepository(db *postgres.DB, logger *logger.Logger) revenue.Repository {
	return postgresRepo.NewRevenueRepository(db, logger)
}
