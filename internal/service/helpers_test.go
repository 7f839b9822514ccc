package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/domain/payment"
	"github.com/flexprice/bookingpay/internal/domain/promotion"
	"github.com/flexprice/bookingpay/internal/domain/revenue"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/testutil"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	testProviderID = "prov_test"
	testClientID   = "client_test"
)

// newTestServiceParams wires every service dependency to the suite's in-memory doubles
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:             s.GetLogger(),
		Config:             s.GetConfig(),
		DB:                 s.GetDB(),
		Sentry:             s.GetSentry(),
		Cache:              s.GetCache(),
		InvoiceRepo:        stores.InvoiceRepo,
		PaymentRepo:        stores.PaymentRepo,
		PromotionRepo:      stores.PromotionRepo,
		PromotionUsageRepo: stores.PromotionUsageRepo,
		RefundRepo:         stores.RefundRepo,
		RevenueRepo:        stores.RevenueRepo,
		PaymentGateway:     s.GetGateway(),
		EventPublisher:     s.GetPublisher(),
	}
}

// storeInvoice writes an invoice straight into the repository
func storeInvoice(s *testutil.BaseServiceTestSuite, status types.InvoiceStatus, total int64, due time.Time) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		AppointmentID:  types.GenerateUUIDWithPrefix("appt"),
		ProviderID:     testProviderID,
		ClientID:       testClientID,
		Currency:       "usd",
		BaseAmount:     decimal.NewFromInt(total),
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.NewFromInt(total),
		InvoiceStatus:  status,
		IssuedDate:     s.GetNow(),
		DueDate:        lo.ToPtr(due),
		Version:        1,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	if status == types.InvoiceStatusPaid || status == types.InvoiceStatusRefunded {
		inv.PaidAt = lo.ToPtr(s.GetNow())
	}
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), inv))
	return inv
}

func percentagePromotionRequest(code string, percent int64, maxUsage int) dto.CreatePromotionRequest {
	now := time.Now().UTC()
	return dto.CreatePromotionRequest{
		ProviderID:   testProviderID,
		Name:         "Promotion " + code,
		DiscountCode: code,
		DiscountType: types.DiscountTypePercentage,
		Discount:     decimal.NewFromInt(percent),
		MaxUsage:     maxUsage,
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(24 * time.Hour),
	}
}

func reserveRequest(code, clientID string) dto.ReservePromotionRequest {
	return dto.ReservePromotionRequest{
		Code:          code,
		ProviderID:    testProviderID,
		ClientID:      clientID,
		AppointmentID: types.GenerateUUIDWithPrefix("appt"),
		BaseAmount:    decimal.NewFromInt(10000),
	}
}

func getPromotion(s *testutil.BaseServiceTestSuite, id string) *promotion.Promotion {
	p, err := s.GetStores().PromotionRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return p
}

func storageError() error {
	return ierr.NewError("connection reset by peer").
		WithHint("Database is unavailable").
		Mark(ierr.ErrDatabase)
}

// flakyRevenueRepo fails the next failures calls to Mutate with a storage error
type flakyRevenueRepo struct {
	revenue.Repository
	failures atomic.Int32
	calls    atomic.Int32
}

func (r *flakyRevenueRepo) Mutate(ctx context.Context, providerID string, month time.Time, fn revenue.MutateFunc) (*revenue.Revenue, error) {
	r.calls.Add(1)
	if r.failures.Add(-1) >= 0 {
		return nil, storageError()
	}
	return r.Repository.Mutate(ctx, providerID, month, fn)
}

// flakyPaymentRepo fails the next failures calls to UpdateStatus with a storage error
type flakyPaymentRepo struct {
	payment.Repository
	failures atomic.Int32
}

func (r *flakyPaymentRepo) UpdateStatus(ctx context.Context, u *payment.StatusUpdate) (bool, error) {
	if r.failures.Add(-1) >= 0 {
		return false, storageError()
	}
	return r.Repository.UpdateStatus(ctx, u)
}

// brokenInvoiceRepo fails every transition of one invoice
type brokenInvoiceRepo struct {
	invoice.Repository
	invoiceID string
}

func (r *brokenInvoiceRepo) Transition(ctx context.Context, t *invoice.Transition) (bool, error) {
	if t.InvoiceID == r.invoiceID {
		return false, storageError()
	}
	return r.Repository.Transition(ctx, t)
}
