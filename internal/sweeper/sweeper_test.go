package sweeper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/service"
	"github.com/flexprice/bookingpay/internal/testutil"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SweeperSuite struct {
	testutil.BaseServiceTestSuite
	invoiceService   service.InvoiceService
	promotionService service.PromotionService
	sweeper          *Sweeper
}

func TestSweeper(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	params := service.ServiceParams{
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
	s.invoiceService = service.NewInvoiceService(params)
	s.promotionService = service.NewPromotionService(params)
	s.sweeper = New(s.invoiceService, s.promotionService, s.GetConfig(), s.GetSentry(), s.GetLogger())
}

func (s *SweeperSuite) createInvoice() *dto.InvoiceResponse {
	resp, err := s.invoiceService.CreateInvoice(s.GetContext(), dto.CreateInvoiceRequest{
		AppointmentID: types.GenerateUUIDWithPrefix("appt"),
		ProviderID:    "prov_sweep",
		ClientID:      "client_sweep",
		BaseAmount:    decimal.NewFromInt(2500),
	})
	s.Require().NoError(err)
	return resp
}

func (s *SweeperSuite) createPromotion(code string, end time.Time) *dto.PromotionResponse {
	resp, err := s.promotionService.CreatePromotion(s.GetContext(), dto.CreatePromotionRequest{
		ProviderID:   "prov_sweep",
		Name:         code,
		DiscountCode: code,
		DiscountType: types.DiscountTypeFixed,
		Discount:     decimal.NewFromInt(100),
		StartDate:    end.Add(-48 * time.Hour),
		EndDate:      end,
	})
	s.Require().NoError(err)
	return resp
}

func (s *SweeperSuite) invoiceStatus(id string) types.InvoiceStatus {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return inv.InvoiceStatus
}

func (s *SweeperSuite) TestRunOnce() {
	inv := s.createInvoice()
	ended := s.createPromotion("ENDED", s.GetNow().Add(-time.Hour))
	live := s.createPromotion("LIVE", s.GetNow().Add(time.Hour))

	// before the grace period only the promotion has ended
	result, err := s.sweeper.RunOnce(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, result.ExpiredInvoices)
	s.Equal(1, result.ExpiredPromotions)
	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))

	s.sweeper.now = func() time.Time {
		return lo.FromPtr(inv.DueDate).Add(time.Minute)
	}
	result, err = s.sweeper.RunOnce(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.ExpiredInvoices)
	s.Equal(1, result.ExpiredPromotions)
	s.Equal(types.InvoiceStatusCanceled, s.invoiceStatus(inv.ID))

	p, err := s.GetStores().PromotionRepo.Get(s.GetContext(), ended.ID)
	s.Require().NoError(err)
	s.Equal(types.PromotionStatusExpired, p.PromotionStatus)
	p, err = s.GetStores().PromotionRepo.Get(s.GetContext(), live.ID)
	s.Require().NoError(err)
	s.Equal(types.PromotionStatusExpired, p.PromotionStatus)

	result, err = s.sweeper.RunOnce(s.GetContext())
	s.Require().NoError(err)
	s.Zero(result.ExpiredInvoices)
	s.Zero(result.ExpiredPromotions)
}

func (s *SweeperSuite) TestLoopExpiresInBackground() {
	inv := s.createInvoice()
	s.sweeper.cfg.Interval = 10 * time.Millisecond
	s.sweeper.now = func() time.Time {
		return lo.FromPtr(inv.DueDate).Add(time.Minute)
	}

	s.Require().NoError(s.sweeper.Start())
	defer s.sweeper.Stop()
	s.Error(s.sweeper.Start())

	s.Eventually(func() bool {
		return s.GetPublisher().CountByName(types.EventInvoiceCanceled) > 0
	}, time.Second, 10*time.Millisecond)
	s.Equal(types.InvoiceStatusCanceled, s.invoiceStatus(inv.ID))

	events := lo.Filter(s.GetPublisher().GetEvents(), func(e testutil.PublishedEvent, _ int) bool {
		return e.Name == types.EventInvoiceCanceled
	})
	s.Require().Len(events, 1)

	var canceled invoice.Invoice
	s.Require().NoError(json.Unmarshal(events[0].Payload, &canceled))
	s.Equal(inv.ID, canceled.ID)
	s.Equal(types.InvoiceCancelReasonExpired, lo.FromPtr(canceled.CancelReason))
}

func (s *SweeperSuite) TestStopWithoutStart() {
	s.sweeper.Stop()

	s.sweeper.cfg.Interval = 0
	s.Error(s.sweeper.Start())
}
