package service

import (
	"sync"
	"testing"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/integration"
	"github.com/flexprice/bookingpay/internal/testutil"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service          PaymentService
	invoiceService   InvoiceService
	promotionService PromotionService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewPaymentService(params)
	s.invoiceService = NewInvoiceService(params)
	s.promotionService = NewPromotionService(params)
}

// promotedInvoice raises a 10000 invoice with a 20% code applied
func (s *PaymentServiceSuite) promotedInvoice() *dto.InvoiceResponse {
	_, err := s.promotionService.CreatePromotion(s.GetContext(), percentagePromotionRequest("SAVE20", 20, 0))
	s.Require().NoError(err)

	resp, err := s.invoiceService.CreateInvoice(s.GetContext(), dto.CreateInvoiceRequest{
		AppointmentID: types.GenerateUUIDWithPrefix("appt"),
		ProviderID:    testProviderID,
		ClientID:      testClientID,
		BaseAmount:    decimal.NewFromInt(10000),
		PromotionCode: lo.ToPtr("SAVE20"),
	})
	s.Require().NoError(err)
	return resp
}

func (s *PaymentServiceSuite) settle(transactionID string) error {
	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentSucceeded, transactionID, "")
	return s.service.Settle(s.GetContext(), dto.SettlePaymentRequest{
		TransactionID: transactionID,
		Payload:       payload,
		Signature:     signature,
	})
}

func (s *PaymentServiceSuite) invoiceStatus(id string) types.InvoiceStatus {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return inv.InvoiceStatus
}

func (s *PaymentServiceSuite) paymentStatus(id string) types.PaymentStatus {
	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return p.PaymentStatus
}

func (s *PaymentServiceSuite) assertRevenue(total, commission, net int64) {
	rev, err := s.GetStores().RevenueRepo.Get(s.GetContext(), testProviderID, time.Now().UTC())
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(total).Equal(rev.TotalIncome), "total %s", rev.TotalIncome)
	s.True(decimal.NewFromInt(commission).Equal(rev.Commission), "commission %s", rev.Commission)
	s.True(decimal.NewFromInt(net).Equal(rev.NetIncome), "net %s", rev.NetIncome)
}

func (s *PaymentServiceSuite) TestInitiateAndSettle() {
	inv := s.promotedInvoice()

	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(8000).Equal(intent.Amount))
	s.Equal(types.PaymentStatusPending, intent.PaymentStatus)
	s.NotEmpty(intent.TransactionID)
	s.NotEmpty(intent.ClientSecret)
	s.Equal(1, s.GetPublisher().CountByName(types.EventPaymentInitiated))

	s.Require().NoError(s.settle(intent.TransactionID))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)
	s.NotNil(stored.PaidAt)
	s.Equal(types.PaymentStatusCompleted, s.paymentStatus(intent.PaymentID))

	s.assertRevenue(8000, 800, 7200)
	s.Equal(1, s.GetPublisher().CountByName(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestInitiateRejectsOpenAttempt() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))

	_, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	_, err = s.service.Initiate(s.GetContext(), inv.ID)
	s.True(ierr.IsInvalidState(err))
	s.Equal(1, s.GetGateway().IntentCalls())
}

func (s *PaymentServiceSuite) TestInitiateRequiresPendingInvoice() {
	for _, status := range []types.InvoiceStatus{
		types.InvoiceStatusPaid,
		types.InvoiceStatusCanceled,
		types.InvoiceStatusRefunded,
	} {
		s.Run(status.String(), func() {
			inv := storeInvoice(&s.BaseServiceTestSuite, status, 5000, s.GetNow().Add(time.Hour))
			_, err := s.service.Initiate(s.GetContext(), inv.ID)
			s.True(ierr.IsInvalidState(err))
		})
	}
	s.Equal(0, s.GetGateway().IntentCalls())

	_, err := s.service.Initiate(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))

	_, err = s.service.Initiate(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestInitiateIndeterminate() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	s.GetGateway().CreateErr = ierr.NewError("processor timed out").Mark(ierr.ErrIndeterminate)

	_, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.True(ierr.IsIndeterminate(err))

	payments, err := s.GetStores().PaymentRepo.List(s.GetContext(), &types.PaymentFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		InvoiceID:   inv.ID,
	})
	s.Require().NoError(err)
	s.Empty(payments)
	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))

	// retrying the same attempt reuses its idempotency key
	s.GetGateway().CreateErr = nil
	_, err = s.service.Initiate(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(1, s.GetGateway().IntentCount())
}

func (s *PaymentServiceSuite) TestSettleIsIdempotent() {
	inv := s.promotedInvoice()
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.settle(intent.TransactionID))
	s.Require().NoError(s.settle(intent.TransactionID))

	// without the settled-transaction cache the payment state still guards the booking
	s.GetCache().Flush(s.GetContext())
	s.Require().NoError(s.settle(intent.TransactionID))

	s.assertRevenue(8000, 800, 7200)
	s.Equal(1, s.GetPublisher().CountByName(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestSettleRejectsBadSignature() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	payload, _ := testutil.NewFakeWebhook(integration.EventPaymentIntentSucceeded, intent.TransactionID, "")

	err = s.service.Settle(s.GetContext(), dto.SettlePaymentRequest{
		Payload:   payload,
		Signature: "forged",
	})
	s.True(ierr.IsSignatureInvalid(err))

	err = s.service.Settle(s.GetContext(), dto.SettlePaymentRequest{Payload: payload})
	s.True(ierr.IsSignatureInvalid(err))

	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusPending, s.paymentStatus(intent.PaymentID))
}

func (s *PaymentServiceSuite) TestSettleRejectsMismatchedTransaction() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentSucceeded, intent.TransactionID, "")
	err = s.service.Settle(s.GetContext(), dto.SettlePaymentRequest{
		TransactionID: "pi_other",
		Payload:       payload,
		Signature:     signature,
	})
	s.True(ierr.IsValidation(err))

	failed, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentFailed, intent.TransactionID, "declined")
	err = s.service.Settle(s.GetContext(), dto.SettlePaymentRequest{
		Payload:   failed,
		Signature: signature,
	})
	s.True(ierr.IsInvalidOperation(err))
	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))
}

func (s *PaymentServiceSuite) TestSettleUnknownTransaction() {
	err := s.settle("pi_unknown")
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestSettleOnCanceledInvoice() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	// the invoice expires while the intent is still open
	_, err = s.invoiceService.Transition(s.GetContext(), &invoice.Transition{
		InvoiceID:    inv.ID,
		From:         types.InvoiceStatusPending,
		To:           types.InvoiceStatusCanceled,
		CancelReason: lo.ToPtr(types.InvoiceCancelReasonExpired),
	})
	s.Require().NoError(err)

	err = s.settle(intent.TransactionID)
	s.True(ierr.IsInvalidTransition(err))

	s.Equal(types.InvoiceStatusCanceled, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusPending, s.paymentStatus(intent.PaymentID))
	_, err = s.GetStores().RevenueRepo.Get(s.GetContext(), testProviderID, time.Now().UTC())
	s.True(ierr.IsNotFound(err))
	s.Equal(0, s.GetPublisher().CountByName(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestConcurrentSettlementBooksOnce() {
	inv := s.promotedInvoice()
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	const deliveries = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.settle(intent.TransactionID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	s.Equal(types.InvoiceStatusPaid, s.invoiceStatus(inv.ID))
	s.assertRevenue(8000, 800, 7200)
	s.Equal(1, s.GetPublisher().CountByName(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestExpiryRacingSettlement() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(-time.Minute))
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	var (
		wg        sync.WaitGroup
		settleErr error
		expired   []*invoice.Invoice
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		settleErr = s.settle(intent.TransactionID)
	}()
	go func() {
		defer wg.Done()
		expired, _ = s.invoiceService.ExpireOverdue(s.GetContext(), time.Now().UTC())
	}()
	wg.Wait()

	status := s.invoiceStatus(inv.ID)
	switch status {
	case types.InvoiceStatusPaid:
		s.NoError(settleErr)
		s.Empty(expired)
		s.assertRevenue(5000, 500, 4500)
	case types.InvoiceStatusCanceled:
		s.True(ierr.IsInvalidTransition(settleErr))
		s.Len(expired, 1)
		s.Equal(types.PaymentStatusPending, s.paymentStatus(intent.PaymentID))
		_, err := s.GetStores().RevenueRepo.Get(s.GetContext(), testProviderID, time.Now().UTC())
		s.True(ierr.IsNotFound(err))
	default:
		s.Failf("unexpected invoice status", "status %s", status)
	}
}

func (s *PaymentServiceSuite) TestFailedPaymentAllowsRetry() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	first, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentFailed, first.TransactionID, "card_declined")
	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), payload, signature))

	failed, err := s.GetStores().PaymentRepo.Get(s.GetContext(), first.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusFailed, failed.PaymentStatus)
	s.Equal("card_declined", lo.FromPtr(failed.ErrorMessage))
	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))
	s.Equal(1, s.GetPublisher().CountByName(types.EventPaymentFailed))

	second, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.NotEqual(first.TransactionID, second.TransactionID)
	s.Equal(2, s.GetGateway().IntentCount())

	payload, signature = testutil.NewFakeWebhook(integration.EventPaymentIntentSucceeded, second.TransactionID, "")
	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), payload, signature))
	s.Equal(types.InvoiceStatusPaid, s.invoiceStatus(inv.ID))
}

func (s *PaymentServiceSuite) TestHandleWebhookDeduplicatesEvents() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentSucceeded, intent.TransactionID, "")
	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), payload, signature))
	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), payload, signature))

	s.assertRevenue(5000, 500, 4500)
	s.Equal(1, s.GetPublisher().CountByName(types.EventInvoicePaid))

	err = s.service.HandleWebhook(s.GetContext(), payload, "forged")
	s.True(ierr.IsSignatureInvalid(err))
}

func (s *PaymentServiceSuite) TestHandleWebhookIgnoresUnknownEvents() {
	payload, signature := testutil.NewFakeWebhook("charge.dispute.created", "pi_any", "")
	s.NoError(s.service.HandleWebhook(s.GetContext(), payload, signature))
	s.Empty(s.GetPublisher().GetEvents())
}

func (s *PaymentServiceSuite) TestCancel() {
	inv := s.promotedInvoice()
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Cancel(s.GetContext(), inv.ID))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusCanceled, stored.InvoiceStatus)
	s.Equal(types.InvoiceCancelReasonCanceledByClient, lo.FromPtr(stored.CancelReason))
	s.Equal(types.PaymentStatusCanceled, s.paymentStatus(intent.PaymentID))
	s.True(s.GetGateway().IsCanceled(intent.TransactionID))

	_, err = s.GetStores().PromotionUsageRepo.Get(s.GetContext(), lo.FromPtr(inv.PromotionUsageID))
	s.True(ierr.IsNotFound(err))
	s.Equal(1, s.GetPublisher().CountByName(types.EventInvoiceCanceled))

	// a late confirmation for the canceled intent is refused
	err = s.settle(intent.TransactionID)
	s.True(ierr.IsInvalidState(err))
	s.Equal(types.InvoiceStatusCanceled, s.invoiceStatus(inv.ID))
}

func (s *PaymentServiceSuite) TestCancelWithoutPayment() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	s.Require().NoError(s.service.Cancel(s.GetContext(), inv.ID))
	s.Equal(types.InvoiceStatusCanceled, s.invoiceStatus(inv.ID))

	err := s.service.Cancel(s.GetContext(), inv.ID)
	s.True(ierr.IsInvalidTransition(err))
}

func (s *PaymentServiceSuite) TestCancelAfterSettlement() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.settle(intent.TransactionID))

	err = s.service.Cancel(s.GetContext(), inv.ID)
	s.True(ierr.IsAlreadySettled(err))
	s.Equal(types.InvoiceStatusPaid, s.invoiceStatus(inv.ID))
	s.False(s.GetGateway().IsCanceled(intent.TransactionID))
}

func (s *PaymentServiceSuite) TestCancelProcessorFailureKeepsInvoice() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	s.GetGateway().CancelErr = ierr.NewError("processor unavailable").Mark(ierr.ErrIndeterminate)
	err = s.service.Cancel(s.GetContext(), inv.ID)
	s.Error(err)

	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusPending, s.paymentStatus(intent.PaymentID))
}

func (s *PaymentServiceSuite) TestSettleRetriesAfterStorageFailure() {
	revenueRepo := &flakyRevenueRepo{Repository: s.GetStores().RevenueRepo}
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.RevenueRepo = revenueRepo
	svc := NewPaymentService(params)

	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := svc.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	// the first unit completes the payment and moves the invoice before booking fails
	revenueRepo.failures.Store(1)
	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentSucceeded, intent.TransactionID, "")
	s.Require().NoError(svc.Settle(s.GetContext(), dto.SettlePaymentRequest{
		TransactionID: intent.TransactionID,
		Payload:       payload,
		Signature:     signature,
	}))

	s.Equal(int32(2), revenueRepo.calls.Load())
	s.Equal(types.InvoiceStatusPaid, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusCompleted, s.paymentStatus(intent.PaymentID))
	s.assertRevenue(5000, 500, 4500)
	s.Equal(1, s.GetPublisher().CountByName(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestSettleGivesUpOnPersistentStorageFailure() {
	revenueRepo := &flakyRevenueRepo{Repository: s.GetStores().RevenueRepo}
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.RevenueRepo = revenueRepo
	svc := NewPaymentService(params)

	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	intent, err := svc.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	revenueRepo.failures.Store(100)
	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentSucceeded, intent.TransactionID, "")
	err = svc.Settle(s.GetContext(), dto.SettlePaymentRequest{Payload: payload, Signature: signature})
	s.True(ierr.IsDatabase(err), "got %v", err)

	// every attempt rolled back
	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusPending, s.paymentStatus(intent.PaymentID))
	s.Zero(s.GetPublisher().CountByName(types.EventInvoicePaid))
}

func (s *PaymentServiceSuite) TestCancelCanBeRetriedAfterStorageFailure() {
	paymentRepo := &flakyPaymentRepo{Repository: s.GetStores().PaymentRepo}
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.PaymentRepo = paymentRepo
	svc := NewPaymentService(params)

	inv := s.promotedInvoice()
	intent, err := svc.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	paymentRepo.failures.Store(1)
	err = svc.Cancel(s.GetContext(), inv.ID)
	s.True(ierr.IsDatabase(err), "got %v", err)
	s.True(s.GetGateway().IsCanceled(intent.TransactionID))
	s.Equal(types.InvoiceStatusPending, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusPending, s.paymentStatus(intent.PaymentID))

	// the intent is already canceled at the processor, the retry still completes
	s.Require().NoError(svc.Cancel(s.GetContext(), inv.ID))
	s.Equal(2, s.GetGateway().CancelCalls())
	s.Equal(types.InvoiceStatusCanceled, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusCanceled, s.paymentStatus(intent.PaymentID))
	s.Equal(1, s.GetPublisher().CountByName(types.EventInvoiceCanceled))
}

func (s *PaymentServiceSuite) TestLateSettlementCancelsNewerAttempt() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	first, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentFailed, first.TransactionID, "card_declined")
	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), payload, signature))

	second, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	// the first attempt succeeds after all
	s.Require().NoError(s.settle(first.TransactionID))

	s.Equal(types.InvoiceStatusPaid, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusCompleted, s.paymentStatus(first.PaymentID))
	s.Equal(types.PaymentStatusCanceled, s.paymentStatus(second.PaymentID))
	s.True(s.GetGateway().IsCanceled(second.TransactionID))
	s.False(s.GetGateway().IsCanceled(first.TransactionID))
	s.assertRevenue(5000, 500, 4500)
}

func (s *PaymentServiceSuite) TestLateSettlementKeepsAttemptTheProcessorRefusesToCancel() {
	inv := storeInvoice(&s.BaseServiceTestSuite, types.InvoiceStatusPending, 5000, s.GetNow().Add(time.Hour))
	first, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	payload, signature := testutil.NewFakeWebhook(integration.EventPaymentIntentFailed, first.TransactionID, "card_declined")
	s.Require().NoError(s.service.HandleWebhook(s.GetContext(), payload, signature))

	second, err := s.service.Initiate(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	s.GetGateway().CancelErr = ierr.NewError("processor unavailable").Mark(ierr.ErrIndeterminate)
	s.Require().NoError(s.settle(first.TransactionID))

	s.Equal(types.InvoiceStatusPaid, s.invoiceStatus(inv.ID))
	s.Equal(types.PaymentStatusPending, s.paymentStatus(second.PaymentID))
}
