package service

import (
	"context"
	"strings"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/domain/payment"
	"github.com/flexprice/bookingpay/internal/domain/refund"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/idempotency"
	"github.com/flexprice/bookingpay/internal/integration"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
)

// RefundService adjudicates client refund requests against paid invoices
type RefundService interface {
	FileRequest(ctx context.Context, req dto.FileRefundRequest) (*dto.RefundRequestResponse, error)
	// Approve issues the processor refund, then marks the request APPROVED, the
	// invoice REFUNDED and reverses the booked revenue in one unit.
	Approve(ctx context.Context, requestID, adjudicatorUserID string) (*dto.RefundRequestResponse, error)
	Reject(ctx context.Context, requestID, adjudicatorUserID, reason string) (*dto.RefundRequestResponse, error)
}

type refundService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

// NewRefundService creates a new refund service
func NewRefundService(params ServiceParams) RefundService {
	return &refundService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *refundService) FileRequest(ctx context.Context, req dto.FileRefundRequest) (*dto.RefundRequestResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	if inv.ClientID != req.ClientID {
		return nil, ierr.NewError("client does not own invoice").
			WithHint("You can only request refunds for your own invoices").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"client_id":  req.ClientID,
			}).
			Mark(ierr.ErrPermissionDenied)
	}

	if inv.InvoiceStatus != types.InvoiceStatusPaid {
		return nil, ierr.NewError("invoice is not refundable").
			WithHintf("Invoice is %s, only paid invoices can be refunded", inv.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id":     inv.ID,
				"invoice_status": inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidState)
	}

	open, err := s.RefundRepo.GetPendingByInvoice(ctx, inv.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if open != nil {
		return nil, openRefundError(inv.ID, open.ID)
	}

	r := req.ToRefundRequest(ctx, inv)
	if err := s.RefundRepo.Create(ctx, r); err != nil {
		if ierr.IsAlreadyExists(err) {
			return nil, openRefundError(inv.ID, "")
		}
		return nil, err
	}

	s.Logger.Infow("filed refund request",
		"refund_request_id", r.ID,
		"invoice_id", inv.ID,
		"amount", r.Amount,
	)
	s.publishEvent(ctx, types.EventRefundRequested, r)

	return dto.NewRefundRequestResponse(r), nil
}

func (s *refundService) Approve(ctx context.Context, requestID, adjudicatorUserID string) (*dto.RefundRequestResponse, error) {
	if strings.TrimSpace(adjudicatorUserID) == "" {
		return nil, ierr.NewError("adjudicator_user_id is required").
			WithHint("Adjudicator is required").
			Mark(ierr.ErrValidation)
	}

	r, err := s.getPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, r.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus != types.InvoiceStatusPaid {
		return nil, ierr.NewError("invoice is not refundable").
			WithHintf("Invoice is %s, only paid invoices can be refunded", inv.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"refund_request_id": r.ID,
				"invoice_id":        inv.ID,
				"invoice_status":    inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidState)
	}

	settled, err := s.settledPayment(ctx, inv)
	if err != nil {
		return nil, err
	}

	// one processor refund per request, however often approval is retried
	key := s.idempGen.GenerateKey(idempotency.ScopeRefund, map[string]interface{}{
		"refund_request_id": r.ID,
	})

	span, spanCtx := s.Sentry.StartProcessorSpan(ctx, "create_refund", map[string]interface{}{
		"refund_request_id": r.ID,
	})
	processorRefund, err := s.PaymentGateway.CreateRefund(spanCtx, &integration.CreateRefundRequest{
		TransactionID:  settled.TransactionID,
		Amount:         r.Amount,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"refund_request_id": r.ID,
			"invoice_id":        inv.ID,
			"tenant_id":         inv.TenantID,
		},
	})
	if span != nil {
		span.Finish()
	}
	if err != nil {
		s.Logger.Errorw("processor refund failed, request stays pending",
			"refund_request_id", r.ID,
			"transaction_id", settled.TransactionID,
			"indeterminate", ierr.IsIndeterminate(err),
			"error", err,
		)
		return nil, err
	}

	adjudication := &refund.Adjudication{
		RequestID:         r.ID,
		To:                types.RefundStatusApproved,
		AdjudicatorUserID: adjudicatorUserID,
		ProcessorRefundID: lo.ToPtr(processorRefund.RefundID),
		At:                time.Now().UTC(),
	}

	invoiceService := NewInvoiceService(s.ServiceParams)
	revenueService := newRevenueService(s.ServiceParams)

	var (
		refunded *invoice.Invoice
		change   *revenueChange
	)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		ok, err := s.RefundRepo.Adjudicate(ctx, adjudication)
		if err != nil {
			return err
		}
		if !ok {
			return notPendingError(r.ID)
		}

		refunded, err = invoiceService.Transition(ctx, &invoice.Transition{
			InvoiceID: inv.ID,
			From:      types.InvoiceStatusPaid,
			To:        types.InvoiceStatusRefunded,
			At:        adjudication.At,
			UpdatedBy: adjudicatorUserID,
		})
		if err != nil {
			return err
		}

		month, ok := inv.RevenueMonth()
		if !ok {
			return ierr.NewError("paid invoice has no payment date").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
				}).
				Mark(ierr.ErrConsistencyViolation)
		}
		change, err = revenueService.apply(ctx, inv.ProviderID, month, r.Amount.Neg(), s.Config.Billing.CommissionRate)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.Apply(adjudication)

	s.Logger.Infow("approved refund request",
		"refund_request_id", r.ID,
		"invoice_id", inv.ID,
		"processor_refund_id", processorRefund.RefundID,
		"amount", r.Amount,
	)
	revenueService.reportClamp(ctx, change)
	s.publishEvent(ctx, types.EventRefundApproved, r)
	s.publishEvent(ctx, types.EventInvoiceRefunded, refunded)

	return dto.NewRefundRequestResponse(r), nil
}

func (s *refundService) Reject(ctx context.Context, requestID, adjudicatorUserID, reason string) (*dto.RefundRequestResponse, error) {
	req := dto.RejectRefundRequest{
		AdjudicatorUserID: adjudicatorUserID,
		Reason:            strings.TrimSpace(reason),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r, err := s.getPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	adjudication := &refund.Adjudication{
		RequestID:         r.ID,
		To:                types.RefundStatusRejected,
		AdjudicatorUserID: req.AdjudicatorUserID,
		RejectReason:      lo.ToPtr(req.Reason),
		At:                time.Now().UTC(),
	}
	ok, err := s.RefundRepo.Adjudicate(ctx, adjudication)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notPendingError(r.ID)
	}

	r.Apply(adjudication)

	s.Logger.Infow("rejected refund request",
		"refund_request_id", r.ID,
		"invoice_id", r.InvoiceID,
	)
	s.publishEvent(ctx, types.EventRefundRejected, r)

	return dto.NewRefundRequestResponse(r), nil
}

func (s *refundService) getPending(ctx context.Context, requestID string) (*refund.Request, error) {
	if requestID == "" {
		return nil, ierr.NewError("refund_request_id is required").
			WithHint("Refund request ID is required").
			Mark(ierr.ErrValidation)
	}

	r, err := s.RefundRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsPending() {
		return nil, notPendingError(r.ID)
	}
	return r, nil
}

// settledPayment returns the completed payment whose transaction gets refunded
func (s *refundService) settledPayment(ctx context.Context, inv *invoice.Invoice) (*payment.Payment, error) {
	completed, err := s.PaymentRepo.List(ctx, &types.PaymentFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		InvoiceID:     inv.ID,
		PaymentStatus: []types.PaymentStatus{types.PaymentStatusCompleted},
	})
	if err != nil {
		return nil, err
	}
	if len(completed) != 1 {
		return nil, ierr.NewError("paid invoice must have exactly one completed payment").
			WithHint("The payment of this invoice cannot be identified").
			WithReportableDetails(map[string]any{
				"invoice_id":         inv.ID,
				"completed_payments": len(completed),
			}).
			Mark(ierr.ErrInvalidState)
	}
	return completed[0], nil
}

func openRefundError(invoiceID, requestID string) error {
	return ierr.NewError("refund request already open").
		WithHint("A refund request for this invoice is already pending").
		WithReportableDetails(map[string]any{
			"invoice_id":        invoiceID,
			"refund_request_id": requestID,
		}).
		Mark(ierr.ErrInvalidState)
}

func notPendingError(requestID string) error {
	return ierr.NewError("refund request is not pending").
		WithHint("This refund request has already been decided").
		WithReportableDetails(map[string]any{
			"refund_request_id": requestID,
		}).
		Mark(ierr.ErrInvalidState)
}
