package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/cache"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/domain/payment"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/idempotency"
	"github.com/flexprice/bookingpay/internal/integration"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
)

// PaymentService drives processor payments for invoices
type PaymentService interface {
	// Initiate creates a processor intent for the invoice total and records a pending payment
	Initiate(ctx context.Context, invoiceID string) (*dto.PaymentIntentResponse, error)
	// Settle applies a signed payment confirmation. Redelivery of an applied
	// confirmation is a no-op.
	Settle(ctx context.Context, req dto.SettlePaymentRequest) error
	// HandleWebhook verifies and routes a processor notification
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// Cancel cancels open intents and the invoice unless a payment completed
	Cancel(ctx context.Context, invoiceID string) error
}

type paymentService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

// errAlreadyApplied ends a settlement unit whose payment another delivery completed
var errAlreadyApplied = errors.New("payment already completed")

// NewPaymentService creates a new payment service
func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *paymentService) Initiate(ctx context.Context, invoiceID string) (*dto.PaymentIntentResponse, error) {
	if invoiceID == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPayable(ctx, inv); err != nil {
		return nil, err
	}

	attempts, err := s.PaymentRepo.Count(ctx, &types.PaymentFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		InvoiceID:   inv.ID,
	})
	if err != nil {
		return nil, err
	}

	// the same attempt always maps to the same processor intent
	key := s.idempGen.GenerateKey(idempotency.ScopePaymentIntent, map[string]interface{}{
		"invoice_id": inv.ID,
		"attempt":    attempts + 1,
	})

	span, spanCtx := s.Sentry.StartProcessorSpan(ctx, "create_payment_intent", map[string]interface{}{
		"invoice_id": inv.ID,
	})
	intent, err := s.PaymentGateway.CreatePaymentIntent(spanCtx, &integration.CreatePaymentIntentRequest{
		Amount:         inv.TotalAmount,
		Currency:       inv.Currency,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"invoice_id":     inv.ID,
			"appointment_id": inv.AppointmentID,
			"tenant_id":      inv.TenantID,
		},
	})
	if span != nil {
		span.Finish()
	}
	if err != nil {
		s.Logger.Errorw("failed to create payment intent",
			"invoice_id", inv.ID,
			"indeterminate", ierr.IsIndeterminate(err),
			"error", err,
		)
		return nil, err
	}

	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:      inv.ID,
		TransactionID:  intent.TransactionID,
		IdempotencyKey: key,
		Amount:         inv.TotalAmount,
		Currency:       inv.Currency,
		PaymentStatus:  types.PaymentStatusPending,
		ClientSecret:   intent.ClientSecret,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.InvoiceRepo.Get(ctx, inv.ID)
		if err != nil {
			return err
		}
		if current.InvoiceStatus != types.InvoiceStatusPending {
			return invoiceNotPayableError(current)
		}
		return s.PaymentRepo.Create(ctx, p)
	})
	if err != nil {
		if ierr.IsAlreadyExists(err) {
			s.cancelOrphanIntent(ctx, intent.TransactionID)
			return nil, paymentInProgressError(inv.ID)
		}
		return nil, err
	}

	s.Logger.Infow("initiated payment",
		"invoice_id", inv.ID,
		"payment_id", p.ID,
		"transaction_id", p.TransactionID,
		"amount", p.Amount,
	)
	s.publishEvent(ctx, types.EventPaymentInitiated, p)

	return dto.NewPaymentIntentResponse(p), nil
}

// checkPayable fails with ErrInvalidState unless the invoice is PENDING with no open attempt
func (s *paymentService) checkPayable(ctx context.Context, inv *invoice.Invoice) error {
	if inv.InvoiceStatus != types.InvoiceStatusPending {
		return invoiceNotPayableError(inv)
	}

	pending, err := s.PaymentRepo.List(ctx, &types.PaymentFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		InvoiceID:     inv.ID,
		PaymentStatus: []types.PaymentStatus{types.PaymentStatusPending},
	})
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return paymentInProgressError(inv.ID)
	}
	return nil
}

// cancelOrphanIntent cancels an intent that lost the race for the invoice's
// pending slot, unless it is the very intent the winner recorded.
func (s *paymentService) cancelOrphanIntent(ctx context.Context, transactionID string) {
	if _, err := s.PaymentRepo.GetByTransactionID(ctx, transactionID); err == nil {
		return
	}
	if err := s.PaymentGateway.CancelPaymentIntent(ctx, transactionID); err != nil {
		s.Logger.Warnw("failed to cancel orphaned payment intent",
			"transaction_id", transactionID,
			"error", err,
		)
	}
}

func (s *paymentService) Settle(ctx context.Context, req dto.SettlePaymentRequest) error {
	event, err := s.verify(req.Payload, req.Signature)
	if err != nil {
		return err
	}

	if event.Type != integration.EventPaymentIntentSucceeded {
		return ierr.NewErrorf("event %s does not confirm a payment", event.Type).
			WithHint("Only payment success notifications can settle a payment").
			WithReportableDetails(map[string]any{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if req.TransactionID != "" && req.TransactionID != event.TransactionID {
		return ierr.NewError("transaction id does not match the signed payload").
			WithHint("Transaction ID does not match the notification").
			WithReportableDetails(map[string]any{
				"transaction_id":       req.TransactionID,
				"event_transaction_id": event.TransactionID,
			}).
			Mark(ierr.ErrValidation)
	}

	return s.settleVerified(ctx, event.TransactionID)
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verify(payload, signature)
	if err != nil {
		return err
	}

	eventKey := cache.GenerateKey(cache.PrefixWebhookEvent, event.ID)
	if event.ID != "" {
		if _, seen := s.Cache.Get(ctx, eventKey); seen {
			s.Logger.Debugw("skipping redelivered webhook event", "event_id", event.ID)
			return nil
		}
	}

	switch event.Type {
	case integration.EventPaymentIntentSucceeded:
		err = s.settleVerified(ctx, event.TransactionID)
	case integration.EventPaymentIntentFailed:
		err = s.markFailed(ctx, event.TransactionID, event.FailureMessage)
	default:
		s.Logger.Debugw("ignoring webhook event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	}
	if err != nil {
		return err
	}

	if event.ID != "" {
		s.Cache.Set(ctx, eventKey, true, s.Config.Cache.WebhookTTL)
	}
	return nil
}

func (s *paymentService) verify(payload []byte, signature string) (*integration.WebhookEvent, error) {
	req := dto.SettlePaymentRequest{Payload: payload, Signature: signature}
	if err := req.Validate(); err != nil {
		s.Logger.Errorw("rejected webhook without signature", "error", err)
		return nil, err
	}

	event, err := s.PaymentGateway.VerifyWebhook(payload, signature)
	if err != nil {
		s.Logger.Errorw("rejected webhook signature", "error", err)
		if ierr.IsSignatureInvalid(err) {
			return nil, err
		}
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrSignatureInvalid)
	}
	if event.TransactionID == "" {
		return nil, ierr.NewError("webhook event has no transaction id").
			WithHint("Webhook event does not reference a payment").
			WithReportableDetails(map[string]any{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).
			Mark(ierr.ErrValidation)
	}
	return event, nil
}

// settleVerified applies an authenticated confirmation, retrying the whole unit
// from the payment lookup while the failure is a storage error.
func (s *paymentService) settleVerified(ctx context.Context, transactionID string) error {
	settledKey := cache.GenerateKey(cache.PrefixSettledTransaction, transactionID)
	if _, ok := s.Cache.Get(ctx, settledKey); ok {
		s.Logger.Debugw("transaction already settled", "transaction_id", transactionID)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.Config.Settlement.InitialInterval
	b.MaxElapsedTime = s.Config.Settlement.MaxElapsedTime

	var inv *invoice.Invoice
	operation := func() error {
		var err error
		inv, err = s.settleOnce(ctx, transactionID)
		if err == nil || ierr.IsDatabase(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		s.Logger.Warnw("retrying settlement",
			"transaction_id", transactionID,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, s.Config.Settlement.MaxRetries), ctx),
		notify,
	)
	if err != nil {
		s.Logger.Errorw("failed to settle payment",
			"transaction_id", transactionID,
			"error", err,
		)
		return err
	}

	s.Cache.Set(ctx, settledKey, true, s.Config.Cache.WebhookTTL)

	// nil when this delivery found the payment already completed
	if inv != nil {
		ctx = types.SetTenantID(ctx, inv.TenantID)
		s.cancelSupersededIntents(ctx, inv.ID, transactionID)
		s.publishEvent(ctx, types.EventInvoicePaid, inv)
	}
	return nil
}

// cancelSupersededIntents closes the attempts still open on an invoice that
// another attempt has paid. An intent the processor refuses to cancel stays
// pending locally and is reported for reconciliation.
func (s *paymentService) cancelSupersededIntents(ctx context.Context, invoiceID, settledTransactionID string) {
	pending, err := s.PaymentRepo.List(ctx, &types.PaymentFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		InvoiceID:     invoiceID,
		PaymentStatus: []types.PaymentStatus{types.PaymentStatusPending},
	})
	if err != nil {
		s.Logger.Errorw("failed to list superseded payments",
			"invoice_id", invoiceID,
			"error", err,
		)
		return
	}

	for _, p := range pending {
		if p.TransactionID == settledTransactionID {
			continue
		}

		if err := s.PaymentGateway.CancelPaymentIntent(ctx, p.TransactionID); err != nil {
			s.Logger.Errorw("failed to cancel superseded payment intent",
				"invoice_id", invoiceID,
				"payment_id", p.ID,
				"transaction_id", p.TransactionID,
				"error", err,
			)
			s.Sentry.CaptureException(err)
			continue
		}

		_, err := s.PaymentRepo.UpdateStatus(ctx, &payment.StatusUpdate{
			PaymentID: p.ID,
			From:      types.PaymentStatusPending,
			To:        types.PaymentStatusCanceled,
			At:        time.Now().UTC(),
		})
		if err != nil {
			s.Logger.Errorw("failed to mark superseded payment canceled",
				"payment_id", p.ID,
				"error", err,
			)
			continue
		}

		s.Logger.Infow("canceled superseded payment",
			"invoice_id", invoiceID,
			"payment_id", p.ID,
			"transaction_id", p.TransactionID,
		)
	}
}

// settleOnce completes the payment, marks the invoice PAID and books revenue in
// one unit. It returns a nil invoice when the payment was already completed.
func (s *paymentService) settleOnce(ctx context.Context, transactionID string) (*invoice.Invoice, error) {
	p, err := s.PaymentRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("No payment exists for this transaction").
				WithReportableDetails(map[string]any{
					"transaction_id": transactionID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	// processor notifications carry no tenant, the payment does
	ctx = types.SetTenantID(ctx, p.TenantID)

	if p.IsCompleted() {
		s.Logger.Infow("ignoring redelivered settlement",
			"payment_id", p.ID,
			"transaction_id", transactionID,
		)
		return nil, nil
	}
	if p.PaymentStatus == types.PaymentStatusCanceled {
		return nil, ierr.NewError("payment was canceled").
			WithHint("A canceled payment cannot be settled").
			WithReportableDetails(map[string]any{
				"payment_id":     p.ID,
				"transaction_id": transactionID,
				"payment_status": p.PaymentStatus,
			}).
			Mark(ierr.ErrInvalidState)
	}

	now := time.Now().UTC()
	invoiceService := NewInvoiceService(s.ServiceParams)
	revenueService := newRevenueService(s.ServiceParams)

	var inv *invoice.Invoice
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		ok, err := s.PaymentRepo.UpdateStatus(ctx, &payment.StatusUpdate{
			PaymentID: p.ID,
			From:      p.PaymentStatus,
			To:        types.PaymentStatusCompleted,
			At:        now,
		})
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.PaymentRepo.Get(ctx, p.ID)
			if err != nil {
				return err
			}
			if current.IsCompleted() {
				return errAlreadyApplied
			}
			return ierr.NewError("payment changed during settlement").
				WithHint("Payment is no longer awaiting settlement").
				WithReportableDetails(map[string]any{
					"payment_id":     p.ID,
					"payment_status": current.PaymentStatus,
				}).
				Mark(ierr.ErrInvalidState)
		}

		inv, err = invoiceService.Transition(ctx, &invoice.Transition{
			InvoiceID: p.InvoiceID,
			From:      types.InvoiceStatusPending,
			To:        types.InvoiceStatusPaid,
			At:        now,
		})
		if err != nil {
			return err
		}

		month, _ := inv.RevenueMonth()
		_, err = revenueService.apply(ctx, inv.ProviderID, month, inv.TotalAmount, s.Config.Billing.CommissionRate)
		return err
	})
	if err != nil {
		if errors.Is(err, errAlreadyApplied) {
			return nil, nil
		}
		return nil, err
	}

	s.Logger.Infow("settled payment",
		"payment_id", p.ID,
		"transaction_id", transactionID,
		"invoice_id", inv.ID,
		"amount", inv.TotalAmount,
	)
	s.Sentry.AddBreadcrumb("payment", "settled payment", map[string]interface{}{
		"payment_id": p.ID,
		"invoice_id": inv.ID,
	})
	return inv, nil
}

// markFailed records a failed attempt. The invoice stays PENDING so the client
// can initiate a new attempt.
func (s *paymentService) markFailed(ctx context.Context, transactionID, reason string) error {
	p, err := s.PaymentRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	ctx = types.SetTenantID(ctx, p.TenantID)

	if !p.IsPending() {
		s.Logger.Debugw("ignoring failure for settled payment",
			"payment_id", p.ID,
			"payment_status", p.PaymentStatus,
		)
		return nil
	}

	update := &payment.StatusUpdate{
		PaymentID:    p.ID,
		From:         types.PaymentStatusPending,
		To:           types.PaymentStatusFailed,
		At:           time.Now().UTC(),
		ErrorMessage: lo.EmptyableToPtr(reason),
	}
	ok, err := s.PaymentRepo.UpdateStatus(ctx, update)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	p.Apply(update)
	s.Logger.Infow("payment failed",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"reason", reason,
	)
	s.publishEvent(ctx, types.EventPaymentFailed, p)
	return nil
}

func (s *paymentService) Cancel(ctx context.Context, invoiceID string) error {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return err
	}

	payments, err := s.PaymentRepo.List(ctx, &types.PaymentFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		InvoiceID:   inv.ID,
		PaymentStatus: []types.PaymentStatus{
			types.PaymentStatusPending,
			types.PaymentStatusCompleted,
		},
	})
	if err != nil {
		return err
	}

	if lo.SomeBy(payments, func(p *payment.Payment) bool { return p.IsCompleted() }) ||
		inv.InvoiceStatus == types.InvoiceStatusPaid ||
		inv.InvoiceStatus == types.InvoiceStatusRefunded {
		return alreadySettledError(inv)
	}

	pending := lo.Filter(payments, func(p *payment.Payment, _ int) bool { return p.IsPending() })

	// processor first, outside any unit of work
	for _, p := range pending {
		if err := s.PaymentGateway.CancelPaymentIntent(ctx, p.TransactionID); err != nil {
			s.Logger.Errorw("failed to cancel payment intent",
				"invoice_id", inv.ID,
				"transaction_id", p.TransactionID,
				"error", err,
			)
			return err
		}
	}

	now := time.Now().UTC()
	invoiceService := NewInvoiceService(s.ServiceParams)
	promotionService := NewPromotionService(s.ServiceParams)

	var canceled *invoice.Invoice
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		for _, p := range pending {
			ok, err := s.PaymentRepo.UpdateStatus(ctx, &payment.StatusUpdate{
				PaymentID: p.ID,
				From:      types.PaymentStatusPending,
				To:        types.PaymentStatusCanceled,
				At:        now,
			})
			if err != nil {
				return err
			}
			if !ok {
				current, err := s.PaymentRepo.Get(ctx, p.ID)
				if err != nil {
					return err
				}
				if current.IsCompleted() {
					return alreadySettledError(inv)
				}
			}
		}

		canceled, err = invoiceService.Transition(ctx, &invoice.Transition{
			InvoiceID:    inv.ID,
			From:         types.InvoiceStatusPending,
			To:           types.InvoiceStatusCanceled,
			At:           now,
			CancelReason: lo.ToPtr(types.InvoiceCancelReasonCanceledByClient),
		})
		if err != nil {
			return err
		}

		if canceled.PromotionUsageID != nil {
			return promotionService.ReleaseUsage(ctx, []string{*canceled.PromotionUsageID})
		}
		return nil
	})
	if err != nil {
		if ierr.IsInvalidTransition(err) {
			// a settlement may have landed between the checks and the transition
			if current, getErr := s.InvoiceRepo.Get(ctx, inv.ID); getErr == nil &&
				current.InvoiceStatus == types.InvoiceStatusPaid {
				return alreadySettledError(current)
			}
		}
		return err
	}

	s.Logger.Infow("canceled invoice",
		"invoice_id", canceled.ID,
		"canceled_intents", len(pending),
	)
	s.publishEvent(ctx, types.EventInvoiceCanceled, canceled)
	return nil
}

func invoiceNotPayableError(inv *invoice.Invoice) error {
	return ierr.NewError("invoice is not payable").
		WithHintf("Invoice is %s and cannot be paid", inv.InvoiceStatus).
		WithReportableDetails(map[string]any{
			"invoice_id":     inv.ID,
			"invoice_status": inv.InvoiceStatus,
		}).
		Mark(ierr.ErrInvalidState)
}

func paymentInProgressError(invoiceID string) error {
	return ierr.NewError("payment already in progress").
		WithHint("A payment for this invoice is already in progress").
		WithReportableDetails(map[string]any{
			"invoice_id": invoiceID,
		}).
		Mark(ierr.ErrInvalidState)
}

func alreadySettledError(inv *invoice.Invoice) error {
	return ierr.NewError("invoice already settled").
		WithHint("This invoice has already been paid").
		WithReportableDetails(map[string]any{
			"invoice_id":     inv.ID,
			"invoice_status": inv.InvoiceStatus,
		}).
		Mark(ierr.ErrAlreadySettled)
}
