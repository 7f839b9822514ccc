package stripe

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/bookingpay/internal/config"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/integration"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"golang.org/x/time/rate"
)

// Gateway implements integration.PaymentGateway on top of the Stripe API
type Gateway struct {
	client        *stripe.Client
	webhookSecret string
	config        *config.StripeConfig
	limiter       *rate.Limiter
	logger        *logger.Logger
}

// NewGateway creates a Stripe backed payment gateway
func NewGateway(cfg *config.Configuration, logger *logger.Logger) integration.PaymentGateway {
	return newGateway(cfg, stripe.NewClient(cfg.Stripe.SecretKey, nil), logger)
}

func newGateway(cfg *config.Configuration, client *stripe.Client, logger *logger.Logger) *Gateway {
	limit := rate.Inf
	if cfg.Stripe.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Stripe.RequestsPerSecond)
	}

	return &Gateway{
		client:        client,
		webhookSecret: cfg.Stripe.WebhookSecret,
		config:        &cfg.Stripe,
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logger,
	}
}

// call bounds one processor round trip by the configured timeout and rate limit
func (g *Gateway) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return ierr.WithError(err).
			WithHintf("Payment processor is busy, %s was not sent", op).
			Mark(ierr.ErrIndeterminate)
	}

	if err := fn(ctx); err != nil {
		g.logger.Errorw("stripe call failed",
			"operation", op,
			"error", err,
		)
		return classifyError(err, op)
	}
	return nil
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, req *integration.CreatePaymentIntentRequest) (*integration.PaymentIntent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.Amount.IntPart()),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: req.Metadata,
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	var pi *stripe.PaymentIntent
	err := g.call(ctx, "create_payment_intent", func(ctx context.Context) error {
		var err error
		pi, err = g.client.V1PaymentIntents.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.logger.Infow("created stripe payment intent",
		"payment_intent_id", pi.ID,
		"amount", pi.Amount,
		"currency", pi.Currency,
	)

	return toPaymentIntent(pi), nil
}

// CancelPaymentIntent succeeds for an intent that is already canceled, so a
// cancel retried after a failed local update still completes.
func (g *Gateway) CancelPaymentIntent(ctx context.Context, transactionID string) error {
	err := g.call(ctx, "cancel_payment_intent", func(ctx context.Context) error {
		_, err := g.client.V1PaymentIntents.Cancel(ctx, transactionID, &stripe.PaymentIntentCancelParams{})
		return err
	})
	if err == nil || !hasErrorCode(err, stripe.ErrorCodePaymentIntentUnexpectedState) {
		return err
	}

	pi, getErr := g.GetPaymentIntent(ctx, transactionID)
	if getErr != nil {
		return err
	}
	if pi.Status != string(stripe.PaymentIntentStatusCanceled) {
		return err
	}

	g.logger.Infow("stripe payment intent already canceled",
		"payment_intent_id", transactionID,
	)
	return nil
}

func (g *Gateway) GetPaymentIntent(ctx context.Context, transactionID string) (*integration.PaymentIntent, error) {
	var pi *stripe.PaymentIntent
	err := g.call(ctx, "get_payment_intent", func(ctx context.Context) error {
		var err error
		pi, err = g.client.V1PaymentIntents.Retrieve(ctx, transactionID, &stripe.PaymentIntentRetrieveParams{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return toPaymentIntent(pi), nil
}

func (g *Gateway) VerifyWebhook(payload []byte, signature string) (*integration.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		g.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrSignatureInvalid)
	}

	out := &integration.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch out.Type {
	case integration.EventPaymentIntentSucceeded, integration.EventPaymentIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to parse payment intent from webhook").
				WithReportableDetails(map[string]any{
					"event_id":   event.ID,
					"event_type": event.Type,
				}).
				Mark(ierr.ErrValidation)
		}
		out.TransactionID = pi.ID
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}
	}

	return out, nil
}

func (g *Gateway) CreateRefund(ctx context.Context, req *integration.CreateRefundRequest) (*integration.Refund, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.TransactionID),
		Amount:        stripe.Int64(req.Amount.IntPart()),
		Metadata:      req.Metadata,
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	var r *stripe.Refund
	err := g.call(ctx, "create_refund", func(ctx context.Context) error {
		var err error
		r, err = g.client.V1Refunds.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
		return nil, ierr.NewError("refund was not accepted by the processor").
			WithHint("The payment processor declined the refund").
			WithReportableDetails(map[string]any{
				"refund_id":      r.ID,
				"transaction_id": req.TransactionID,
				"status":         r.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	g.logger.Infow("created stripe refund",
		"refund_id", r.ID,
		"payment_intent_id", req.TransactionID,
		"status", r.Status,
	)

	return &integration.Refund{
		RefundID: r.ID,
		Status:   string(r.Status),
	}, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *integration.PaymentIntent {
	return &integration.PaymentIntent{
		TransactionID: pi.ID,
		ClientSecret:  pi.ClientSecret,
		Status:        string(pi.Status),
		Amount:        decimal.NewFromInt(pi.Amount),
		Currency:      string(pi.Currency),
		Metadata:      pi.Metadata,
	}
}

// classifyError separates outcomes the processor may or may not have applied
// from definite rejections.
func classifyError(err error, op string) error {
	details := map[string]any{"operation": op}

	if isIndeterminate(err) {
		return ierr.WithError(err).
			WithHint("Payment processor did not confirm the outcome, retry later").
			WithReportableDetails(details).
			Mark(ierr.ErrIndeterminate)
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		details["stripe_error_code"] = stripeErr.Code
		details["stripe_error_type"] = stripeErr.Type
		return ierr.WithError(err).
			WithHintf("Payment processor rejected the request: %s", stripeErr.Msg).
			WithReportableDetails(details).
			Mark(ierr.ErrInvalidOperation)
	}

	return ierr.WithError(err).
		WithHint("Payment processor request failed").
		WithReportableDetails(details).
		Mark(ierr.ErrSystem)
}

func hasErrorCode(err error, code stripe.ErrorCode) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == code
}

func isIndeterminate(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
			stripeErr.HTTPStatusCode == http.StatusConflict {
			return true
		}
		switch stripeErr.Code {
		case stripe.ErrorCodeRateLimit, stripe.ErrorCodeLockTimeout:
			return true
		}
		return stripeErr.Type == stripe.ErrorTypeAPI
	}
	return false
}
