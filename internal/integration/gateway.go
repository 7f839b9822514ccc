package integration

import (
	"context"

	"github.com/shopspring/decimal"
)

// processor event types routed by the payment service
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// PaymentGateway is the contract the billing core needs from a payment processor.
// Every call that can leave the processor in an unknown state returns an error
// marked ierr.ErrIndeterminate.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req *CreatePaymentIntentRequest) (*PaymentIntent, error)
	// CancelPaymentIntent succeeds when the intent is already canceled
	CancelPaymentIntent(ctx context.Context, transactionID string) error
	GetPaymentIntent(ctx context.Context, transactionID string) (*PaymentIntent, error)
	// VerifyWebhook checks the signature and returns the parsed event, or ErrSignatureInvalid
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
	CreateRefund(ctx context.Context, req *CreateRefundRequest) (*Refund, error)
}

// CreatePaymentIntentRequest asks the processor to collect Amount minor units
type CreatePaymentIntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentIntent is the processor side handle of a payment
type PaymentIntent struct {
	TransactionID string
	ClientSecret  string
	Status        string
	Amount        decimal.Decimal
	Currency      string
	Metadata      map[string]string
}

// WebhookEvent is a verified processor notification
type WebhookEvent struct {
	ID            string
	Type          string
	TransactionID string
	// FailureMessage is set for failed payment events
	FailureMessage string
}

// CreateRefundRequest returns Amount minor units of the payment identified by TransactionID
type CreateRefundRequest struct {
	TransactionID  string
	Amount         decimal.Decimal
	IdempotencyKey string
	Metadata       map[string]string
}

// Refund is the processor confirmation of an issued refund
type Refund struct {
	RefundID string
	Status   string
}
