package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/integration"
	"github.com/flexprice/bookingpay/internal/types"
)

// FakeWebhookSecret signs payloads accepted by FakePaymentGateway
const FakeWebhookSecret = "whsec_fake"

var _ integration.PaymentGateway = (*FakePaymentGateway)(nil)

// FakePaymentGateway is an in-memory payment processor. Intents created with the
// same idempotency key return the same intent, as the real processor does.
type FakePaymentGateway struct {
	mu sync.Mutex

	intents      map[string]*integration.PaymentIntent
	intentsByKey map[string]string
	refunds      map[string]*integration.Refund
	refundsByKey map[string]string
	canceled     map[string]bool
	refundCalls  int
	intentCalls  int
	cancelCalls  int

	// CreateErr, CancelErr and RefundErr make the matching call fail
	CreateErr error
	CancelErr error
	RefundErr error
}

// NewFakePaymentGateway creates an empty fake processor
func NewFakePaymentGateway() *FakePaymentGateway {
	return &FakePaymentGateway{
		intents:      make(map[string]*integration.PaymentIntent),
		intentsByKey: make(map[string]string),
		refunds:      make(map[string]*integration.Refund),
		refundsByKey: make(map[string]string),
		canceled:     make(map[string]bool),
	}
}

func (g *FakePaymentGateway) CreatePaymentIntent(ctx context.Context, req *integration.CreatePaymentIntentRequest) (*integration.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentCalls++

	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	if id, ok := g.intentsByKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		c := *g.intents[id]
		return &c, nil
	}

	pi := &integration.PaymentIntent{
		TransactionID: types.GenerateUUIDWithPrefix("pi"),
		ClientSecret:  types.GenerateUUIDWithPrefix("secret"),
		Status:        "requires_payment_method",
		Amount:        req.Amount,
		Currency:      req.Currency,
		Metadata:      req.Metadata,
	}
	g.intents[pi.TransactionID] = pi
	if req.IdempotencyKey != "" {
		g.intentsByKey[req.IdempotencyKey] = pi.TransactionID
	}

	c := *pi
	return &c, nil
}

// CancelPaymentIntent accepts intents that are already canceled, as the
// gateway contract requires.
func (g *FakePaymentGateway) CancelPaymentIntent(ctx context.Context, transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelCalls++

	if g.CancelErr != nil {
		return g.CancelErr
	}
	if _, ok := g.intents[transactionID]; !ok {
		return ierr.NewError("payment intent not found").Mark(ierr.ErrNotFound)
	}
	g.canceled[transactionID] = true
	g.intents[transactionID].Status = "canceled"
	return nil
}

func (g *FakePaymentGateway) GetPaymentIntent(ctx context.Context, transactionID string) (*integration.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pi, ok := g.intents[transactionID]
	if !ok {
		return nil, ierr.NewError("payment intent not found").Mark(ierr.ErrNotFound)
	}
	c := *pi
	return &c, nil
}

// fakeEvent is the wire format of fake webhook payloads
type fakeEvent struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	TransactionID  string `json:"transaction_id"`
	FailureMessage string `json:"failure_message,omitempty"`
}

func (g *FakePaymentGateway) VerifyWebhook(payload []byte, signature string) (*integration.WebhookEvent, error) {
	if !hmac.Equal([]byte(signature), []byte(SignFakePayload(payload))) {
		return nil, ierr.NewError("webhook signature mismatch").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrSignatureInvalid)
	}

	var e fakeEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return &integration.WebhookEvent{
		ID:             e.ID,
		Type:           e.Type,
		TransactionID:  e.TransactionID,
		FailureMessage: e.FailureMessage,
	}, nil
}

func (g *FakePaymentGateway) CreateRefund(ctx context.Context, req *integration.CreateRefundRequest) (*integration.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++

	if g.RefundErr != nil {
		return nil, g.RefundErr
	}
	if id, ok := g.refundsByKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		c := *g.refunds[id]
		return &c, nil
	}

	r := &integration.Refund{
		RefundID: types.GenerateUUIDWithPrefix("re"),
		Status:   "succeeded",
	}
	g.refunds[r.RefundID] = r
	if req.IdempotencyKey != "" {
		g.refundsByKey[req.IdempotencyKey] = r.RefundID
	}
	c := *r
	return &c, nil
}

// IsCanceled reports whether the intent was canceled
func (g *FakePaymentGateway) IsCanceled(transactionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canceled[transactionID]
}

// RefundCount returns the number of distinct refunds issued
func (g *FakePaymentGateway) RefundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

// IntentCount returns the number of distinct intents created
func (g *FakePaymentGateway) IntentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.intents)
}

// SignFakePayload returns the signature FakePaymentGateway accepts for payload
func SignFakePayload(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(FakeWebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// NewFakeWebhook builds a signed payload for eventType on transactionID
func NewFakeWebhook(eventType, transactionID, failureMessage string) ([]byte, string) {
	payload, _ := json.Marshal(fakeEvent{
		ID:             types.GenerateUUIDWithPrefix("evt"),
		Type:           eventType,
		TransactionID:  transactionID,
		FailureMessage: failureMessage,
	})
	return payload, SignFakePayload(payload)
}

// RefundCalls returns how many times CreateRefund was called, retries included
func (g *FakePaymentGateway) RefundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refundCalls
}

// IntentCalls returns how many times CreatePaymentIntent was called
func (g *FakePaymentGateway) IntentCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.intentCalls
}

// CancelCalls returns how many times CancelPaymentIntent was called, retries included
func (g *FakePaymentGateway) CancelCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelCalls
}
