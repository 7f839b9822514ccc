package dto

import (
	"time"

	"github.com/flexprice/bookingpay/internal/domain/payment"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

// PaymentIntentResponse is the handle a client uses to complete payment with the processor
type PaymentIntentResponse struct {
	PaymentID     string              `json:"payment_id"`
	InvoiceID     string              `json:"invoice_id"`
	TransactionID string              `json:"transaction_id"`
	ClientSecret  string              `json:"client_secret"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	PaymentStatus types.PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NewPaymentIntentResponse builds the handle from a freshly created payment
func NewPaymentIntentResponse(p *payment.Payment) *PaymentIntentResponse {
	return &PaymentIntentResponse{
		PaymentID:     p.ID,
		InvoiceID:     p.InvoiceID,
		TransactionID: p.TransactionID,
		ClientSecret:  p.ClientSecret,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentStatus: p.PaymentStatus,
		CreatedAt:     p.CreatedAt,
	}
}

// SettlePaymentRequest carries a signed processor notification for one transaction
type SettlePaymentRequest struct {
	// TransactionID, when set, must match the transaction named by the payload
	TransactionID string `json:"transaction_id"`
	Payload       []byte `json:"-"`
	Signature     string `json:"-"`
}

func (r *SettlePaymentRequest) Validate() error {
	if len(r.Payload) == 0 || r.Signature == "" {
		return ierr.NewError("missing webhook payload or signature").
			WithHint("Webhook payload and signature are required").
			Mark(ierr.ErrSignatureInvalid)
	}
	return nil
}
