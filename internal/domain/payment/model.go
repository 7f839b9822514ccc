package payment

import (
	"time"

	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is one processor payment attempt against an invoice
type Payment struct {
	ID             string              `json:"id" db:"id"`
	InvoiceID      string              `json:"invoice_id" db:"invoice_id"`
	TransactionID  string              `json:"transaction_id" db:"transaction_id"`
	IdempotencyKey string              `json:"idempotency_key" db:"idempotency_key"`
	Amount         decimal.Decimal     `json:"amount" db:"amount"`
	Currency       string              `json:"currency" db:"currency"`
	PaymentStatus  types.PaymentStatus `json:"payment_status" db:"payment_status"`
	SucceededAt    *time.Time          `json:"succeeded_at,omitempty" db:"succeeded_at"`
	FailedAt       *time.Time          `json:"failed_at,omitempty" db:"failed_at"`
	CanceledAt     *time.Time          `json:"canceled_at,omitempty" db:"canceled_at"`
	ErrorMessage   *string             `json:"error_message,omitempty" db:"error_message"`
	Metadata       types.Metadata      `json:"metadata,omitempty" db:"metadata"`

	// ClientSecret is handed back to the caller once and never stored
	ClientSecret string `json:"-" db:"-"`

	types.BaseModel
}

// StatusUpdate is a guarded payment status change
type StatusUpdate struct {
	PaymentID    string
	From         types.PaymentStatus
	To           types.PaymentStatus
	At           time.Time
	ErrorMessage *string
}

// Apply mutates the in-memory copy the same way a successful StatusUpdate
// mutates the stored row.
func (p *Payment) Apply(u *StatusUpdate) {
	p.PaymentStatus = u.To
	p.UpdatedAt = u.At
	at := u.At
	switch u.To {
	case types.PaymentStatusCompleted:
		p.SucceededAt = &at
	case types.PaymentStatusFailed:
		p.FailedAt = &at
		p.ErrorMessage = u.ErrorMessage
	case types.PaymentStatusCanceled:
		p.CanceledAt = &at
	}
}

func (p *Payment) IsPending() bool {
	return p.PaymentStatus == types.PaymentStatusPending
}

func (p *Payment) IsCompleted() bool {
	return p.PaymentStatus == types.PaymentStatusCompleted
}
