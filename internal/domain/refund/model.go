package refund

import (
	"time"

	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

// Request is a client submitted refund request against a paid invoice
type Request struct {
	ID                string             `json:"id" db:"id"`
	InvoiceID         string             `json:"invoice_id" db:"invoice_id"`
	ClientID          string             `json:"client_id" db:"client_id"`
	AdjudicatorUserID *string            `json:"adjudicator_user_id,omitempty" db:"adjudicator_user_id"`
	RefundReason      string             `json:"refund_reason" db:"refund_reason"`
	RefundStatus      types.RefundStatus `json:"refund_status" db:"refund_status"`
	RejectReason      *string            `json:"reject_reason,omitempty" db:"reject_reason"`
	// Amount is the invoice total at filing time, in minor units
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	ProcessorRefundID *string         `json:"processor_refund_id,omitempty" db:"processor_refund_id"`
	AdjudicatedAt     *time.Time      `json:"adjudicated_at,omitempty" db:"adjudicated_at"`

	types.BaseModel
}

// Adjudication moves a PENDING request to APPROVED or REJECTED
type Adjudication struct {
	RequestID         string
	To                types.RefundStatus
	AdjudicatorUserID string
	RejectReason      *string
	ProcessorRefundID *string
	At                time.Time
}

// Apply mutates the in-memory copy the same way a successful Adjudication
// mutates the stored row.
func (r *Request) Apply(a *Adjudication) {
	r.RefundStatus = a.To
	r.AdjudicatorUserID = &a.AdjudicatorUserID
	r.RejectReason = a.RejectReason
	r.ProcessorRefundID = a.ProcessorRefundID
	at := a.At
	r.AdjudicatedAt = &at
	r.UpdatedAt = a.At
	r.UpdatedBy = a.AdjudicatorUserID
}

func (r *Request) IsPending() bool {
	return r.RefundStatus == types.RefundStatusPending
}
