package invoice

import (
	"time"

	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is the billable record for one appointment
type Invoice struct {
	ID            string `json:"id" db:"id"`
	InvoiceNumber string `json:"invoice_number" db:"invoice_number"`
	AppointmentID string `json:"appointment_id" db:"appointment_id"`
	ProviderID    string `json:"provider_id" db:"provider_id"`
	ClientID      string `json:"client_id" db:"client_id"`
	Currency      string `json:"currency" db:"currency"`

	// amounts are in currency minor units
	BaseAmount     decimal.Decimal `json:"base_amount" db:"base_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`

	InvoiceStatus    types.InvoiceStatus        `json:"invoice_status" db:"invoice_status"`
	PromotionID      *string                    `json:"promotion_id,omitempty" db:"promotion_id"`
	PromotionUsageID *string                    `json:"promotion_usage_id,omitempty" db:"promotion_usage_id"`
	IssuedDate       time.Time                  `json:"issued_date" db:"issued_date"`
	DueDate          *time.Time                 `json:"due_date,omitempty" db:"due_date"`
	PaidAt           *time.Time                 `json:"paid_at,omitempty" db:"paid_at"`
	CanceledAt       *time.Time                 `json:"canceled_at,omitempty" db:"canceled_at"`
	RefundedAt       *time.Time                 `json:"refunded_at,omitempty" db:"refunded_at"`
	CancelReason     *types.InvoiceCancelReason `json:"cancel_reason,omitempty" db:"cancel_reason"`
	Version          int                        `json:"version" db:"version"`
	Metadata         types.Metadata             `json:"metadata,omitempty" db:"metadata"`

	types.BaseModel
}

// Transition is a guarded status change: it applies only while the stored
// status still equals From.
type Transition struct {
	InvoiceID    string
	From         types.InvoiceStatus
	To           types.InvoiceStatus
	At           time.Time
	CancelReason *types.InvoiceCancelReason
	UpdatedBy    string
}

// ComputeTotal returns base minus discount floored at zero
func ComputeTotal(base, discount decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	total := base.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// IsOverdue reports whether a pending invoice has passed its due date
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.InvoiceStatus == types.InvoiceStatusPending &&
		i.DueDate != nil &&
		i.DueDate.Before(now)
}

// RevenueMonth is the revenue bucket the invoice was booked into
func (i *Invoice) RevenueMonth() (time.Time, bool) {
	if i.PaidAt == nil {
		return time.Time{}, false
	}
	return types.MonthStart(*i.PaidAt), true
}

// Apply mutates the in-memory copy the same way a successful Transition
// mutates the stored row.
func (i *Invoice) Apply(t *Transition) {
	i.InvoiceStatus = t.To
	i.Version++
	i.UpdatedAt = t.At
	if t.UpdatedBy != "" {
		i.UpdatedBy = t.UpdatedBy
	}
	at := t.At
	switch t.To {
	case types.InvoiceStatusPaid:
		i.PaidAt = &at
	case types.InvoiceStatusCanceled:
		i.CanceledAt = &at
		i.CancelReason = t.CancelReason
	case types.InvoiceStatusRefunded:
		i.RefundedAt = &at
	}
}
