package types

import (
	"encoding/json"
	"time"
)

// DomainEvent is published after a billing unit of work commits
type DomainEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	TenantID  string          `json:"tenant_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// invoice event names
const (
	EventInvoiceCreated  = "invoice.created"
	EventInvoicePaid     = "invoice.paid"
	EventInvoiceCanceled = "invoice.canceled"
	EventInvoiceRefunded = "invoice.refunded"
)

// payment event names
const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentFailed    = "payment.failed"
)

// refund event names
const (
	EventRefundRequested = "refund.requested"
	EventRefundApproved  = "refund.approved"
	EventRefundRejected  = "refund.rejected"
)

// revenue event names
const (
	EventRevenueInconsistent = "revenue.inconsistent"
)
