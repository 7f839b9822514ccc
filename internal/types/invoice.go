package types

import (
	"time"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusPending is the state of an invoice awaiting payment
	InvoiceStatusPending InvoiceStatus = "PENDING"
	// InvoiceStatusPaid is reached through a settled payment
	InvoiceStatusPaid InvoiceStatus = "PAID"
	// InvoiceStatusCanceled is reached through expiry or explicit cancellation
	InvoiceStatusCanceled InvoiceStatus = "CANCELED"
	// InvoiceStatusRefunded is reached through an approved refund request
	InvoiceStatusRefunded InvoiceStatus = "REFUNDED"
)

// invoiceTransitions is the complete set of legal edges, built once and never mutated
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusPending: {InvoiceStatusPaid, InvoiceStatusCanceled},
	InvoiceStatusPaid:    {InvoiceStatusRefunded},
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPaid,
		InvoiceStatusCanceled,
		InvoiceStatusRefunded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanTransitionTo reports whether moving from s to next is a legal edge
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return lo.Contains(invoiceTransitions[s], next)
}

// IsTerminal reports whether no edge leaves s
func (s InvoiceStatus) IsTerminal() bool {
	return len(invoiceTransitions[s]) == 0
}

// InvoiceCancelReason records why an invoice left PENDING without being paid
type InvoiceCancelReason string

const (
	InvoiceCancelReasonExpired          InvoiceCancelReason = "EXPIRED"
	InvoiceCancelReasonCanceledByClient InvoiceCancelReason = "CANCELED_BY_CLIENT"
)

func (r InvoiceCancelReason) String() string {
	return string(r)
}

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs     []string        `json:"invoice_ids,omitempty" form:"invoice_ids"`
	ProviderID     string          `json:"provider_id,omitempty" form:"provider_id"`
	ClientID       string          `json:"client_id,omitempty" form:"client_id"`
	AppointmentIDs []string        `json:"appointment_ids,omitempty" form:"appointment_ids"`
	InvoiceStatus  []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
	// DueBefore matches invoices whose due date is strictly before the given time
	DueBefore *time.Time `json:"due_before,omitempty" form:"due_before"`
}

// NewInvoiceFilter creates a new invoice filter with default options
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitInvoiceFilter creates a new invoice filter without pagination
func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the invoice filter
func (f InvoiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}

	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}

	for _, status := range f.InvoiceStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// GetLimit implements BaseFilter interface
func (f *InvoiceFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_LIMIT
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *InvoiceFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

// GetSort implements BaseFilter interface
func (f *InvoiceFilter) GetSort() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_SORT
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *InvoiceFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_ORDER
	}
	return f.QueryFilter.GetOrder()
}

// IsUnlimited implements BaseFilter interface
func (f *InvoiceFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
