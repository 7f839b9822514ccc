package types

import (
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/samber/lo"
)

// PaymentStatus is the processor-defined state of one payment attempt
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusCanceled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHint("Please provide a valid payment status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentFilter represents the filter options for listing payments
type PaymentFilter struct {
	*QueryFilter

	PaymentIDs     []string        `json:"payment_ids,omitempty" form:"payment_ids"`
	InvoiceID      string          `json:"invoice_id,omitempty" form:"invoice_id"`
	PaymentStatus  []PaymentStatus `json:"payment_status,omitempty" form:"payment_status"`
	TransactionIDs []string        `json:"transaction_ids,omitempty" form:"transaction_ids"`
}

// NewNoLimitPaymentFilter creates a payment filter without pagination
func NewNoLimitPaymentFilter() *PaymentFilter {
	return &PaymentFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *PaymentFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	for _, status := range f.PaymentStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	return nil
}
