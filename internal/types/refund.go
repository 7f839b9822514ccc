package types

import (
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/samber/lo"
)

// RefundStatus is the adjudication state of a refund request
type RefundStatus string

const (
	RefundStatusNone     RefundStatus = "NONE"
	RefundStatusPending  RefundStatus = "PENDING"
	RefundStatusApproved RefundStatus = "APPROVED"
	RefundStatusRejected RefundStatus = "REJECTED"
)

func (s RefundStatus) String() string {
	return string(s)
}

func (s RefundStatus) Validate() error {
	allowed := []RefundStatus{
		RefundStatusNone,
		RefundStatusPending,
		RefundStatusApproved,
		RefundStatusRejected,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid refund status").
			WithHint("Please provide a valid refund status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RefundRequestFilter represents the filter options for listing refund requests
type RefundRequestFilter struct {
	*QueryFilter

	InvoiceID    string         `json:"invoice_id,omitempty" form:"invoice_id"`
	ClientID     string         `json:"client_id,omitempty" form:"client_id"`
	RefundStatus []RefundStatus `json:"refund_status,omitempty" form:"refund_status"`
}

// NewRefundRequestFilter creates a refund request filter with default pagination
func NewRefundRequestFilter() *RefundRequestFilter {
	return &RefundRequestFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func (f *RefundRequestFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	for _, status := range f.RefundStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	return nil
}
