package dto

import (
	"context"
	"strings"

	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/domain/refund"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/flexprice/bookingpay/internal/validator"
)

// FileRefundRequest represents a client asking for a refund of a paid invoice
type FileRefundRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
	ClientID  string `json:"client_id" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=2000"`
}

func (r *FileRefundRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToRefundRequest builds a PENDING request for the full invoice total
func (r *FileRefundRequest) ToRefundRequest(ctx context.Context, inv *invoice.Invoice) *refund.Request {
	return &refund.Request{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND_REQUEST),
		InvoiceID:    inv.ID,
		ClientID:     r.ClientID,
		RefundReason: strings.TrimSpace(r.Reason),
		RefundStatus: types.RefundStatusPending,
		Amount:       inv.TotalAmount,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
}

// RejectRefundRequest carries the adjudicator's reason for a rejection
type RejectRefundRequest struct {
	AdjudicatorUserID string `json:"adjudicator_user_id" validate:"required"`
	Reason            string `json:"reason" validate:"required,max=2000"`
}

func (r *RejectRefundRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// RefundRequestResponse represents a refund request in API responses
type RefundRequestResponse struct {
	*refund.Request
}

func NewRefundRequestResponse(r *refund.Request) *RefundRequestResponse {
	return &RefundRequestResponse{Request: r}
}
