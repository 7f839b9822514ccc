package dto

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/flexprice/bookingpay/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest represents the invoice raised when an appointment is booked
type CreateInvoiceRequest struct {
	AppointmentID string          `json:"appointment_id" validate:"required"`
	ProviderID    string          `json:"provider_id" validate:"required"`
	ClientID      string          `json:"client_id" validate:"required"`
	Currency      string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	BaseAmount    decimal.Decimal `json:"base_amount" validate:"gte=0"`
	// PromotionCode is reserved in the same unit of work as the invoice
	PromotionCode *string `json:"promotion_code,omitempty"`
	// PromotionDiscount applies a discount reserved earlier for this client and
	// appointment. It is checked against the stored usage before it is applied.
	PromotionDiscount *PromotionDiscount `json:"promotion_discount,omitempty"`
	Metadata          types.Metadata     `json:"metadata,omitempty"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Metadata.Validate(); err != nil {
		return err
	}
	if err := types.ValidateMinorUnits("base_amount", r.BaseAmount); err != nil {
		return err
	}
	if r.PromotionDiscount != nil {
		return r.PromotionDiscount.Validate(r.BaseAmount)
	}
	return nil
}

// HasPromotionCode reports whether the request carries a non-empty code
func (r *CreateInvoiceRequest) HasPromotionCode() bool {
	return lo.FromPtr(r.PromotionCode) != ""
}

// ToInvoice builds the PENDING invoice; discount may be nil
func (r *CreateInvoiceRequest) ToInvoice(ctx context.Context, currency string, gracePeriod time.Duration, discount *PromotionDiscount) *invoice.Invoice {
	now := time.Now().UTC()
	due := now.Add(gracePeriod)

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		AppointmentID:  r.AppointmentID,
		ProviderID:     r.ProviderID,
		ClientID:       r.ClientID,
		Currency:       types.NormalizeCurrency(lo.Ternary(r.Currency != "", r.Currency, currency)),
		BaseAmount:     r.BaseAmount,
		DiscountAmount: decimal.Zero,
		InvoiceStatus:  types.InvoiceStatusPending,
		IssuedDate:     now,
		DueDate:        &due,
		Version:        1,
		Metadata:       r.Metadata,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	if discount != nil {
		inv.DiscountAmount = discount.DiscountAmount
		inv.PromotionID = lo.ToPtr(discount.PromotionID)
		inv.PromotionUsageID = lo.ToPtr(discount.PromotionUsageID)
	}
	inv.TotalAmount = invoice.ComputeTotal(inv.BaseAmount, inv.DiscountAmount)

	return inv
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	*invoice.Invoice
}

// NewInvoiceResponse wraps a domain invoice
func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv}
}

// ListInvoicesResponse represents a paginated list of invoices
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]
