package dto

import (
	"context"
	"strings"
	"time"

	"github.com/flexprice/bookingpay/internal/domain/promotion"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/flexprice/bookingpay/internal/validator"
	"github.com/shopspring/decimal"
)

// CreatePromotionRequest represents a request to create a provider promotion
type CreatePromotionRequest struct {
	ProviderID     string             `json:"provider_id" validate:"required"`
	Name           string             `json:"name" validate:"required"`
	DiscountCode   string             `json:"discount_code" validate:"required,max=100"`
	DiscountType   types.DiscountType `json:"discount_type" validate:"required"`
	Discount       decimal.Decimal    `json:"discount" validate:"gte=0"`
	MaxUsage       int                `json:"max_usage" validate:"gte=0"`
	StartDate      time.Time          `json:"start_date" validate:"required"`
	EndDate        time.Time          `json:"end_date" validate:"required"`
	ExclusiveGroup string             `json:"exclusive_group,omitempty" validate:"omitempty,max=100"`
}

func (r *CreatePromotionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if err := r.DiscountType.Validate(); err != nil {
		return err
	}

	switch r.DiscountType {
	case types.DiscountTypePercentage:
		if r.Discount.GreaterThan(types.HundredDecimal) {
			return ierr.NewError("percentage discount must not exceed 100").
				WithHint("Percentage discount must be between 0 and 100").
				WithReportableDetails(map[string]any{
					"discount": r.Discount.String(),
				}).
				Mark(ierr.ErrValidation)
		}
	case types.DiscountTypeFixed:
		if err := types.ValidateMinorUnits("discount", r.Discount); err != nil {
			return err
		}
	}

	if !r.EndDate.After(r.StartDate) {
		return ierr.NewError("end_date must be after start_date").
			WithHint("Promotion end date must be after its start date").
			WithReportableDetails(map[string]any{
				"start_date": r.StartDate,
				"end_date":   r.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ToPromotion converts a create request into an ACTIVE promotion
func (r *CreatePromotionRequest) ToPromotion(ctx context.Context) *promotion.Promotion {
	return &promotion.Promotion{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROMOTION),
		ProviderID:      r.ProviderID,
		Name:            r.Name,
		DiscountCode:    strings.TrimSpace(r.DiscountCode),
		DiscountType:    r.DiscountType,
		Discount:        r.Discount,
		MaxUsage:        r.MaxUsage,
		StartDate:       r.StartDate.UTC(),
		EndDate:         r.EndDate.UTC(),
		PromotionStatus: types.PromotionStatusActive,
		ExclusiveGroup:  strings.TrimSpace(r.ExclusiveGroup),
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}

// PromotionResponse represents a promotion in API responses
type PromotionResponse struct {
	*promotion.Promotion
}

// ReservePromotionRequest redeems a promotion code for one appointment
type ReservePromotionRequest struct {
	Code          string `json:"code" validate:"required"`
	ProviderID    string `json:"provider_id" validate:"required"`
	ClientID      string `json:"client_id" validate:"required"`
	AppointmentID string `json:"appointment_id" validate:"required"`
	// BaseAmount, when set, is used to compute DiscountAmount in the response
	BaseAmount decimal.Decimal `json:"base_amount" validate:"gte=0"`
}

func (r *ReservePromotionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return types.ValidateMinorUnits("base_amount", r.BaseAmount)
}

// PromotionDiscount is the outcome of a successful reservation
type PromotionDiscount struct {
	PromotionID      string             `json:"promotion_id"`
	PromotionUsageID string             `json:"promotion_usage_id"`
	DiscountType     types.DiscountType `json:"discount_type"`
	Discount         decimal.Decimal    `json:"discount"`
	DiscountAmount   decimal.Decimal    `json:"discount_amount"`
}

// Validate checks an applied discount against the base it is applied to
func (d *PromotionDiscount) Validate(base decimal.Decimal) error {
	if d.PromotionID == "" || d.PromotionUsageID == "" {
		return ierr.NewError("promotion discount must reference a reservation").
			WithHint("An applied discount needs both promotion_id and promotion_usage_id").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateMinorUnits("discount_amount", d.DiscountAmount); err != nil {
		return err
	}
	if d.DiscountAmount.GreaterThan(base) {
		return ierr.NewError("discount_amount exceeds base_amount").
			WithHint("The discount cannot be larger than the invoice amount").
			WithReportableDetails(map[string]any{
				"discount_amount": d.DiscountAmount.String(),
				"base_amount":     base.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
