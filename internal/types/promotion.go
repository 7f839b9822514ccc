package types

import (
	"time"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PromotionStatus is the lifecycle state of a promotion
type PromotionStatus string

const (
	PromotionStatusActive  PromotionStatus = "ACTIVE"
	PromotionStatusExpired PromotionStatus = "EXPIRED"
)

func (s PromotionStatus) String() string {
	return string(s)
}

func (s PromotionStatus) Validate() error {
	allowed := []PromotionStatus{
		PromotionStatusActive,
		PromotionStatusExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid promotion status").
			WithHint("Please provide a valid promotion status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DiscountType represents how a promotion discount is applied
type DiscountType string

const (
	// DiscountTypePercentage takes a percentage of the base amount
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed takes a fixed amount in minor units
	DiscountTypeFixed DiscountType = "fixed"
)

func (t DiscountType) String() string {
	return string(t)
}

func (t DiscountType) Validate() error {
	allowed := []DiscountType{
		DiscountTypePercentage,
		DiscountTypeFixed,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid discount type").
			WithHint("Discount type must be percentage or fixed").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PromotionFilter represents the filter options for listing promotions
type PromotionFilter struct {
	*QueryFilter

	PromotionIDs    []string          `json:"promotion_ids,omitempty" form:"promotion_ids"`
	ProviderID      string            `json:"provider_id,omitempty" form:"provider_id"`
	ExclusiveGroup  string            `json:"exclusive_group,omitempty" form:"exclusive_group"`
	PromotionStatus []PromotionStatus `json:"promotion_status,omitempty" form:"promotion_status"`
	// EndedBefore matches promotions whose end date is strictly before the given time
	EndedBefore *time.Time `json:"ended_before,omitempty" form:"ended_before"`
}

// NewNoLimitPromotionFilter creates a promotion filter without pagination
func NewNoLimitPromotionFilter() *PromotionFilter {
	return &PromotionFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *PromotionFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	for _, status := range f.PromotionStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HundredDecimal is used to convert percentages to ratios
var HundredDecimal = decimal.NewFromInt(100)
