package promotion

import (
	"time"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

// Promotion is a provider scoped discount code
type Promotion struct {
	ID           string             `json:"id" db:"id"`
	ProviderID   string             `json:"provider_id" db:"provider_id"`
	Name         string             `json:"name" db:"name"`
	DiscountCode string             `json:"discount_code" db:"discount_code"`
	DiscountType types.DiscountType `json:"discount_type" db:"discount_type"`
	// Discount is a percentage for percentage promotions and minor units for fixed ones
	Discount decimal.Decimal `json:"discount" db:"discount"`
	// MaxUsage of 0 means unlimited
	MaxUsage        int                   `json:"max_usage" db:"max_usage"`
	UseCount        int                   `json:"use_count" db:"use_count"`
	StartDate       time.Time             `json:"start_date" db:"start_date"`
	EndDate         time.Time             `json:"end_date" db:"end_date"`
	PromotionStatus types.PromotionStatus `json:"promotion_status" db:"promotion_status"`
	// ExclusiveGroup links promotions a client may redeem only one of
	ExclusiveGroup string `json:"exclusive_group,omitempty" db:"exclusive_group"`

	types.BaseModel
}

// Usage records one successful redemption
type Usage struct {
	ID            string `json:"id" db:"id"`
	PromotionID   string `json:"promotion_id" db:"promotion_id"`
	ProviderID    string `json:"provider_id" db:"provider_id"`
	ClientID      string `json:"client_id" db:"client_id"`
	AppointmentID string `json:"appointment_id" db:"appointment_id"`
	// GroupKey is unique per client, see Promotion.GroupKey
	GroupKey string `json:"group_key" db:"group_key"`

	types.BaseModel
}

// GroupKey identifies the set of mutually exclusive promotions this one belongs to.
// A promotion without an exclusive group forms a group of its own.
func (p *Promotion) GroupKey() string {
	if p.ExclusiveGroup == "" {
		return "promotion:" + p.ID
	}
	return "group:" + p.ProviderID + ":" + p.ExclusiveGroup
}

// IsUnlimited reports whether the promotion has no usage cap
func (p *Promotion) IsUnlimited() bool {
	return p.MaxUsage == 0
}

// IsExhausted reports whether every slot has been used
func (p *Promotion) IsExhausted() bool {
	return !p.IsUnlimited() && p.UseCount >= p.MaxUsage
}

// CheckActive fails with ErrExpired when the promotion cannot be redeemed at now
func (p *Promotion) CheckActive(now time.Time) error {
	if p.PromotionStatus == types.PromotionStatusExpired ||
		now.Before(p.StartDate) ||
		now.After(p.EndDate) {
		return ierr.NewError("promotion is not active").
			WithHint("This promotion code has expired").
			WithReportableDetails(map[string]any{
				"promotion_id":     p.ID,
				"promotion_status": p.PromotionStatus,
				"start_date":       p.StartDate,
				"end_date":         p.EndDate,
			}).
			Mark(ierr.ErrExpired)
	}
	return nil
}

// CalculateDiscount returns the discount in minor units for base, never above base
func (p *Promotion) CalculateDiscount(base decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch p.DiscountType {
	case types.DiscountTypePercentage:
		discount = base.Mul(p.Discount).Div(types.HundredDecimal).Round(0)
	case types.DiscountTypeFixed:
		discount = p.Discount
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(base) {
		return base
	}
	return discount
}
