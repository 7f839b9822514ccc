package promotion

import (
	"testing"
	"time"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPromotion_CalculateDiscount(t *testing.T) {
	tests := []struct {
		name     string
		promo    Promotion
		base     decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "twenty percent of 10000",
			promo:    Promotion{DiscountType: types.DiscountTypePercentage, Discount: decimal.NewFromInt(20)},
			base:     decimal.NewFromInt(10000),
			expected: decimal.NewFromInt(2000),
		},
		{
			name:     "percentage rounds half up to whole minor units",
			promo:    Promotion{DiscountType: types.DiscountTypePercentage, Discount: decimal.NewFromInt(15)},
			base:     decimal.NewFromInt(999),
			expected: decimal.NewFromInt(150),
		},
		{
			name:     "fixed discount",
			promo:    Promotion{DiscountType: types.DiscountTypeFixed, Discount: decimal.NewFromInt(1500)},
			base:     decimal.NewFromInt(10000),
			expected: decimal.NewFromInt(1500),
		},
		{
			name:     "fixed discount capped at base",
			promo:    Promotion{DiscountType: types.DiscountTypeFixed, Discount: decimal.NewFromInt(1500)},
			base:     decimal.NewFromInt(1000),
			expected: decimal.NewFromInt(1000),
		},
		{
			name:     "over one hundred percent capped at base",
			promo:    Promotion{DiscountType: types.DiscountTypePercentage, Discount: decimal.NewFromInt(150)},
			base:     decimal.NewFromInt(1000),
			expected: decimal.NewFromInt(1000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.promo.CalculateDiscount(tt.base)
			assert.True(t, tt.expected.Equal(got), "expected %s got %s", tt.expected, got)
		})
	}
}

func TestPromotion_CheckActive(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	p := &Promotion{
		ID:              "promo_1",
		StartDate:       start,
		EndDate:         end,
		PromotionStatus: types.PromotionStatusActive,
	}

	assert.NoError(t, p.CheckActive(start))
	assert.NoError(t, p.CheckActive(end))
	assert.True(t, ierr.IsExpired(p.CheckActive(start.Add(-time.Second))))
	assert.True(t, ierr.IsExpired(p.CheckActive(end.Add(time.Second))))

	p.PromotionStatus = types.PromotionStatusExpired
	assert.True(t, ierr.IsExpired(p.CheckActive(start.Add(time.Hour))))
}

func TestPromotion_GroupKeyAndExhaustion(t *testing.T) {
	solo := &Promotion{ID: "promo_1", ProviderID: "prov_1"}
	grouped := &Promotion{ID: "promo_2", ProviderID: "prov_1", ExclusiveGroup: "summer"}
	sibling := &Promotion{ID: "promo_3", ProviderID: "prov_1", ExclusiveGroup: "summer"}

	assert.NotEqual(t, solo.GroupKey(), grouped.GroupKey())
	assert.Equal(t, grouped.GroupKey(), sibling.GroupKey())

	assert.False(t, solo.IsExhausted())
	solo.MaxUsage, solo.UseCount = 2, 2
	assert.True(t, solo.IsExhausted())
	solo.MaxUsage = 0
	assert.False(t, solo.IsExhausted())
}
