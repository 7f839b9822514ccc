package types

import (
	"testing"
	"time"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMonthStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "middle of month",
			in:   time.Date(2024, time.March, 17, 13, 45, 0, 0, time.UTC),
			want: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "already first of month",
			in:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non utc zone crossing month boundary",
			in:   time.Date(2024, time.April, 1, 2, 0, 0, 0, time.FixedZone("IST", 5*60*60)),
			want: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthStart(tt.in)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.True(t, IsMonthStart(got))
		})
	}
}

func TestRevenueFilter_Validate(t *testing.T) {
	f := NewNoLimitRevenueFilter()
	f.FromMonth = lo.ToPtr(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	f.ToMonth = lo.ToPtr(time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, f.Validate())

	f.ToMonth = lo.ToPtr(time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC))
	err := f.Validate()
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestValidateMinorUnits(t *testing.T) {
	assert.NoError(t, ValidateMinorUnits("amount", decimal.NewFromInt(8000)))
	assert.NoError(t, ValidateMinorUnits("amount", decimal.Zero))
	assert.True(t, ierr.IsValidation(ValidateMinorUnits("amount", decimal.NewFromInt(-1))))
	assert.True(t, ierr.IsValidation(ValidateMinorUnits("amount", decimal.RequireFromString("10.5"))))
}
