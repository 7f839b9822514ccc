package types

import (
	"time"

	ierr "github.com/flexprice/bookingpay/internal/errors"
)

// MonthStart truncates t to the first instant of its month in UTC.
// Revenue buckets are keyed by this value.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsMonthStart reports whether t is already a bucket key
func IsMonthStart(t time.Time) bool {
	return t.Equal(MonthStart(t))
}

// RevenueFilter selects revenue buckets by provider and an inclusive month range
type RevenueFilter struct {
	*QueryFilter

	ProviderIDs []string   `json:"provider_ids,omitempty" form:"provider_ids"`
	FromMonth   *time.Time `json:"from_month,omitempty" form:"from_month"`
	ToMonth     *time.Time `json:"to_month,omitempty" form:"to_month"`
}

// NewNoLimitRevenueFilter creates a revenue filter without pagination
func NewNoLimitRevenueFilter() *RevenueFilter {
	return &RevenueFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *RevenueFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.FromMonth != nil && f.ToMonth != nil && MonthStart(*f.ToMonth).Before(MonthStart(*f.FromMonth)) {
		return ierr.NewError("to_month must not be before from_month").
			WithHint("Please provide a valid month range").
			WithReportableDetails(map[string]any{
				"from_month": f.FromMonth,
				"to_month":   f.ToMonth,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MonthRange returns the normalized bounds of the filter, nil when open
func (f *RevenueFilter) MonthRange() (from, to *time.Time) {
	if f.FromMonth != nil {
		m := MonthStart(*f.FromMonth)
		from = &m
	}
	if f.ToMonth != nil {
		m := MonthStart(*f.ToMonth)
		to = &m
	}
	return from, to
}
