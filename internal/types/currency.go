package types

import (
	"strings"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when neither the request nor the config names one
const DefaultCurrency = "usd"

// ValidateMinorUnits checks that amount is a non-negative whole number of minor units
func ValidateMinorUnits(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ierr.NewErrorf("%s must be non-negative", field).
			WithHintf("%s cannot be negative", field).
			WithReportableDetails(map[string]any{
				field: amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if !amount.Equal(amount.Truncate(0)) {
		return ierr.NewErrorf("%s must be expressed in minor units", field).
			WithHintf("%s must be a whole number of minor units", field).
			WithReportableDetails(map[string]any{
				field: amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NormalizeCurrency lower-cases an ISO currency code, falling back to the default
func NormalizeCurrency(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}
