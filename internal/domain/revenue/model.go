package revenue

import (
	"time"

	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

// Revenue is the provider income bucket of one month
type Revenue struct {
	ID          string          `json:"id" db:"id"`
	ProviderID  string          `json:"provider_id" db:"provider_id"`
	Month       time.Time       `json:"month" db:"month"`
	TotalIncome decimal.Decimal `json:"total_income" db:"total_income"`
	Commission  decimal.Decimal `json:"commission" db:"commission"`
	NetIncome   decimal.Decimal `json:"net_income" db:"net_income"`
	// Inconsistent is set once a reversal had to be clamped at zero
	Inconsistent bool `json:"inconsistent" db:"inconsistent"`

	types.BaseModel
}

// Adjustment is the outcome of applying a signed amount to a bucket
type Adjustment struct {
	Requested decimal.Decimal
	Applied   decimal.Decimal
	Clamped   bool
}

// CommissionFor returns round(total × rate) in whole minor units
func CommissionFor(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Round(0)
}

// Adjust adds delta to the bucket and recomputes commission and net from the new total.
// A total that would go negative is clamped to zero and flags the bucket.
func (r *Revenue) Adjust(delta, rate decimal.Decimal) Adjustment {
	adj := Adjustment{Requested: delta, Applied: delta}
	total := r.TotalIncome.Add(delta)
	if total.IsNegative() {
		adj.Applied = r.TotalIncome.Neg()
		adj.Clamped = true
		total = decimal.Zero
		r.Inconsistent = true
	}
	r.TotalIncome = total
	r.Commission = CommissionFor(total, rate)
	r.NetIncome = r.TotalIncome.Sub(r.Commission)
	return adj
}

// IsBalanced reports whether net equals total minus commission
func (r *Revenue) IsBalanced() bool {
	return r.NetIncome.Equal(r.TotalIncome.Sub(r.Commission))
}
