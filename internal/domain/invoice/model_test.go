package invoice

import (
	"testing"
	"time"

	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name     string
		base     decimal.Decimal
		discount decimal.Decimal
		want     decimal.Decimal
	}{
		{"no discount", decimal.NewFromInt(10000), decimal.Zero, decimal.NewFromInt(10000)},
		{"twenty percent", decimal.NewFromInt(10000), decimal.NewFromInt(2000), decimal.NewFromInt(8000)},
		{"discount larger than base floors at zero", decimal.NewFromInt(500), decimal.NewFromInt(900), decimal.Zero},
		{"negative discount is ignored", decimal.NewFromInt(500), decimal.NewFromInt(-100), decimal.NewFromInt(500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ComputeTotal(tt.base, tt.discount)))
		})
	}
}

func TestInvoice_IsOverdue(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	inv := &Invoice{
		InvoiceStatus: types.InvoiceStatusPending,
		DueDate:       lo.ToPtr(now.Add(-time.Minute)),
	}
	assert.True(t, inv.IsOverdue(now))

	inv.DueDate = lo.ToPtr(now)
	assert.False(t, inv.IsOverdue(now))

	inv.DueDate = lo.ToPtr(now.Add(-time.Hour))
	inv.InvoiceStatus = types.InvoiceStatusPaid
	assert.False(t, inv.IsOverdue(now))

	inv.InvoiceStatus = types.InvoiceStatusPending
	inv.DueDate = nil
	assert.False(t, inv.IsOverdue(now))
}

func TestInvoice_Apply(t *testing.T) {
	at := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	inv := &Invoice{InvoiceStatus: types.InvoiceStatusPending, Version: 1}

	inv.Apply(&Transition{From: types.InvoiceStatusPending, To: types.InvoiceStatusPaid, At: at})
	assert.Equal(t, types.InvoiceStatusPaid, inv.InvoiceStatus)
	assert.Equal(t, 2, inv.Version)
	month, ok := inv.RevenueMonth()
	assert.True(t, ok)
	assert.True(t, month.Equal(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)))
}
