package types

import (
	"testing"

	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestInvoiceStatus_CanTransitionTo(t *testing.T) {
	all := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPaid,
		InvoiceStatusCanceled,
		InvoiceStatusRefunded,
	}
	legal := map[InvoiceStatus][]InvoiceStatus{
		InvoiceStatusPending: {InvoiceStatusPaid, InvoiceStatusCanceled},
		InvoiceStatusPaid:    {InvoiceStatusRefunded},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestInvoiceStatus_IsTerminal(t *testing.T) {
	assert.False(t, InvoiceStatusPending.IsTerminal())
	assert.False(t, InvoiceStatusPaid.IsTerminal())
	assert.True(t, InvoiceStatusCanceled.IsTerminal())
	assert.True(t, InvoiceStatusRefunded.IsTerminal())
}

func TestInvoiceStatus_Validate(t *testing.T) {
	assert.NoError(t, InvoiceStatusPaid.Validate())

	err := InvoiceStatus("DRAFT").Validate()
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
