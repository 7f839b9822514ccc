package invoice

import (
	"context"

	"github.com/flexprice/bookingpay/internal/types"
)

// Repository defines the interface for invoice persistence
type Repository interface {
	// Create stores a new invoice; a second invoice for the same appointment is ErrAlreadyExists
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	GetByAppointmentID(ctx context.Context, appointmentID string) (*Invoice, error)
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// Transition writes the new status only if the current status equals t.From.
	// It returns false without error when the guard did not match.
	Transition(ctx context.Context, t *Transition) (bool, error)
}
