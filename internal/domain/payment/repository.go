package payment

import (
	"context"

	"github.com/flexprice/bookingpay/internal/types"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create stores a pending payment. A duplicate transaction id, or a second
	// pending payment for the same invoice, is ErrAlreadyExists.
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)
	Count(ctx context.Context, filter *types.PaymentFilter) (int, error)

	// UpdateStatus writes the new status only if the current status equals u.From
	UpdateStatus(ctx context.Context, u *StatusUpdate) (bool, error)
}
