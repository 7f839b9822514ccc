package refund

import (
	"context"

	"github.com/flexprice/bookingpay/internal/types"
)

// Repository defines the interface for refund request persistence
type Repository interface {
	// Create stores a PENDING request; a second open request for the invoice is ErrAlreadyExists
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	// GetPendingByInvoice returns the open request of the invoice or ErrNotFound
	GetPendingByInvoice(ctx context.Context, invoiceID string) (*Request, error)
	List(ctx context.Context, filter *types.RefundRequestFilter) ([]*Request, error)

	// Adjudicate applies a only while the request is still PENDING
	Adjudicate(ctx context.Context, a *Adjudication) (bool, error)
}
