package revenue

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/types"
)

// MutateFunc changes a locked bucket in place
type MutateFunc func(r *Revenue) error

// Repository defines the interface for revenue bucket persistence
type Repository interface {
	// Mutate serializes writers of the (providerID, month) bucket: it creates the
	// bucket when absent, locks it, runs fn and stores the result. If fn fails
	// nothing is written.
	Mutate(ctx context.Context, providerID string, month time.Time, fn MutateFunc) (*Revenue, error)
	Get(ctx context.Context, providerID string, month time.Time) (*Revenue, error)
	List(ctx context.Context, filter *types.RevenueFilter) ([]*Revenue, error)
}
