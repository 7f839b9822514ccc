package promotion

import (
	"context"

	"github.com/flexprice/bookingpay/internal/types"
)

// Repository defines the interface for promotion persistence
type Repository interface {
	// Create stores a promotion; a duplicate code for the provider is ErrAlreadyExists
	Create(ctx context.Context, p *Promotion) error
	Get(ctx context.Context, id string) (*Promotion, error)
	GetByCode(ctx context.Context, providerID, code string) (*Promotion, error)
	List(ctx context.Context, filter *types.PromotionFilter) ([]*Promotion, error)

	// IncrementUseCount adds one use only while use_count < max_usage (or max_usage = 0).
	// It returns false when the promotion is exhausted.
	IncrementUseCount(ctx context.Context, id string) (bool, error)
	// DecrementUseCount gives back one use, never going below zero
	DecrementUseCount(ctx context.Context, id string) error
	// UpdateStatus writes the new status only if the current status equals from
	UpdateStatus(ctx context.Context, id string, from, to types.PromotionStatus) (bool, error)
}

// UsageRepository defines the interface for redemption records
type UsageRepository interface {
	// Create stores a usage; a second usage for the same group key and client is ErrAlreadyExists
	Create(ctx context.Context, u *Usage) error
	Get(ctx context.Context, id string) (*Usage, error)
	ExistsForClient(ctx context.Context, groupKey, clientID string) (bool, error)
	// Delete removes the usages and returns the rows that existed
	Delete(ctx context.Context, ids []string) ([]*Usage, error)
}
