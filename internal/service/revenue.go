package service

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/domain/revenue"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

// RevenueService books provider income into monthly buckets
type RevenueService interface {
	BookIncome(ctx context.Context, providerID string, month time.Time, amount, commissionRate decimal.Decimal) error
	// ReverseIncome subtracts a booking. A bucket that would go negative is
	// clamped at zero, flagged and reported.
	ReverseIncome(ctx context.Context, providerID string, month time.Time, amount, commissionRate decimal.Decimal) error
	Query(ctx context.Context, filter *types.RevenueFilter) (*dto.RevenueReportResponse, error)
}

type revenueService struct {
	ServiceParams
}

// NewRevenueService creates a new revenue service
func NewRevenueService(params ServiceParams) RevenueService {
	return newRevenueService(params)
}

func newRevenueService(params ServiceParams) *revenueService {
	return &revenueService{
		ServiceParams: params,
	}
}

// revenueChange is a bucket write that already happened inside a unit of work
type revenueChange struct {
	Revenue    *revenue.Revenue
	Adjustment revenue.Adjustment
}

func (s *revenueService) BookIncome(ctx context.Context, providerID string, month time.Time, amount, commissionRate decimal.Decimal) error {
	_, err := s.apply(ctx, providerID, month, amount, commissionRate)
	return err
}

func (s *revenueService) ReverseIncome(ctx context.Context, providerID string, month time.Time, amount, commissionRate decimal.Decimal) error {
	change, err := s.apply(ctx, providerID, month, amount.Neg(), commissionRate)
	if err != nil {
		return err
	}
	s.reportClamp(ctx, change)
	return nil
}

// apply validates and writes a signed amount to the bucket. Callers already in
// a unit of work call it directly and report a clamp after their commit.
func (s *revenueService) apply(ctx context.Context, providerID string, month time.Time, delta, commissionRate decimal.Decimal) (*revenueChange, error) {
	if err := validateRevenueInput(providerID, delta.Abs(), commissionRate); err != nil {
		return nil, err
	}

	month = types.MonthStart(month)
	change := &revenueChange{}
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		rev, err := s.RevenueRepo.Mutate(ctx, providerID, month, func(r *revenue.Revenue) error {
			change.Adjustment = r.Adjust(delta, commissionRate)
			if !r.IsBalanced() {
				return ierr.NewError("revenue bucket out of balance").
					WithReportableDetails(map[string]any{
						"provider_id":  providerID,
						"month":        month,
						"total_income": r.TotalIncome,
						"commission":   r.Commission,
						"net_income":   r.NetIncome,
					}).
					Mark(ierr.ErrConsistencyViolation)
			}
			return nil
		})
		if err != nil {
			return err
		}
		change.Revenue = rev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Debugw("applied revenue change",
		"provider_id", providerID,
		"month", month.Format("2006-01"),
		"delta", delta,
		"applied", change.Adjustment.Applied,
		"total_income", change.Revenue.TotalIncome,
	)
	return change, nil
}

// reportClamp surfaces a reversal that exceeded the booked income. The bucket
// is already written, so this only logs, reports and publishes.
func (s *revenueService) reportClamp(ctx context.Context, change *revenueChange) {
	if change == nil || !change.Adjustment.Clamped {
		return
	}

	rev := change.Revenue
	err := ierr.NewError("revenue reversal exceeds booked income").
		WithHint("Revenue total was clamped at zero").
		WithReportableDetails(map[string]any{
			"provider_id": rev.ProviderID,
			"month":       rev.Month,
			"requested":   change.Adjustment.Requested,
			"applied":     change.Adjustment.Applied,
		}).
		Mark(ierr.ErrConsistencyViolation)

	s.Logger.Errorw("revenue consistency violation",
		"provider_id", rev.ProviderID,
		"month", rev.Month.Format("2006-01"),
		"requested", change.Adjustment.Requested,
		"applied", change.Adjustment.Applied,
		"error", err,
	)
	s.Sentry.CaptureConsistencyViolation(err, map[string]string{
		"provider_id": rev.ProviderID,
		"month":       rev.Month.Format("2006-01"),
		"tenant_id":   rev.TenantID,
	})
	s.publishEvent(ctx, types.EventRevenueInconsistent, map[string]any{
		"revenue_id":  rev.ID,
		"provider_id": rev.ProviderID,
		"month":       rev.Month,
		"requested":   change.Adjustment.Requested,
		"applied":     change.Adjustment.Applied,
	})
}

func (s *revenueService) Query(ctx context.Context, filter *types.RevenueFilter) (*dto.RevenueReportResponse, error) {
	if filter == nil {
		filter = types.NewNoLimitRevenueFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	revenues, err := s.RevenueRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewRevenueReportResponse(revenues), nil
}

func validateRevenueInput(providerID string, amount, rate decimal.Decimal) error {
	if providerID == "" {
		return ierr.NewError("provider_id is required").
			WithHint("Provider ID is required").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateMinorUnits("amount", amount); err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return ierr.NewError("commission rate must be between 0 and 1").
			WithHint("Commission rate must be a ratio between 0 and 1").
			WithReportableDetails(map[string]any{
				"commission_rate": rate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
