package service

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/domain/promotion"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
)

// PromotionService validates and redeems provider discount codes
type PromotionService interface {
	CreatePromotion(ctx context.Context, req dto.CreatePromotionRequest) (*dto.PromotionResponse, error)
	GetPromotion(ctx context.Context, id string) (*dto.PromotionResponse, error)

	// ValidateAndReserve checks the code and records one redemption for the client.
	// The use count increment and the usage row are written as one unit.
	ValidateAndReserve(ctx context.Context, req dto.ReservePromotionRequest) (*dto.PromotionDiscount, error)
	// ReleaseUsage deletes usage rows as a compensating action
	ReleaseUsage(ctx context.Context, usageIDs []string) error
	// ExpireEnded moves ACTIVE promotions whose end date passed to EXPIRED
	ExpireEnded(ctx context.Context, now time.Time) ([]*promotion.Promotion, error)
}

type promotionService struct {
	ServiceParams
}

// NewPromotionService creates a new promotion service
func NewPromotionService(params ServiceParams) PromotionService {
	return &promotionService{
		ServiceParams: params,
	}
}

func (s *promotionService) CreatePromotion(ctx context.Context, req dto.CreatePromotionRequest) (*dto.PromotionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := req.ToPromotion(ctx)
	if err := s.PromotionRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("created promotion",
		"promotion_id", p.ID,
		"provider_id", p.ProviderID,
		"discount_code", p.DiscountCode,
	)
	return &dto.PromotionResponse{Promotion: p}, nil
}

func (s *promotionService) GetPromotion(ctx context.Context, id string) (*dto.PromotionResponse, error) {
	if id == "" {
		return nil, ierr.NewError("promotion_id is required").
			WithHint("Promotion ID is required").
			Mark(ierr.ErrValidation)
	}

	p, err := s.PromotionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.PromotionResponse{Promotion: p}, nil
}

func (s *promotionService) ValidateAndReserve(ctx context.Context, req dto.ReservePromotionRequest) (*dto.PromotionDiscount, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PromotionRepo.GetByCode(ctx, req.ProviderID, req.Code)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Invalid promotion code").
				WithReportableDetails(map[string]any{
					"code":        req.Code,
					"provider_id": req.ProviderID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	if err := p.CheckActive(time.Now().UTC()); err != nil {
		return nil, err
	}

	// fast path only, the conditional increment below is the real guard
	if p.IsExhausted() {
		return nil, exhaustedError(p)
	}

	var usage *promotion.Usage
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		used, err := s.PromotionUsageRepo.ExistsForClient(ctx, p.GroupKey(), req.ClientID)
		if err != nil {
			return err
		}
		if used {
			return alreadyUsedError(p, req.ClientID)
		}

		ok, err := s.PromotionRepo.IncrementUseCount(ctx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return exhaustedError(p)
		}

		usage = &promotion.Usage{
			ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROMOTION_USAGE),
			PromotionID:   p.ID,
			ProviderID:    p.ProviderID,
			ClientID:      req.ClientID,
			AppointmentID: req.AppointmentID,
			GroupKey:      p.GroupKey(),
			BaseModel:     types.GetDefaultBaseModel(ctx),
		}
		if err := s.PromotionUsageRepo.Create(ctx, usage); err != nil {
			// a concurrent redemption by the same client won the unique key
			if ierr.IsAlreadyExists(err) {
				return alreadyUsedError(p, req.ClientID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("reserved promotion",
		"promotion_id", p.ID,
		"promotion_usage_id", usage.ID,
		"client_id", req.ClientID,
		"appointment_id", req.AppointmentID,
	)

	return &dto.PromotionDiscount{
		PromotionID:      p.ID,
		PromotionUsageID: usage.ID,
		DiscountType:     p.DiscountType,
		Discount:         p.Discount,
		DiscountAmount:   p.CalculateDiscount(req.BaseAmount),
	}, nil
}

func (s *promotionService) ReleaseUsage(ctx context.Context, usageIDs []string) error {
	usageIDs = lo.Uniq(lo.Compact(usageIDs))
	if len(usageIDs) == 0 {
		return nil
	}

	restore := s.Config.Billing.PromotionReleaseRestoresCapacity
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		released, err := s.PromotionUsageRepo.Delete(ctx, usageIDs)
		if err != nil {
			return err
		}

		if restore {
			for _, u := range released {
				if err := s.PromotionRepo.DecrementUseCount(ctx, u.PromotionID); err != nil {
					return err
				}
			}
		}

		s.Logger.Infow("released promotion usage",
			"requested", len(usageIDs),
			"released", len(released),
			"capacity_restored", restore,
		)
		return nil
	})
}

func (s *promotionService) ExpireEnded(ctx context.Context, now time.Time) ([]*promotion.Promotion, error) {
	now = now.UTC()
	filter := types.NewNoLimitPromotionFilter()
	filter.PromotionStatus = []types.PromotionStatus{types.PromotionStatusActive}
	filter.EndedBefore = &now

	candidates, err := s.PromotionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	expired := make([]*promotion.Promotion, 0, len(candidates))
	for _, p := range candidates {
		ok, err := s.PromotionRepo.UpdateStatus(ctx, p.ID, types.PromotionStatusActive, types.PromotionStatusExpired)
		if err != nil {
			s.Logger.Errorw("failed to expire promotion",
				"promotion_id", p.ID,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}
		p.PromotionStatus = types.PromotionStatusExpired
		expired = append(expired, p)
	}

	if len(expired) > 0 {
		s.Logger.Infow("expired promotions", "count", len(expired))
	}
	return expired, nil
}

func exhaustedError(p *promotion.Promotion) error {
	return ierr.NewError("promotion usage limit reached").
		WithHint("This promotion code has been fully redeemed").
		WithReportableDetails(map[string]any{
			"promotion_id": p.ID,
			"max_usage":    p.MaxUsage,
		}).
		Mark(ierr.ErrExhausted)
}

func alreadyUsedError(p *promotion.Promotion, clientID string) error {
	return ierr.NewError("promotion already used by client").
		WithHint("You have already used this promotion").
		WithReportableDetails(map[string]any{
			"promotion_id":    p.ID,
			"exclusive_group": p.ExclusiveGroup,
			"client_id":       clientID,
		}).
		Mark(ierr.ErrAlreadyUsed)
}
