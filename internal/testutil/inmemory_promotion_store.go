package testutil

import (
	"context"

	"github.com/flexprice/bookingpay/internal/domain/promotion"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
)

// InMemoryPromotionStore implements promotion.Repository
type InMemoryPromotionStore struct {
	*InMemoryStore[*promotion.Promotion]
}

// NewInMemoryPromotionStore creates a new in-memory promotion store
func NewInMemoryPromotionStore() *InMemoryPromotionStore {
	return &InMemoryPromotionStore{
		InMemoryStore: NewInMemoryStore(copyPromotion, func(p *promotion.Promotion) string { return p.TenantID }),
	}
}

func copyPromotion(p *promotion.Promotion) *promotion.Promotion {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (s *InMemoryPromotionStore) Create(ctx context.Context, p *promotion.Promotion) error {
	if p == nil {
		return ierr.NewError("promotion cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.CreateUnique(ctx, p.ID, p, func(existing *promotion.Promotion) bool {
		return existing.TenantID == p.TenantID &&
			existing.ProviderID == p.ProviderID &&
			existing.DiscountCode == p.DiscountCode
	})
}

func (s *InMemoryPromotionStore) Get(ctx context.Context, id string) (*promotion.Promotion, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPromotionStore) GetByCode(ctx context.Context, providerID, code string) (*promotion.Promotion, error) {
	return s.InMemoryStore.Find(ctx, func(p *promotion.Promotion) bool {
		return p.ProviderID == providerID && p.DiscountCode == code
	})
}

func (s *InMemoryPromotionStore) List(ctx context.Context, filter *types.PromotionFilter) ([]*promotion.Promotion, error) {
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
	}
	return s.InMemoryStore.List(ctx, filter, promotionFilterFn, promotionSortFn, qf)
}

func (s *InMemoryPromotionStore) IncrementUseCount(ctx context.Context, id string) (bool, error) {
	_, _, ok, err := s.InMemoryStore.Update(ctx, id, func(p *promotion.Promotion) (*promotion.Promotion, bool) {
		if p.IsExhausted() {
			return p, false
		}
		p.UseCount++
		return p, true
	})
	if err != nil || !ok {
		return false, err
	}

	RecordUndo(ctx, func() {
		s.addUseCount(id, -1)
	})
	return true, nil
}

func (s *InMemoryPromotionStore) DecrementUseCount(ctx context.Context, id string) error {
	_, _, ok, err := s.InMemoryStore.Update(ctx, id, func(p *promotion.Promotion) (*promotion.Promotion, bool) {
		if p.UseCount == 0 {
			return p, false
		}
		p.UseCount--
		return p, true
	})
	if err != nil {
		return err
	}
	if ok {
		RecordUndo(ctx, func() {
			s.addUseCount(id, 1)
		})
	}
	return nil
}

func (s *InMemoryPromotionStore) UpdateStatus(ctx context.Context, id string, from, to types.PromotionStatus) (bool, error) {
	_, _, ok, err := s.InMemoryStore.Update(ctx, id, func(p *promotion.Promotion) (*promotion.Promotion, bool) {
		if p.PromotionStatus != from {
			return p, false
		}
		p.PromotionStatus = to
		return p, true
	})
	if err != nil || !ok {
		return false, err
	}

	RecordUndo(ctx, func() {
		s.InMemoryStore.mu.Lock()
		defer s.InMemoryStore.mu.Unlock()
		if p, exists := s.InMemoryStore.items[id]; exists && p.PromotionStatus == to {
			p.PromotionStatus = from
		}
	})
	return true, nil
}

func (s *InMemoryPromotionStore) addUseCount(id string, delta int) {
	s.InMemoryStore.mu.Lock()
	defer s.InMemoryStore.mu.Unlock()
	if p, exists := s.InMemoryStore.items[id]; exists {
		p.UseCount = lo.Max([]int{p.UseCount + delta, 0})
	}
}

func promotionFilterFn(ctx context.Context, p *promotion.Promotion, filter interface{}) bool {
	f, ok := filter.(*types.PromotionFilter)
	if !ok || f == nil {
		return true
	}
	if p.Status != types.StatusPublished {
		return false
	}
	if len(f.PromotionIDs) > 0 && !lo.Contains(f.PromotionIDs, p.ID) {
		return false
	}
	if f.ProviderID != "" && p.ProviderID != f.ProviderID {
		return false
	}
	if f.ExclusiveGroup != "" && p.ExclusiveGroup != f.ExclusiveGroup {
		return false
	}
	if len(f.PromotionStatus) > 0 && !lo.Contains(f.PromotionStatus, p.PromotionStatus) {
		return false
	}
	if f.EndedBefore != nil && !p.EndDate.Before(*f.EndedBefore) {
		return false
	}
	return true
}

func promotionSortFn(i, j *promotion.Promotion) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

// InMemoryPromotionUsageStore implements promotion.UsageRepository
type InMemoryPromotionUsageStore struct {
	*InMemoryStore[*promotion.Usage]
}

// NewInMemoryPromotionUsageStore creates a new in-memory promotion usage store
func NewInMemoryPromotionUsageStore() *InMemoryPromotionUsageStore {
	return &InMemoryPromotionUsageStore{
		InMemoryStore: NewInMemoryStore(copyPromotionUsage, func(u *promotion.Usage) string { return u.TenantID }),
	}
}

func copyPromotionUsage(u *promotion.Usage) *promotion.Usage {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (s *InMemoryPromotionUsageStore) Create(ctx context.Context, u *promotion.Usage) error {
	if u == nil {
		return ierr.NewError("promotion usage cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.CreateUnique(ctx, u.ID, u, func(existing *promotion.Usage) bool {
		return existing.TenantID == u.TenantID &&
			existing.GroupKey == u.GroupKey &&
			existing.ClientID == u.ClientID
	})
}

func (s *InMemoryPromotionUsageStore) Get(ctx context.Context, id string) (*promotion.Usage, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPromotionUsageStore) ExistsForClient(ctx context.Context, groupKey, clientID string) (bool, error) {
	count, err := s.InMemoryStore.Count(ctx, nil, func(_ context.Context, u *promotion.Usage, _ interface{}) bool {
		return u.GroupKey == groupKey && u.ClientID == clientID
	})
	return count > 0, err
}

func (s *InMemoryPromotionUsageStore) Delete(ctx context.Context, ids []string) ([]*promotion.Usage, error) {
	deleted := make([]*promotion.Usage, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		u, err := s.InMemoryStore.Delete(ctx, id)
		if ierr.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, u)
	}
	return deleted, nil
}
