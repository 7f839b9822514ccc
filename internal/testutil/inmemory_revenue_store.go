package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/bookingpay/internal/domain/revenue"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InMemoryRevenueStore implements revenue.Repository. Each (tenant, provider, month)
// bucket has its own lock held until the enclosing unit of work ends.
type InMemoryRevenueStore struct {
	*InMemoryStore[*revenue.Revenue]

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewInMemoryRevenueStore creates a new in-memory revenue store
func NewInMemoryRevenueStore() *InMemoryRevenueStore {
	return &InMemoryRevenueStore{
		InMemoryStore: NewInMemoryStore(copyRevenue, func(r *revenue.Revenue) string { return r.TenantID }),
		locks:         make(map[string]*sync.Mutex),
	}
}

func copyRevenue(r *revenue.Revenue) *revenue.Revenue {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func revenueKey(tenantID, providerID string, month time.Time) string {
	return tenantID + ":" + providerID + ":" + month.Format("2006-01")
}

func (s *InMemoryRevenueStore) lockFor(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *InMemoryRevenueStore) Mutate(ctx context.Context, providerID string, month time.Time, fn revenue.MutateFunc) (*revenue.Revenue, error) {
	month = types.MonthStart(month)
	tenantID := types.GetTenantID(ctx)
	key := revenueKey(tenantID, providerID, month)

	lock := s.lockFor(key)
	lock.Lock()

	existing, err := s.InMemoryStore.Get(ctx, key)
	created := false
	if ierr.IsNotFound(err) {
		created = true
		existing = &revenue.Revenue{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REVENUE),
			ProviderID:  providerID,
			Month:       month,
			TotalIncome: decimal.Zero,
			Commission:  decimal.Zero,
			NetIncome:   decimal.Zero,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		}
	} else if err != nil {
		lock.Unlock()
		return nil, err
	}

	before := copyRevenue(existing)
	if err := fn(existing); err != nil {
		lock.Unlock()
		return nil, err
	}
	existing.Touch(ctx, time.Now())

	s.InMemoryStore.Put(key, existing)
	RecordUndo(ctx, func() {
		if created {
			s.InMemoryStore.mu.Lock()
			delete(s.InMemoryStore.items, key)
			s.InMemoryStore.mu.Unlock()
			return
		}
		s.InMemoryStore.Put(key, before)
	})
	HoldUntilTxEnd(ctx, lock.Unlock)

	return copyRevenue(existing), nil
}

func (s *InMemoryRevenueStore) Get(ctx context.Context, providerID string, month time.Time) (*revenue.Revenue, error) {
	return s.InMemoryStore.Get(ctx, revenueKey(types.GetTenantID(ctx), providerID, types.MonthStart(month)))
}

func (s *InMemoryRevenueStore) List(ctx context.Context, filter *types.RevenueFilter) ([]*revenue.Revenue, error) {
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
	}
	return s.InMemoryStore.List(ctx, filter, revenueFilterFn, revenueSortFn, qf)
}

func revenueFilterFn(ctx context.Context, r *revenue.Revenue, filter interface{}) bool {
	f, ok := filter.(*types.RevenueFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.ProviderIDs) > 0 && !lo.Contains(f.ProviderIDs, r.ProviderID) {
		return false
	}
	from, to := f.MonthRange()
	if from != nil && r.Month.Before(*from) {
		return false
	}
	if to != nil && r.Month.After(*to) {
		return false
	}
	return true
}

func revenueSortFn(i, j *revenue.Revenue) bool {
	if !i.Month.Equal(j.Month) {
		return i.Month.Before(j.Month)
	}
	return i.ProviderID < j.ProviderID
}
