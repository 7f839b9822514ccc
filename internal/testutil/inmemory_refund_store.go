package testutil

import (
	"context"

	"github.com/flexprice/bookingpay/internal/domain/refund"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
)

// InMemoryRefundStore implements refund.Repository
type InMemoryRefundStore struct {
	*InMemoryStore[*refund.Request]
}

// NewInMemoryRefundStore creates a new in-memory refund request store
func NewInMemoryRefundStore() *InMemoryRefundStore {
	return &InMemoryRefundStore{
		InMemoryStore: NewInMemoryStore(copyRefundRequest, func(r *refund.Request) string { return r.TenantID }),
	}
}

func copyRefundRequest(r *refund.Request) *refund.Request {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (s *InMemoryRefundStore) Create(ctx context.Context, r *refund.Request) error {
	if r == nil {
		return ierr.NewError("refund request cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.CreateUnique(ctx, r.ID, r, func(existing *refund.Request) bool {
		return existing.InvoiceID == r.InvoiceID && existing.IsPending() && r.IsPending()
	})
}

func (s *InMemoryRefundStore) Get(ctx context.Context, id string) (*refund.Request, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryRefundStore) GetPendingByInvoice(ctx context.Context, invoiceID string) (*refund.Request, error) {
	return s.InMemoryStore.Find(ctx, func(r *refund.Request) bool {
		return r.InvoiceID == invoiceID && r.IsPending()
	})
}

func (s *InMemoryRefundStore) List(ctx context.Context, filter *types.RefundRequestFilter) ([]*refund.Request, error) {
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
	}
	return s.InMemoryStore.List(ctx, filter, refundFilterFn, refundSortFn, qf)
}

func (s *InMemoryRefundStore) Adjudicate(ctx context.Context, a *refund.Adjudication) (bool, error) {
	before, _, ok, err := s.InMemoryStore.Update(ctx, a.RequestID, func(r *refund.Request) (*refund.Request, bool) {
		if !r.IsPending() {
			return r, false
		}
		r.Apply(a)
		return r, true
	})
	if err != nil || !ok {
		return false, err
	}

	RecordUndo(ctx, func() {
		s.InMemoryStore.PutIf(before.ID, before, func(current *refund.Request) bool {
			return current.RefundStatus == a.To
		})
	})
	return true, nil
}

func refundFilterFn(ctx context.Context, r *refund.Request, filter interface{}) bool {
	f, ok := filter.(*types.RefundRequestFilter)
	if !ok || f == nil {
		return true
	}
	if r.Status != types.StatusPublished {
		return false
	}
	if f.InvoiceID != "" && r.InvoiceID != f.InvoiceID {
		return false
	}
	if f.ClientID != "" && r.ClientID != f.ClientID {
		return false
	}
	if len(f.RefundStatus) > 0 && !lo.Contains(f.RefundStatus, r.RefundStatus) {
		return false
	}
	return true
}

func refundSortFn(i, j *refund.Request) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
