package testutil

import (
	"context"

	"github.com/flexprice/bookingpay/internal/domain/payment"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

// NewInMemoryPaymentStore creates a new in-memory payment store
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore(copyPayment, func(p *payment.Payment) string { return p.TenantID }),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	if p == nil {
		return nil
	}
	c := *p
	c.Metadata = p.Metadata.Clone()
	return &c
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.CreateUnique(ctx, p.ID, p, func(existing *payment.Payment) bool {
		if existing.TransactionID == p.TransactionID {
			return true
		}
		return existing.InvoiceID == p.InvoiceID &&
			existing.IsPending() && p.IsPending()
	})
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.InMemoryStore.Get(ctx, id)
}

// GetByTransactionID looks across tenants, processor notifications carry no tenant
func (s *InMemoryPaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	return s.InMemoryStore.Find(context.Background(), func(p *payment.Payment) bool {
		return p.TransactionID == transactionID
	})
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
	}
	return s.InMemoryStore.List(ctx, filter, paymentFilterFn, paymentSortFn, qf)
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentFilterFn)
}

func (s *InMemoryPaymentStore) UpdateStatus(ctx context.Context, u *payment.StatusUpdate) (bool, error) {
	before, _, ok, err := s.InMemoryStore.Update(ctx, u.PaymentID, func(p *payment.Payment) (*payment.Payment, bool) {
		if p.PaymentStatus != u.From {
			return p, false
		}
		p.Apply(u)
		return p, true
	})
	if err != nil || !ok {
		return false, err
	}

	RecordUndo(ctx, func() {
		s.InMemoryStore.PutIf(before.ID, before, func(current *payment.Payment) bool {
			return current.PaymentStatus == u.To
		})
	})
	return true, nil
}

func paymentFilterFn(ctx context.Context, p *payment.Payment, filter interface{}) bool {
	f, ok := filter.(*types.PaymentFilter)
	if !ok || f == nil {
		return true
	}
	if p.Status != types.StatusPublished {
		return false
	}
	if len(f.PaymentIDs) > 0 && !lo.Contains(f.PaymentIDs, p.ID) {
		return false
	}
	if f.InvoiceID != "" && p.InvoiceID != f.InvoiceID {
		return false
	}
	if len(f.PaymentStatus) > 0 && !lo.Contains(f.PaymentStatus, p.PaymentStatus) {
		return false
	}
	if len(f.TransactionIDs) > 0 && !lo.Contains(f.TransactionIDs, p.TransactionID) {
		return false
	}
	return true
}

func paymentSortFn(i, j *payment.Payment) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
