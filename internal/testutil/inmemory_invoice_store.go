package testutil

import (
	"context"

	"github.com/flexprice/bookingpay/internal/domain/invoice"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyInvoice, func(inv *invoice.Invoice) string { return inv.TenantID }),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.Metadata = inv.Metadata.Clone()
	return &c
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.CreateUnique(ctx, inv.ID, inv, func(existing *invoice.Invoice) bool {
		return existing.TenantID == inv.TenantID && existing.AppointmentID == inv.AppointmentID
	})
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) GetByAppointmentID(ctx context.Context, appointmentID string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Find(ctx, func(inv *invoice.Invoice) bool {
		return inv.AppointmentID == appointmentID
	})
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
	}
	return s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn, qf)
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) Transition(ctx context.Context, t *invoice.Transition) (bool, error) {
	before, after, ok, err := s.InMemoryStore.Update(ctx, t.InvoiceID, func(inv *invoice.Invoice) (*invoice.Invoice, bool) {
		if inv.InvoiceStatus != t.From {
			return inv, false
		}
		inv.Apply(t)
		return inv, true
	})
	if err != nil || !ok {
		return false, err
	}

	RecordUndo(ctx, func() {
		s.InMemoryStore.PutIf(before.ID, before, func(current *invoice.Invoice) bool {
			return current.Version == after.Version
		})
	})
	return true, nil
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}
	if inv.Status != types.StatusPublished {
		return false
	}
	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if f.ProviderID != "" && inv.ProviderID != f.ProviderID {
		return false
	}
	if f.ClientID != "" && inv.ClientID != f.ClientID {
		return false
	}
	if len(f.AppointmentIDs) > 0 && !lo.Contains(f.AppointmentIDs, inv.AppointmentID) {
		return false
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.InvoiceStatus) {
		return false
	}
	if f.DueBefore != nil && (inv.DueDate == nil || !inv.DueDate.Before(*f.DueBefore)) {
		return false
	}
	if f.TimeRangeFilter != nil && !f.TimeRangeFilter.Contains(inv.CreatedAt) {
		return false
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
