package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flexprice/bookingpay/internal/api/dto"
	"github.com/flexprice/bookingpay/internal/domain/invoice"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// InvoiceService owns the invoice lifecycle
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)

	// Transition is the only way an invoice changes status. It fails with
	// ErrInvalidTransition for an illegal edge or when the stored status is no
	// longer t.From, and then nothing is written.
	Transition(ctx context.Context, t *invoice.Transition) (*invoice.Invoice, error)

	// ExpireOverdue cancels every PENDING invoice due before now and releases its
	// promotion usage. A failure on one invoice does not stop the batch.
	ExpireOverdue(ctx context.Context, now time.Time) ([]*invoice.Invoice, error)
}

type invoiceService struct {
	ServiceParams
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.HasPromotionCode() && req.PromotionDiscount != nil {
		return nil, ierr.NewError("promotion_code and promotion_discount are mutually exclusive").
			WithHint("Provide either a promotion code or an applied discount, not both").
			Mark(ierr.ErrValidation)
	}

	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.InvoiceRepo.GetByAppointmentID(ctx, req.AppointmentID)
		if err != nil && !ierr.IsNotFound(err) {
			return err
		}
		if existing != nil {
			return ierr.NewError("invoice already exists for appointment").
				WithHint("An invoice has already been raised for this appointment").
				WithReportableDetails(map[string]any{
					"appointment_id": req.AppointmentID,
					"invoice_id":     existing.ID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}

		var discount *dto.PromotionDiscount
		if req.PromotionDiscount != nil {
			discount, err = s.verifyAppliedDiscount(ctx, req)
			if err != nil {
				return err
			}
		}
		if req.HasPromotionCode() {
			promotionService := NewPromotionService(s.ServiceParams)
			discount, err = promotionService.ValidateAndReserve(ctx, dto.ReservePromotionRequest{
				Code:          lo.FromPtr(req.PromotionCode),
				ProviderID:    req.ProviderID,
				ClientID:      req.ClientID,
				AppointmentID: req.AppointmentID,
				BaseAmount:    req.BaseAmount,
			})
			if err != nil {
				return err
			}
		}

		inv = req.ToInvoice(ctx, s.Config.Billing.Currency, s.Config.Billing.InvoiceGracePeriod, discount)
		return s.InvoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"invoice_id", inv.ID,
		"appointment_id", inv.AppointmentID,
		"total_amount", inv.TotalAmount,
		"promotion_id", lo.FromPtr(inv.PromotionID),
	)
	s.publishEvent(ctx, types.EventInvoiceCreated, inv)

	return dto.NewInvoiceResponse(inv), nil
}

// verifyAppliedDiscount accepts a discount only when it names a usage reserved
// for this client and appointment, and recomputes the amount from the promotion.
func (s *invoiceService) verifyAppliedDiscount(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.PromotionDiscount, error) {
	applied := req.PromotionDiscount

	usage, err := s.PromotionUsageRepo.Get(ctx, applied.PromotionUsageID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("The applied promotion has not been reserved").
				WithReportableDetails(map[string]any{
					"promotion_usage_id": applied.PromotionUsageID,
				}).
				Mark(ierr.ErrValidation)
		}
		return nil, err
	}

	if usage.PromotionID != applied.PromotionID ||
		usage.ClientID != req.ClientID ||
		usage.AppointmentID != req.AppointmentID ||
		usage.ProviderID != req.ProviderID {
		return nil, ierr.NewError("promotion usage does not belong to this booking").
			WithHint("The applied promotion was reserved for a different booking").
			WithReportableDetails(map[string]any{
				"promotion_usage_id": usage.ID,
				"appointment_id":     req.AppointmentID,
				"client_id":          req.ClientID,
			}).
			Mark(ierr.ErrValidation)
	}

	p, err := s.PromotionRepo.Get(ctx, usage.PromotionID)
	if err != nil {
		return nil, err
	}

	amount := p.CalculateDiscount(req.BaseAmount)
	if !amount.Equal(applied.DiscountAmount) {
		return nil, ierr.NewError("discount_amount does not match the promotion").
			WithHint("The applied discount does not match the promotion terms").
			WithReportableDetails(map[string]any{
				"promotion_id":    p.ID,
				"discount_amount": applied.DiscountAmount.String(),
				"expected_amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	return &dto.PromotionDiscount{
		PromotionID:      p.ID,
		PromotionUsageID: usage.ID,
		DiscountType:     p.DiscountType,
		Discount:         p.Discount,
		DiscountAmount:   amount,
	}, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return dto.NewInvoiceResponse(inv)
	})
	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *invoiceService) Transition(ctx context.Context, t *invoice.Transition) (*invoice.Invoice, error) {
	if !t.From.CanTransitionTo(t.To) {
		return nil, invalidTransitionError(t.InvoiceID, t.From, t.From, t.To)
	}

	inv, err := s.InvoiceRepo.Get(ctx, t.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus != t.From {
		return nil, invalidTransitionError(inv.ID, inv.InvoiceStatus, t.From, t.To)
	}

	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	if t.UpdatedBy == "" {
		t.UpdatedBy = types.GetUserID(ctx)
	}

	ok, err := s.InvoiceRepo.Transition(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost the race against another transition out of t.From
		current, err := s.InvoiceRepo.Get(ctx, t.InvoiceID)
		if err != nil {
			return nil, err
		}
		return nil, invalidTransitionError(current.ID, current.InvoiceStatus, t.From, t.To)
	}

	inv.Apply(t)

	s.Logger.Debugw("invoice transitioned",
		"invoice_id", inv.ID,
		"from", t.From,
		"to", t.To,
	)
	return inv, nil
}

func (s *invoiceService) ExpireOverdue(ctx context.Context, now time.Time) ([]*invoice.Invoice, error) {
	now = now.UTC()
	filter := types.NewNoLimitInvoiceFilter()
	filter.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusPending}
	filter.DueBefore = &now
	if size := s.Config.Sweeper.BatchSize; size > 0 {
		filter.QueryFilter.Limit = lo.ToPtr(size)
		filter.QueryFilter.Sort = lo.ToPtr("due_date")
		filter.QueryFilter.Order = lo.ToPtr(types.OrderAsc)
	}

	candidates, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []*invoice.Invoice{}, nil
	}

	var (
		mu      sync.Mutex
		expired = make([]*invoice.Invoice, 0, len(candidates))
	)

	p := pool.New().WithMaxGoroutines(max(s.Config.Sweeper.Concurrency, 1))
	for _, candidate := range candidates {
		p.Go(func() {
			inv, err := s.expireOne(ctx, candidate, now)
			if err != nil {
				s.Logger.Errorw("failed to expire invoice",
					"invoice_id", candidate.ID,
					"error", err,
				)
				return
			}
			if inv == nil {
				return
			}
			mu.Lock()
			expired = append(expired, inv)
			mu.Unlock()
		})
	}
	p.Wait()

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].DueDate.Before(*expired[j].DueDate)
	})

	for _, inv := range expired {
		s.publishEvent(ctx, types.EventInvoiceCanceled, inv)
	}

	s.Logger.Infow("expired overdue invoices",
		"candidates", len(candidates),
		"expired", len(expired),
	)
	return expired, nil
}

// expireOne cancels a single overdue invoice. It returns nil without error when
// the invoice left PENDING in the meantime, e.g. because it was just settled.
func (s *invoiceService) expireOne(ctx context.Context, candidate *invoice.Invoice, now time.Time) (*invoice.Invoice, error) {
	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.Transition(ctx, &invoice.Transition{
			InvoiceID:    candidate.ID,
			From:         types.InvoiceStatusPending,
			To:           types.InvoiceStatusCanceled,
			At:           now,
			CancelReason: lo.ToPtr(types.InvoiceCancelReasonExpired),
		})
		if err != nil {
			return err
		}

		if inv.PromotionUsageID != nil {
			promotionService := NewPromotionService(s.ServiceParams)
			return promotionService.ReleaseUsage(ctx, []string{*inv.PromotionUsageID})
		}
		return nil
	})
	if err != nil {
		if ierr.IsInvalidTransition(err) {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

func invalidTransitionError(invoiceID string, current, from, to types.InvoiceStatus) error {
	return ierr.NewErrorf("invoice cannot move from %s to %s", from, to).
		WithHintf("Invoice is %s and cannot become %s", current, to).
		WithReportableDetails(map[string]any{
			"invoice_id":     invoiceID,
			"current_status": current,
			"from":           from,
			"to":             to,
		}).
		Mark(ierr.ErrInvalidTransition)
}
