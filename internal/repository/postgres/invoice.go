package postgres

import (
	"context"

	"github.com/flexprice/bookingpay/internal/domain/invoice"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/types"
)

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewInvoiceRepository creates a new instance of invoice repository
func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, tenant_id, invoice_number, appointment_id, provider_id, client_id, currency,
			base_amount, discount_amount, total_amount, invoice_status,
			promotion_id, promotion_usage_id, issued_date, due_date, version, metadata,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :invoice_number, :appointment_id, :provider_id, :client_id, :currency,
			:base_amount, :discount_amount, :total_amount, :invoice_status,
			:promotion_id, :promotion_usage_id, :issued_date, :due_date, :version, :metadata,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"appointment_id", inv.AppointmentID,
		"tenant_id", inv.TenantID,
	)

	_, err := r.db.NamedExecContext(ctx, query, inv)
	return mapError(err, "invoice", map[string]any{
		"invoice_id":     inv.ID,
		"appointment_id": inv.AppointmentID,
	})
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"id":        id,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var inv invoice.Invoice
	if err := r.db.NamedGetContext(ctx, &inv, query, params); err != nil {
		return nil, mapError(err, "invoice", map[string]any{"invoice_id": id})
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByAppointmentID(ctx context.Context, appointmentID string) (*invoice.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE appointment_id = :appointment_id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"appointment_id": appointmentID,
		"tenant_id":      types.GetTenantID(ctx),
		"status":         types.StatusPublished,
	}

	var inv invoice.Invoice
	if err := r.db.NamedGetContext(ctx, &inv, query, params); err != nil {
		return nil, mapError(err, "invoice", map[string]any{"appointment_id": appointmentID})
	}
	return &inv, nil
}

func (r *invoiceRepository) where(ctx context.Context, filter *types.InvoiceFilter) *whereBuilder {
	w := newWhereBuilder(types.GetTenantID(ctx))
	if filter == nil {
		return w
	}
	if len(filter.InvoiceIDs) > 0 {
		w.add("id IN (:invoice_ids)", "invoice_ids", filter.InvoiceIDs)
	}
	if filter.ProviderID != "" {
		w.add("provider_id = :provider_id", "provider_id", filter.ProviderID)
	}
	if filter.ClientID != "" {
		w.add("client_id = :client_id", "client_id", filter.ClientID)
	}
	if len(filter.AppointmentIDs) > 0 {
		w.add("appointment_id IN (:appointment_ids)", "appointment_ids", filter.AppointmentIDs)
	}
	if len(filter.InvoiceStatus) > 0 {
		w.add("invoice_status IN (:invoice_status)", "invoice_status", filter.InvoiceStatus)
	}
	if filter.DueBefore != nil {
		w.add("due_date < :due_before", "due_before", *filter.DueBefore)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			w.add("issued_date >= :start_time", "start_time", *filter.StartTime)
		}
		if filter.EndTime != nil {
			w.add("issued_date <= :end_time", "end_time", *filter.EndTime)
		}
	}
	return w
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	w := r.where(ctx, filter)
	query := "SELECT * FROM invoices " + w.sql()
	if filter != nil {
		query += queryFilterPage(filter.QueryFilter, "created_at", "issued_date", "due_date", "total_amount")
	}

	var invoices []*invoice.Invoice
	if err := r.db.NamedSelectContext(ctx, &invoices, query, w.params); err != nil {
		return nil, mapError(err, "invoice", nil)
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	w := r.where(ctx, filter)
	var count int
	if err := r.db.NamedGetContext(ctx, &count, "SELECT COUNT(*) FROM invoices "+w.sql(), w.params); err != nil {
		return 0, mapError(err, "invoice", nil)
	}
	return count, nil
}

func (r *invoiceRepository) Transition(ctx context.Context, t *invoice.Transition) (bool, error) {
	query := `
		UPDATE invoices
		SET
			invoice_status = :to_status,
			paid_at = CASE WHEN :to_status = 'PAID' THEN :at ELSE paid_at END,
			canceled_at = CASE WHEN :to_status = 'CANCELED' THEN :at ELSE canceled_at END,
			refunded_at = CASE WHEN :to_status = 'REFUNDED' THEN :at ELSE refunded_at END,
			cancel_reason = COALESCE(:cancel_reason, cancel_reason),
			version = version + 1,
			updated_at = :at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND invoice_status = :from_status`

	params := map[string]interface{}{
		"id":            t.InvoiceID,
		"tenant_id":     types.GetTenantID(ctx),
		"from_status":   t.From,
		"to_status":     t.To,
		"at":            t.At,
		"cancel_reason": t.CancelReason,
		"updated_by":    t.UpdatedBy,
	}

	r.logger.Debugw("transitioning invoice",
		"invoice_id", t.InvoiceID,
		"from", t.From,
		"to", t.To,
	)

	res, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return false, mapError(err, "invoice", map[string]any{"invoice_id": t.InvoiceID})
	}
	return affected(res)
}
