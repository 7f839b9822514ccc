package postgres

import (
	"context"

	"github.com/flexprice/bookingpay/internal/domain/payment"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/types"
)

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPaymentRepository creates a new instance of payment repository
func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (
			id, tenant_id, invoice_id, transaction_id, idempotency_key, amount, currency,
			payment_status, metadata, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :invoice_id, :transaction_id, :idempotency_key, :amount, :currency,
			:payment_status, :metadata, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"transaction_id", p.TransactionID,
	)

	_, err := r.db.NamedExecContext(ctx, query, p)
	return mapError(err, "payment", map[string]any{
		"invoice_id":     p.InvoiceID,
		"transaction_id": p.TransactionID,
	})
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	query := `
		SELECT * FROM payments
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"id":        id,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var p payment.Payment
	if err := r.db.NamedGetContext(ctx, &p, query, params); err != nil {
		return nil, mapError(err, "payment", map[string]any{"payment_id": id})
	}
	return &p, nil
}

// GetByTransactionID is not tenant scoped: processor webhooks arrive without a tenant
func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	query := `
		SELECT * FROM payments
		WHERE transaction_id = :transaction_id
		AND status = :status`

	params := map[string]interface{}{
		"transaction_id": transactionID,
		"status":         types.StatusPublished,
	}

	var p payment.Payment
	if err := r.db.NamedGetContext(ctx, &p, query, params); err != nil {
		return nil, mapError(err, "payment", map[string]any{"transaction_id": transactionID})
	}
	return &p, nil
}

func (r *paymentRepository) where(ctx context.Context, filter *types.PaymentFilter) *whereBuilder {
	w := newWhereBuilder(types.GetTenantID(ctx))
	if filter == nil {
		return w
	}
	if len(filter.PaymentIDs) > 0 {
		w.add("id IN (:payment_ids)", "payment_ids", filter.PaymentIDs)
	}
	if filter.InvoiceID != "" {
		w.add("invoice_id = :invoice_id", "invoice_id", filter.InvoiceID)
	}
	if len(filter.PaymentStatus) > 0 {
		w.add("payment_status IN (:payment_status)", "payment_status", filter.PaymentStatus)
	}
	if len(filter.TransactionIDs) > 0 {
		w.add("transaction_id IN (:transaction_ids)", "transaction_ids", filter.TransactionIDs)
	}
	return w
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	w := r.where(ctx, filter)
	query := "SELECT * FROM payments " + w.sql()
	if filter != nil {
		query += queryFilterPage(filter.QueryFilter, "created_at", "amount")
	}

	var payments []*payment.Payment
	if err := r.db.NamedSelectContext(ctx, &payments, query, w.params); err != nil {
		return nil, mapError(err, "payment", nil)
	}
	return payments, nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	w := r.where(ctx, filter)
	var count int
	if err := r.db.NamedGetContext(ctx, &count, "SELECT COUNT(*) FROM payments "+w.sql(), w.params); err != nil {
		return 0, mapError(err, "payment", nil)
	}
	return count, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, u *payment.StatusUpdate) (bool, error) {
	query := `
		UPDATE payments
		SET
			payment_status = :to_status,
			succeeded_at = CASE WHEN :to_status = 'completed' THEN :at ELSE succeeded_at END,
			failed_at = CASE WHEN :to_status = 'failed' THEN :at ELSE failed_at END,
			canceled_at = CASE WHEN :to_status = 'canceled' THEN :at ELSE canceled_at END,
			error_message = COALESCE(:error_message, error_message),
			updated_at = :at
		WHERE id = :id
		AND payment_status = :from_status`

	params := map[string]interface{}{
		"id":            u.PaymentID,
		"from_status":   u.From,
		"to_status":     u.To,
		"at":            u.At,
		"error_message": u.ErrorMessage,
	}

	res, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return false, mapError(err, "payment", map[string]any{"payment_id": u.PaymentID})
	}
	return affected(res)
}
