package postgres

import (
	"context"

	"github.com/flexprice/bookingpay/internal/domain/refund"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/types"
)

type refundRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewRefundRepository creates a new instance of refund request repository
func NewRefundRepository(db *postgres.DB, logger *logger.Logger) refund.Repository {
	return &refundRepository{
		db:     db,
		logger: logger,
	}
}

func (r *refundRepository) Create(ctx context.Context, req *refund.Request) error {
	query := `
		INSERT INTO refund_requests (
			id, tenant_id, invoice_id, client_id, refund_reason, refund_status, amount,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :invoice_id, :client_id, :refund_reason, :refund_status, :amount,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	_, err := r.db.NamedExecContext(ctx, query, req)
	return mapError(err, "refund request", map[string]any{
		"invoice_id": req.InvoiceID,
	})
}

func (r *refundRepository) Get(ctx context.Context, id string) (*refund.Request, error) {
	query := `
		SELECT * FROM refund_requests
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"id":        id,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var req refund.Request
	if err := r.db.NamedGetContext(ctx, &req, query, params); err != nil {
		return nil, mapError(err, "refund request", map[string]any{"refund_request_id": id})
	}
	return &req, nil
}

func (r *refundRepository) GetPendingByInvoice(ctx context.Context, invoiceID string) (*refund.Request, error) {
	query := `
		SELECT * FROM refund_requests
		WHERE invoice_id = :invoice_id
		AND refund_status = :refund_status
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"invoice_id":    invoiceID,
		"refund_status": types.RefundStatusPending,
		"tenant_id":     types.GetTenantID(ctx),
		"status":        types.StatusPublished,
	}

	var req refund.Request
	if err := r.db.NamedGetContext(ctx, &req, query, params); err != nil {
		return nil, mapError(err, "refund request", map[string]any{"invoice_id": invoiceID})
	}
	return &req, nil
}

func (r *refundRepository) List(ctx context.Context, filter *types.RefundRequestFilter) ([]*refund.Request, error) {
	w := newWhereBuilder(types.GetTenantID(ctx))
	if filter != nil {
		if filter.InvoiceID != "" {
			w.add("invoice_id = :invoice_id", "invoice_id", filter.InvoiceID)
		}
		if filter.ClientID != "" {
			w.add("client_id = :client_id", "client_id", filter.ClientID)
		}
		if len(filter.RefundStatus) > 0 {
			w.add("refund_status IN (:refund_status)", "refund_status", filter.RefundStatus)
		}
	}

	query := "SELECT * FROM refund_requests " + w.sql()
	if filter != nil {
		query += queryFilterPage(filter.QueryFilter, "created_at", "adjudicated_at")
	}

	var requests []*refund.Request
	if err := r.db.NamedSelectContext(ctx, &requests, query, w.params); err != nil {
		return nil, mapError(err, "refund request", nil)
	}
	return requests, nil
}

func (r *refundRepository) Adjudicate(ctx context.Context, a *refund.Adjudication) (bool, error) {
	query := `
		UPDATE refund_requests
		SET
			refund_status = :to_status,
			adjudicator_user_id = :adjudicator_user_id,
			reject_reason = :reject_reason,
			processor_refund_id = :processor_refund_id,
			adjudicated_at = :at,
			updated_at = :at,
			updated_by = :adjudicator_user_id
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND refund_status = :from_status`

	params := map[string]interface{}{
		"id":                  a.RequestID,
		"tenant_id":           types.GetTenantID(ctx),
		"from_status":         types.RefundStatusPending,
		"to_status":           a.To,
		"adjudicator_user_id": a.AdjudicatorUserID,
		"reject_reason":       a.RejectReason,
		"processor_refund_id": a.ProcessorRefundID,
		"at":                  a.At,
	}

	r.logger.Debugw("adjudicating refund request",
		"refund_request_id", a.RequestID,
		"to", a.To,
	)

	res, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return false, mapError(err, "refund request", map[string]any{"refund_request_id": a.RequestID})
	}
	return affected(res)
}
