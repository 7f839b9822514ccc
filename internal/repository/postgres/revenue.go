package postgres

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/domain/revenue"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
)

type revenueRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewRevenueRepository creates a new instance of revenue repository
func NewRevenueRepository(db *postgres.DB, logger *logger.Logger) revenue.Repository {
	return &revenueRepository{
		db:     db,
		logger: logger,
	}
}

// Mutate runs inside the caller's transaction when there is one; the row lock
// taken by SELECT ... FOR UPDATE is held until that transaction ends.
func (r *revenueRepository) Mutate(ctx context.Context, providerID string, month time.Time, fn revenue.MutateFunc) (*revenue.Revenue, error) {
	month = types.MonthStart(month)
	var result *revenue.Revenue

	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		base := types.GetDefaultBaseModel(ctx)
		seed := &revenue.Revenue{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REVENUE),
			ProviderID:  providerID,
			Month:       month,
			TotalIncome: decimal.Zero,
			Commission:  decimal.Zero,
			NetIncome:   decimal.Zero,
			BaseModel:   base,
		}

		insert := `
			INSERT INTO revenues (
				id, tenant_id, provider_id, month, total_income, commission, net_income, inconsistent,
				status, created_at, updated_at, created_by, updated_by
			) VALUES (
				:id, :tenant_id, :provider_id, :month, :total_income, :commission, :net_income, :inconsistent,
				:status, :created_at, :updated_at, :created_by, :updated_by
			)
			ON CONFLICT (tenant_id, provider_id, month) DO NOTHING`
		if _, err := r.db.NamedExecContext(ctx, insert, seed); err != nil {
			return mapError(err, "revenue", map[string]any{"provider_id": providerID, "month": month})
		}

		lock := `
			SELECT * FROM revenues
			WHERE tenant_id = :tenant_id
			AND provider_id = :provider_id
			AND month = :month
			FOR UPDATE`
		params := map[string]interface{}{
			"tenant_id":   types.GetTenantID(ctx),
			"provider_id": providerID,
			"month":       month,
		}

		var row revenue.Revenue
		if err := r.db.NamedGetContext(ctx, &row, lock, params); err != nil {
			return mapError(err, "revenue", map[string]any{"provider_id": providerID, "month": month})
		}

		if err := fn(&row); err != nil {
			return err
		}

		row.Touch(ctx, time.Now())

		update := `
			UPDATE revenues
			SET
				total_income = :total_income,
				commission = :commission,
				net_income = :net_income,
				inconsistent = :inconsistent,
				updated_at = :updated_at,
				updated_by = :updated_by
			WHERE id = :id`
		if _, err := r.db.NamedExecContext(ctx, update, &row); err != nil {
			return mapError(err, "revenue", map[string]any{"revenue_id": row.ID})
		}

		result = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *revenueRepository) Get(ctx context.Context, providerID string, month time.Time) (*revenue.Revenue, error) {
	query := `
		SELECT * FROM revenues
		WHERE tenant_id = :tenant_id
		AND provider_id = :provider_id
		AND month = :month
		AND status = :status`

	params := map[string]interface{}{
		"tenant_id":   types.GetTenantID(ctx),
		"provider_id": providerID,
		"month":       types.MonthStart(month),
		"status":      types.StatusPublished,
	}

	var rev revenue.Revenue
	if err := r.db.NamedGetContext(ctx, &rev, query, params); err != nil {
		return nil, mapError(err, "revenue", map[string]any{
			"provider_id": providerID,
			"month":       types.MonthStart(month),
		})
	}
	return &rev, nil
}

func (r *revenueRepository) List(ctx context.Context, filter *types.RevenueFilter) ([]*revenue.Revenue, error) {
	w := newWhereBuilder(types.GetTenantID(ctx))
	if filter != nil {
		if len(filter.ProviderIDs) > 0 {
			w.add("provider_id IN (:provider_ids)", "provider_ids", filter.ProviderIDs)
		}
		from, to := filter.MonthRange()
		if from != nil {
			w.add("month >= :from_month", "from_month", *from)
		}
		if to != nil {
			w.add("month <= :to_month", "to_month", *to)
		}
	}

	query := "SELECT * FROM revenues " + w.sql()
	if filter != nil {
		query += queryFilterPage(filter.QueryFilter, "month", "total_income")
	}

	var revenues []*revenue.Revenue
	if err := r.db.NamedSelectContext(ctx, &revenues, query, w.params); err != nil {
		return nil, mapError(err, "revenue", nil)
	}
	return revenues, nil
}
