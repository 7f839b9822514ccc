package postgres

import (
	"context"
	"time"

	"github.com/flexprice/bookingpay/internal/domain/promotion"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
	"github.com/flexprice/bookingpay/internal/types"
)

type promotionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPromotionRepository creates a new instance of promotion repository
func NewPromotionRepository(db *postgres.DB, logger *logger.Logger) promotion.Repository {
	return &promotionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *promotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	query := `
		INSERT INTO promotions (
			id, tenant_id, provider_id, name, discount_code, discount_type, discount,
			max_usage, use_count, start_date, end_date, promotion_status, exclusive_group,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :provider_id, :name, :discount_code, :discount_type, :discount,
			:max_usage, :use_count, :start_date, :end_date, :promotion_status, :exclusive_group,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	_, err := r.db.NamedExecContext(ctx, query, p)
	return mapError(err, "promotion", map[string]any{
		"provider_id":   p.ProviderID,
		"discount_code": p.DiscountCode,
	})
}

func (r *promotionRepository) Get(ctx context.Context, id string) (*promotion.Promotion, error) {
	query := `
		SELECT * FROM promotions
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"id":        id,
		"tenant_id": types.GetTenantID(ctx),
		"status":    types.StatusPublished,
	}

	var p promotion.Promotion
	if err := r.db.NamedGetContext(ctx, &p, query, params); err != nil {
		return nil, mapError(err, "promotion", map[string]any{"promotion_id": id})
	}
	return &p, nil
}

func (r *promotionRepository) GetByCode(ctx context.Context, providerID, code string) (*promotion.Promotion, error) {
	query := `
		SELECT * FROM promotions
		WHERE provider_id = :provider_id
		AND discount_code = :discount_code
		AND tenant_id = :tenant_id
		AND status = :status`

	params := map[string]interface{}{
		"provider_id":   providerID,
		"discount_code": code,
		"tenant_id":     types.GetTenantID(ctx),
		"status":        types.StatusPublished,
	}

	var p promotion.Promotion
	if err := r.db.NamedGetContext(ctx, &p, query, params); err != nil {
		return nil, mapError(err, "promotion", map[string]any{
			"provider_id":   providerID,
			"discount_code": code,
		})
	}
	return &p, nil
}

func (r *promotionRepository) List(ctx context.Context, filter *types.PromotionFilter) ([]*promotion.Promotion, error) {
	w := newWhereBuilder(types.GetTenantID(ctx))
	if filter != nil {
		if len(filter.PromotionIDs) > 0 {
			w.add("id IN (:promotion_ids)", "promotion_ids", filter.PromotionIDs)
		}
		if filter.ProviderID != "" {
			w.add("provider_id = :provider_id", "provider_id", filter.ProviderID)
		}
		if filter.ExclusiveGroup != "" {
			w.add("exclusive_group = :exclusive_group", "exclusive_group", filter.ExclusiveGroup)
		}
		if len(filter.PromotionStatus) > 0 {
			w.add("promotion_status IN (:promotion_status)", "promotion_status", filter.PromotionStatus)
		}
		if filter.EndedBefore != nil {
			w.add("end_date < :ended_before", "ended_before", *filter.EndedBefore)
		}
	}

	query := "SELECT * FROM promotions " + w.sql()
	if filter != nil {
		query += queryFilterPage(filter.QueryFilter, "created_at", "start_date", "end_date")
	}

	var promotions []*promotion.Promotion
	if err := r.db.NamedSelectContext(ctx, &promotions, query, w.params); err != nil {
		return nil, mapError(err, "promotion", nil)
	}
	return promotions, nil
}

func (r *promotionRepository) IncrementUseCount(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE promotions
		SET
			use_count = use_count + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND (max_usage = 0 OR use_count < max_usage)`

	params := map[string]interface{}{
		"id":         id,
		"tenant_id":  types.GetTenantID(ctx),
		"updated_at": time.Now().UTC(),
		"updated_by": types.GetUserID(ctx),
	}

	res, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return false, mapError(err, "promotion", map[string]any{"promotion_id": id})
	}
	return affected(res)
}

func (r *promotionRepository) DecrementUseCount(ctx context.Context, id string) error {
	query := `
		UPDATE promotions
		SET
			use_count = GREATEST(use_count - 1, 0),
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id`

	params := map[string]interface{}{
		"id":         id,
		"tenant_id":  types.GetTenantID(ctx),
		"updated_at": time.Now().UTC(),
		"updated_by": types.GetUserID(ctx),
	}

	_, err := r.db.NamedExecContext(ctx, query, params)
	return mapError(err, "promotion", map[string]any{"promotion_id": id})
}

func (r *promotionRepository) UpdateStatus(ctx context.Context, id string, from, to types.PromotionStatus) (bool, error) {
	query := `
		UPDATE promotions
		SET
			promotion_status = :to_status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND promotion_status = :from_status`

	params := map[string]interface{}{
		"id":          id,
		"tenant_id":   types.GetTenantID(ctx),
		"from_status": from,
		"to_status":   to,
		"updated_at":  time.Now().UTC(),
		"updated_by":  types.GetUserID(ctx),
	}

	res, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return false, mapError(err, "promotion", map[string]any{"promotion_id": id})
	}
	return affected(res)
}

type promotionUsageRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPromotionUsageRepository creates a new instance of promotion usage repository
func NewPromotionUsageRepository(db *postgres.DB, logger *logger.Logger) promotion.UsageRepository {
	return &promotionUsageRepository{
		db:     db,
		logger: logger,
	}
}

func (r *promotionUsageRepository) Create(ctx context.Context, u *promotion.Usage) error {
	query := `
		INSERT INTO promotion_usages (
			id, tenant_id, promotion_id, provider_id, client_id, appointment_id, group_key,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :promotion_id, :provider_id, :client_id, :appointment_id, :group_key,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	_, err := r.db.NamedExecContext(ctx, query, u)
	return mapError(err, "promotion usage", map[string]any{
		"promotion_id": u.PromotionID,
		"client_id":    u.ClientID,
	})
}

func (r *promotionUsageRepository) Get(ctx context.Context, id string) (*promotion.Usage, error) {
	query := `
		SELECT * FROM promotion_usages
		WHERE id = :id
		AND tenant_id = :tenant_id`

	params := map[string]interface{}{
		"id":        id,
		"tenant_id": types.GetTenantID(ctx),
	}

	var u promotion.Usage
	if err := r.db.NamedGetContext(ctx, &u, query, params); err != nil {
		return nil, mapError(err, "promotion usage", map[string]any{"usage_id": id})
	}
	return &u, nil
}

func (r *promotionUsageRepository) ExistsForClient(ctx context.Context, groupKey, clientID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM promotion_usages
			WHERE group_key = :group_key
			AND client_id = :client_id
			AND tenant_id = :tenant_id
		)`

	params := map[string]interface{}{
		"group_key": groupKey,
		"client_id": clientID,
		"tenant_id": types.GetTenantID(ctx),
	}

	var exists bool
	if err := r.db.NamedGetContext(ctx, &exists, query, params); err != nil {
		return false, mapError(err, "promotion usage", nil)
	}
	return exists, nil
}

func (r *promotionUsageRepository) Delete(ctx context.Context, ids []string) ([]*promotion.Usage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		DELETE FROM promotion_usages
		WHERE id IN (:ids)
		AND tenant_id = :tenant_id
		RETURNING *`

	params := map[string]interface{}{
		"ids":       ids,
		"tenant_id": types.GetTenantID(ctx),
	}

	r.logger.Debugw("releasing promotion usages", "usage_ids", ids)

	var deleted []*promotion.Usage
	if err := r.db.NamedSelectContext(ctx, &deleted, query, params); err != nil {
		return nil, mapError(err, "promotion usage", map[string]any{"usage_ids": ids})
	}
	return deleted, nil
}
