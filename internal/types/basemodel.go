package types

import (
	"context"
	"time"
)

// Status is the record status of a row. It is independent of the billing
// lifecycle carried by each entity; billing rows stay published.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

// BaseModel holds the audit columns shared by every billing table.
// Keep it in step with migrations/0001_billing.sql.
type BaseModel struct {
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
}

func GetDefaultBaseModel(ctx context.Context) BaseModel {
	now := time.Now().UTC()
	userID := GetUserID(ctx)
	return BaseModel{
		TenantID:  GetTenantID(ctx),
		Status:    StatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: userID,
		UpdatedBy: userID,
	}
}

// Touch stamps an in-place update made by the caller in ctx
func (b *BaseModel) Touch(ctx context.Context, at time.Time) {
	b.UpdatedAt = at.UTC()
	b.UpdatedBy = GetUserID(ctx)
}
