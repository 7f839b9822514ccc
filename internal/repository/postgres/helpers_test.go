package postgres

import (
	"database/sql"
	"testing"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	tests := []struct {
		name    string
		sort    string
		order   string
		limit   int
		offset  int
		allowed []string
		want    string
	}{
		{
			name:  "defaults to created_at",
			sort:  "amount",
			order: "desc",
			limit: 50,
			want:  " ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 0",
		},
		{
			name:    "allowed column ascending",
			sort:    "due_date",
			order:   "ASC",
			limit:   10,
			offset:  20,
			allowed: []string{"due_date", "issued_date"},
			want:    " ORDER BY due_date ASC, id ASC LIMIT 10 OFFSET 20",
		},
		{
			name:    "column outside allow list is ignored",
			sort:    "total_amount; DROP TABLE invoices",
			order:   "asc",
			allowed: []string{"due_date"},
			want:    " ORDER BY created_at ASC, id ASC",
		},
		{
			name:  "no limit",
			order: "desc",
			want:  " ORDER BY created_at DESC, id DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, page(tt.sort, tt.order, tt.limit, tt.offset, tt.allowed...))
		})
	}
}

func TestQueryFilterPage(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at DESC, id DESC", queryFilterPage(nil))
	assert.Equal(t, " ORDER BY created_at DESC, id DESC", queryFilterPage(types.NewNoLimitQueryFilter()))

	f := types.NewDefaultQueryFilter()
	f.Sort = lo.ToPtr("due_date")
	f.Order = lo.ToPtr(types.OrderAsc)
	assert.Equal(t, " ORDER BY due_date ASC, id ASC LIMIT 50 OFFSET 0", queryFilterPage(f, "due_date"))
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "invoice", nil))

	err := mapError(sql.ErrNoRows, "invoice", map[string]any{"invoice_id": "inv_1"})
	assert.True(t, ierr.IsNotFound(err))

	err = mapError(errors.Wrap(&pq.Error{Code: uniqueViolation, Constraint: "idx_invoices_appointment"}, "insert"), "invoice", nil)
	assert.True(t, ierr.IsAlreadyExists(err))

	err = mapError(errors.New("connection reset"), "invoice", nil)
	assert.True(t, ierr.IsDatabase(err))
	assert.False(t, ierr.IsNotFound(err))
}

func TestWhereBuilder(t *testing.T) {
	w := newWhereBuilder("tenant_1")
	w.add("invoice_status = ANY(:statuses)", "statuses", pq.Array([]string{"PENDING"}))

	assert.Equal(t, "WHERE tenant_id = :tenant_id AND status = :status AND invoice_status = ANY(:statuses)", w.sql())
	assert.Equal(t, "tenant_1", w.params["tenant_id"])
	assert.Equal(t, types.StatusPublished, w.params["status"])
	assert.Contains(t, w.params, "statuses")
}
