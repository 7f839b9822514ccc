package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique index conflict and names the constraint
func isUniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// mapError converts driver errors into the billing taxonomy
func mapError(err error, entity string, details map[string]any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s not found", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	}
	if constraint, ok := isUniqueViolation(err); ok {
		if details == nil {
			details = map[string]any{}
		}
		details["constraint"] = constraint
		return ierr.WithError(err).
			WithHintf("%s already exists", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHintf("Failed to access %s", entity).
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}

// affected returns whether a guarded update matched a row
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to read affected rows").
			Mark(ierr.ErrDatabase)
	}
	return n > 0, nil
}

// whereBuilder accumulates named conditions for list queries
type whereBuilder struct {
	conds  []string
	params map[string]interface{}
}

func newWhereBuilder(tenantID string) *whereBuilder {
	return &whereBuilder{
		conds: []string{"tenant_id = :tenant_id", "status = :status"},
		params: map[string]interface{}{
			"tenant_id": tenantID,
			"status":    types.StatusPublished,
		},
	}
}

func (w *whereBuilder) add(cond, name string, value interface{}) {
	w.conds = append(w.conds, cond)
	w.params[name] = value
}

func (w *whereBuilder) sql() string {
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// page renders ORDER BY / LIMIT / OFFSET for an allow-listed sort column
func page(sort, order string, limit, offset int, allowed ...string) string {
	col := "created_at"
	for _, a := range allowed {
		if a == sort {
			col = sort
		}
	}
	dir := "DESC"
	if strings.EqualFold(order, types.OrderAsc) {
		dir = "ASC"
	}
	s := fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
	if limit > 0 {
		s += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	return s
}

func queryFilterPage(f *types.QueryFilter, allowed ...string) string {
	if f == nil {
		return page(types.FILTER_DEFAULT_SORT, types.FILTER_DEFAULT_ORDER, 0, 0, allowed...)
	}
	return page(f.GetSort(), f.GetOrder(), f.GetLimit(), f.GetOffset(), allowed...)
}
