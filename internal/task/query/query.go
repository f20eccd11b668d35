// Package query turns optional task filters, sorting and pagination into an
// owner-scoped SQL predicate.
package query

import (
	"strings"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/entity"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Sort keys and orders accepted by Filter.
const (
	SortPriority = "priority"
	SortDueDate  = "due_date"
	OrderAsc     = "asc"
	OrderDesc    = "desc"
)

// Filter narrows a task listing. Nil or empty fields impose no constraint;
// the rest combine with AND.
type Filter struct {
	Status    string
	Priority  *int
	ProjectID *int64
	DueDate   *entity.Date
	SortBy    string
	SortOrder string
}

// Page selects a window of the result: skip Skip rows, then take up to Limit.
type Page struct {
	Skip  int
	Limit int
}

// Normalize applies defaults and rejects values the query cannot express.
func Normalize(f Filter, p Page) (Filter, Page, error) {
	f.Status = strings.TrimSpace(f.Status)
	f.SortBy = strings.ToLower(strings.TrimSpace(f.SortBy))
	f.SortOrder = strings.ToLower(strings.TrimSpace(f.SortOrder))
	switch f.SortBy {
	case "", SortPriority, SortDueDate:
	default:
		return f, p, apperr.Invalid("sort_by", "must be priority or due_date")
	}
	switch f.SortOrder {
	case "":
		f.SortOrder = OrderAsc
	case OrderAsc, OrderDesc:
	default:
		return f, p, apperr.Invalid("sort_order", "must be asc or desc")
	}
	if p.Skip < 0 {
		return f, p, apperr.Invalid("skip", "must not be negative")
	}
	if p.Limit < 0 {
		return f, p, apperr.Invalid("limit", "must not be negative")
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return f, p, nil
}

// Build returns the WHERE/ORDER BY/LIMIT tail of a task listing and its
// arguments, using '?' placeholders (rebind before executing). Tasks are
// aliased "t" and their projects "p"; the owner predicate is always present.
func Build(ownerID int64, f Filter, p Page) (string, []any) {
	var sb strings.Builder
	args := []any{ownerID}
	sb.WriteString(" WHERE p.owner_id = ?")
	if f.Status != "" {
		sb.WriteString(" AND t.status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != nil {
		sb.WriteString(" AND t.priority = ?")
		args = append(args, *f.Priority)
	}
	if f.ProjectID != nil {
		sb.WriteString(" AND t.project_id = ?")
		args = append(args, *f.ProjectID)
	}
	if f.DueDate != nil {
		sb.WriteString(" AND t.due_date = ?")
		args = append(args, *f.DueDate)
	}

	dir := "ASC"
	if f.SortOrder == OrderDesc {
		dir = "DESC"
	}
	switch f.SortBy {
	case SortPriority:
		sb.WriteString(" ORDER BY t.priority " + dir + ", t.id")
	case SortDueDate:
		// undated tasks go last whatever the direction
		sb.WriteString(" ORDER BY CASE WHEN t.due_date IS NULL THEN 1 ELSE 0 END, t.due_date " + dir + ", t.id")
	default:
		sb.WriteString(" ORDER BY t.id")
	}
	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, p.Limit, p.Skip)
	return sb.String(), args
}
