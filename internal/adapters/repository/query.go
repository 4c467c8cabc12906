package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/lib/pq"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// columns maps the query fields a repository accepts to table columns.
type columns map[string]string

// selectQuery renders q as a SELECT over table. Rows with equal sort keys
// come back in id order.
func selectQuery(base string, cols columns, q ports.Query) (string, []interface{}, error) {
	var (
		sb    strings.Builder
		args  []interface{}
		where []string
	)
	sb.WriteString(base)

	for _, c := range q.Conditions {
		col, ok := cols[c.Field]
		if !ok {
			return "", nil, entities.ErrInvalidInput.Withf("unknown filter field %q", c.Field)
		}
		switch c.Op {
		case ports.OpEq:
			args = append(args, c.Value)
			where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
		case ports.OpIn:
			rv := reflect.ValueOf(c.Value)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				return "", nil, entities.ErrInvalidInput.Withf("filter %q: in expects a list", c.Field)
			}
			args = append(args, pq.Array(c.Value))
			where = append(where, fmt.Sprintf("%s = ANY($%d)", col, len(args)))
		case ports.OpILike:
			args = append(args, "%"+escapeLike(fmt.Sprint(c.Value))+"%")
			where = append(where, fmt.Sprintf("%s ILIKE $%d", col, len(args)))
		case ports.OpIsNull:
			where = append(where, col+" IS NULL")
		case ports.OpNotNull:
			where = append(where, col+" IS NOT NULL")
		default:
			return "", nil, entities.ErrInvalidInput.Withf("unknown operator %q", c.Op)
		}
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	order := make([]string, 0, len(q.Orders)+1)
	for _, o := range q.Orders {
		col, ok := cols[o.Field]
		if !ok {
			return "", nil, entities.ErrInvalidInput.Withf("unknown order field %q", o.Field)
		}
		if o.Desc {
			order = append(order, col+" DESC NULLS LAST")
		} else {
			order = append(order, col+" ASC NULLS FIRST")
		}
	}
	order = append(order, "id ASC")
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(order, ", "))

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	openLineIndex = "timesheet_lines_one_open"
)

var errEmployeeExists = entities.NewConflictError("employee_exists", "an employee is already linked to this user")

// constraintErrors names the domain error behind each constraint in the schema.
var constraintErrors = map[string]*entities.Error{
	openLineIndex:                            entities.ErrTimerConflict,
	"employees_user_id_key":                  errEmployeeExists,
	"tasks_project_id_fkey":                  entities.ErrProjectNotFound,
	"tasks_parent_id_fkey":                   entities.ErrTaskNotFound,
	"timesheet_lines_task_id_fkey":           entities.ErrTaskNotFound,
	"timesheet_lines_employee_id_fkey":       entities.ErrEmployeeNotFound,
	"timesheet_corrections_line_id_fkey":     entities.ErrTimesheetNotFound,
	"timesheet_corrections_employee_id_fkey": entities.ErrEmployeeNotFound,
}

// translate maps driver errors onto domain errors. notFound, when set, is
// returned for sql.ErrNoRows.
func translate(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if known, ok := constraintErrors[pqErr.Constraint]; ok {
			return known.Wrap(err)
		}
		switch pqErr.Code {
		case uniqueViolation:
			return entities.NewConflictError("duplicate", op+": record already exists").Wrap(err)
		case foreignKeyViolation:
			return entities.ErrInvalidInput.Withf("%s: referenced record does not exist", op).Wrap(err)
		}
	}
	return entities.NewPersistenceError(op, err)
}

// expectRow turns a zero row count into notFound.
func expectRow(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return entities.NewPersistenceError(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
