package ports

import "time"

// Operator is a filter predicate understood by every repository.
type Operator string

const (
	OpEq      Operator = "eq"
	OpIn      Operator = "in"
	OpILike   Operator = "ilike"
	OpIsNull  Operator = "is_null"
	OpNotNull Operator = "not_null"
)

// Condition filters on one field. Value is ignored by OpIsNull and OpNotNull;
// OpIn takes a slice.
type Condition struct {
	Field string
	Op    Operator
	Value interface{}
}

// Order sorts on one field
type Order struct {
	Field string
	Desc  bool
}

// Query is a conjunction of conditions with ordering and paging.
// A zero Limit means no limit.
type Query struct {
	Conditions []Condition
	Orders     []Order
	Limit      int
	Offset     int
}

func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func In(field string, values interface{}) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

func ILike(field, substr string) Condition {
	return Condition{Field: field, Op: OpILike, Value: substr}
}

func IsNull(field string) Condition {
	return Condition{Field: field, Op: OpIsNull}
}

func NotNull(field string) Condition {
	return Condition{Field: field, Op: OpNotNull}
}

// Where starts a query
func Where(conds ...Condition) Query {
	return Query{Conditions: conds}
}

func (q Query) And(conds ...Condition) Query {
	q.Conditions = append(append([]Condition{}, q.Conditions...), conds...)
	return q
}

func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order{}, q.Orders...), Order{Field: field, Desc: desc})
	return q
}

func (q Query) Page(limit, offset int) Query {
	q.Limit = limit
	q.Offset = offset
	return q
}

// Queryable field names
const (
	FieldID          = "id"
	FieldProjectID   = "project_id"
	FieldParentID    = "parent_id"
	FieldName        = "name"
	FieldTitle       = "title"
	FieldCode        = "code"
	FieldStatus      = "status"
	FieldState       = "state"
	FieldTaskID      = "task_id"
	FieldEmployeeID  = "employee_id"
	FieldLineID      = "line_id"
	FieldStart       = "start_time"
	FieldEnd         = "end_time"
	FieldCreatedAt   = "created_at"
	FieldDescription = "description"
)

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
