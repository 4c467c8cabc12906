package memory

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

type fieldSet[T any] map[string]func(T) interface{}

// search applies q to items, which must already be ordered by id.
func search[T any](items []T, fields fieldSet[T], q ports.Query) ([]T, error) {
	for _, c := range q.Conditions {
		if _, ok := fields[c.Field]; !ok {
			return nil, entities.ErrInvalidInput.Withf("unknown filter field %q", c.Field)
		}
	}
	for _, o := range q.Orders {
		if _, ok := fields[o.Field]; !ok {
			return nil, entities.ErrInvalidInput.Withf("unknown order field %q", o.Field)
		}
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := matchAll(item, fields, q.Conditions)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}

	if len(q.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Orders {
				get := fields[o.Field]
				c := compare(canonical(get(out[i])), canonical(get(out[j])))
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []T{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchAll[T any](item T, fields fieldSet[T], conds []ports.Condition) (bool, error) {
	for _, c := range conds {
		v := canonical(fields[c.Field](item))
		switch c.Op {
		case ports.OpEq:
			if compare(v, canonical(c.Value)) != 0 {
				return false, nil
			}
		case ports.OpIn:
			rv := reflect.ValueOf(c.Value)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				return false, entities.ErrInvalidInput.Withf("filter %q: in expects a list", c.Field)
			}
			found := false
			for i := 0; i < rv.Len(); i++ {
				w := canonical(rv.Index(i).Interface())
				if v != nil && w != nil && compare(v, w) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case ports.OpILike:
			if v == nil {
				return false, nil
			}
			needle := strings.ToLower(fmt.Sprint(c.Value))
			if !strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
				return false, nil
			}
		case ports.OpIsNull:
			if v != nil {
				return false, nil
			}
		case ports.OpNotNull:
			if v == nil {
				return false, nil
			}
		default:
			return false, entities.ErrInvalidInput.Withf("unknown operator %q", c.Op)
		}
	}
	return true, nil
}

// canonical folds the many shapes a field value can take into int64,
// float64, string, bool, time.Time or nil.
func canonical(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case uuid.UUID:
		return x.String()
	case *uuid.UUID:
		if x == nil {
			return nil
		}
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return canonical(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// compare orders nil first, then by value. Mixed numeric kinds compare as floats.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y)
		case float64:
			return cmpOrdered(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmpOrdered(x, y)
		case int64:
			return cmpOrdered(x, float64(y))
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[N int64 | float64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
