package types

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

// CommonFilter is one condition of the admin invoice listing and the
// statistics endpoint. A filter without a field is a group: its Filters are
// OR-ed together. Callers whitelist columns through Fields before building.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
	Filters  []CommonFilter       `json:"filters"`
}

// Fields lists every column the filter touches, nested groups included.
func (f *CommonFilter) Fields() []string {
	if f == nil {
		return nil
	}
	if f.Field != "" {
		return []string{f.Field}
	}
	var out []string
	for i := range f.Filters {
		out = append(out, f.Filters[i].Fields()...)
	}
	return out
}

// Validate rejects filters that Build could not render.
func (f *CommonFilter) Validate() error {
	if f == nil {
		return fmt.Errorf("nil filter")
	}
	if f.Field == "" {
		if len(f.Filters) == 0 {
			return fmt.Errorf("empty filter group")
		}
		for i := range f.Filters {
			if err := f.Filters[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	switch f.Operator {
	case CommonFilterOperatorEq, CommonFilterOperatorNotEq, CommonFilterOperatorLt, CommonFilterOperatorLte,
		CommonFilterOperatorGt, CommonFilterOperatorGte, CommonFilterOperatorIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("filter %s: no values", f.Field)
		}
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return fmt.Errorf("filter %s: range needs two values", f.Field)
		}
	case CommonFilterOperatorDateRange:
		if len(f.Values) < 2 {
			return fmt.Errorf("filter %s: date_range needs two values", f.Field)
		}
		for _, v := range f.Values[:2] {
			if _, err := filterTime(v); err != nil {
				return fmt.Errorf("filter %s: %w", f.Field, err)
			}
		}
	default:
		return fmt.Errorf("filter %s: unsupported operator %q", f.Field, f.Operator)
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if f.Field == "" {
		if len(f.Filters) == 0 {
			return
		}
		exprs := make([]clause.Expression, 0, len(f.Filters))
		for i := range f.Filters {
			exprs = append(exprs, &f.Filters[i])
		}
		clause.Or(exprs...).Build(builder)
		return
	}
	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		// Half-open [from, to). Bounds are unix seconds or RFC3339 strings.
		if len(f.Values) < 2 {
			return
		}
		from, err := filterTime(f.Values[0])
		if err != nil {
			return
		}
		to, err := filterTime(f.Values[1])
		if err != nil {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: from}, clause.Lt{Column: f.Field, Value: to}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	default:
		return
	}
}

func filterTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case string:
		return time.Parse(time.RFC3339, t)
	case time.Time:
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unsupported time value %T", v)
}
