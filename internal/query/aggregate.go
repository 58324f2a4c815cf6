package query

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crmock/crmock/internal/faults"
	"github.com/crmock/crmock/internal/record"
)

// aggregate groups surviving tuples by the requested attributes and
// computes the aggregates per group. Groups appear in first-seen order.
func aggregate(p *Plan, rows []row) ([]*record.Entity, error) {
	agg := p.Aggregation

	type group struct {
		values []record.Value
		rows   []row
	}
	var order []string
	groups := make(map[string]*group)

	for _, r := range rows {
		values := make([]record.Value, len(agg.Groups))
		key := ""
		for i, g := range agg.Groups {
			v := attributeOf(r, g.EntityAlias, g.Attribute)
			values[i] = v
			key += groupKey(v) + "\x00"
		}
		grp, ok := groups[key]
		if !ok {
			grp = &group{values: values}
			groups[key] = grp
			order = append(order, key)
		}
		grp.rows = append(grp.rows, r)
	}

	// A plan with no group-by aggregates the whole set into one row,
	// even when it is empty.
	if len(agg.Groups) == 0 && len(order) == 0 {
		groups[""] = &group{}
		order = append(order, "")
	}

	out := make([]*record.Entity, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		e := record.NewWithID(p.EntityType, uuid.New())
		for i, g := range agg.Groups {
			alias := g.Alias
			if alias == "" {
				alias = g.Attribute
			}
			v := grp.values[i]
			if v == nil {
				v = record.Null{}
			}
			e.Set(alias, v)
		}
		for _, col := range agg.Columns {
			v, err := computeAggregate(col, grp.rows)
			if err != nil {
				return nil, err
			}
			alias := col.Alias
			if alias == "" {
				alias = col.Attribute
			}
			e.Set(alias, v)
		}
		out = append(out, e)
	}
	return out, nil
}

// groupKey produces a canonical key so enumeration and reference values
// group by underlying code/id, not object identity.
func groupKey(v record.Value) string {
	switch val := record.Unwrap(v).(type) {
	case nil, record.Null:
		return "~"
	case record.String:
		return "s:" + record.Fold(string(val))
	case record.Int:
		return fmt.Sprintf("i:%d", int64(val))
	case record.Float:
		return fmt.Sprintf("f:%g", float64(val))
	case record.Bool:
		return fmt.Sprintf("b:%t", bool(val))
	case record.Time:
		return "t:" + val.Std().UTC().Format(time.RFC3339Nano)
	case record.GUID:
		return "g:" + val.UUID().String()
	case record.Ref:
		return "r:" + val.ID.String()
	case record.Option:
		return fmt.Sprintf("o:%d", int(val))
	case record.Money:
		return fmt.Sprintf("m:%g", float64(val))
	default:
		return fmt.Sprintf("?:%v", val)
	}
}

// computeAggregate evaluates one aggregate column over a group.
func computeAggregate(col AggregateColumn, rows []row) (record.Value, error) {
	if col.Fn == AggCount {
		return record.Int(len(rows)), nil
	}

	var values []record.Value
	for _, r := range rows {
		v := attributeOf(r, col.EntityAlias, col.Attribute)
		if record.IsNull(v) {
			continue
		}
		values = append(values, v)
	}

	switch col.Fn {
	case AggCountColumn:
		return record.Int(len(values)), nil

	case AggSum, AggAvg:
		sum := 0.0
		money := len(values) > 0
		for _, v := range values {
			f, ok := numericValue(v)
			if !ok {
				return nil, faults.TypeMismatch("aggregate %s over non-numeric attribute %q", col.Fn, col.Attribute)
			}
			if _, isMoney := v.(record.Money); !isMoney {
				money = false
			}
			sum += f
		}
		if col.Fn == AggAvg {
			if len(values) == 0 {
				return record.Null{}, nil
			}
			sum /= float64(len(values))
		}
		if money {
			return record.Money(sum), nil
		}
		return record.Float(sum), nil

	case AggMin, AggMax:
		if len(values) == 0 {
			return record.Null{}, nil
		}
		best := values[0]
		for _, v := range values[1:] {
			cmp, err := record.Compare(v, best)
			if err != nil {
				return nil, err
			}
			if (col.Fn == AggMin && cmp < 0) || (col.Fn == AggMax && cmp > 0) {
				best = v
			}
		}
		return best, nil

	default:
		return nil, faults.Validation("unknown aggregate function %q", col.Fn)
	}
}

func numericValue(v record.Value) (float64, bool) {
	switch nv := v.(type) {
	case record.Int:
		return float64(nv), true
	case record.Float:
		return float64(nv), true
	case record.Money:
		return float64(nv), true
	case record.Option:
		return float64(nv), true
	default:
		return 0, false
	}
}
