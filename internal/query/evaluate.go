package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crmock/crmock/internal/faults"
	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/record"
)

// row is one working tuple: the root entity plus any already-joined
// entities, keyed by join alias. The root lives under "". A nil entry is
// an unmatched left-outer join.
type row map[string]*record.Entity

// evaluator carries the per-query evaluation context. Defensive cases
// (null operand in text/set operators, empty candidate lists) are silent
// non-matches; genuine type incompatibilities are faults.
type evaluator struct {
	meta   metadata.Provider // may be nil
	fiscal FiscalSettings
	loc    *time.Location
	now    time.Time
}

// evalNode walks the filter tree for one row. AND/OR short-circuit.
func (ev *evaluator) evalNode(r row, n Node) (bool, error) {
	switch node := n.(type) {
	case nil:
		return true, nil
	case And:
		for _, child := range node.Children {
			ok, err := ev.evalNode(r, child)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case *And:
		return ev.evalNode(r, *node)
	case Or:
		for _, child := range node.Children {
			ok, err := ev.evalNode(r, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case *Or:
		return ev.evalNode(r, *node)
	case Condition:
		return ev.evalCondition(r, node)
	case *Condition:
		return ev.evalCondition(r, *node)
	default:
		return false, faults.Validation("unknown filter node type %T", n)
	}
}

// evalCondition applies one operator to one attribute of the row.
func (ev *evaluator) evalCondition(r row, c Condition) (bool, error) {
	ent := r[c.Alias]
	var lhs record.Value
	if ent != nil {
		if v, ok := ent.Get(c.Attribute); ok {
			lhs = record.Unwrap(v)
		}
	}

	values, err := ev.operandValues(r, ent, c)
	if err != nil {
		return false, err
	}

	switch c.Operator {
	case OpNull:
		return record.IsNull(lhs), nil
	case OpNotNull:
		return !record.IsNull(lhs), nil
	}

	// Every remaining operator treats an unset attribute as a non-match.
	if record.IsNull(lhs) {
		return false, nil
	}

	switch c.Operator {
	case OpEq:
		return record.Equal(lhs, values[0])
	case OpNe:
		ok, err := record.Equal(lhs, values[0])
		return !ok && err == nil, err
	case OpGt, OpGe, OpLt, OpLe:
		if record.IsNull(values[0]) {
			return false, nil
		}
		cmp, err := record.Compare(lhs, values[0])
		if err != nil {
			return false, err
		}
		switch c.Operator {
		case OpGt:
			return cmp > 0, nil
		case OpGe:
			return cmp >= 0, nil
		case OpLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}

	case OpLike, OpNotLike:
		s, ok := textOperand(lhs)
		if !ok {
			return false, nil
		}
		pattern, ok := textOperand(record.Unwrap(values[0]))
		if !ok {
			return false, nil
		}
		match, err := matchWildcard(pattern, s)
		if err != nil {
			return false, err
		}
		if c.Operator == OpNotLike {
			return !match, nil
		}
		return match, nil

	case OpBeginsWith, OpNotBeginWith, OpEndsWith, OpNotEndWith, OpContains, OpDoesNotContain:
		s, ok := textOperand(lhs)
		if !ok {
			return false, nil
		}
		fragment, ok := textOperand(record.Unwrap(values[0]))
		if !ok {
			return false, nil
		}
		folded, fragment := record.Fold(s), record.Fold(fragment)
		var match bool
		switch c.Operator {
		case OpBeginsWith, OpNotBeginWith:
			match = strings.HasPrefix(folded, fragment)
		case OpEndsWith, OpNotEndWith:
			match = strings.HasSuffix(folded, fragment)
		default:
			match = strings.Contains(folded, fragment)
		}
		switch c.Operator {
		case OpNotBeginWith, OpNotEndWith, OpDoesNotContain:
			return !match, nil
		default:
			return match, nil
		}

	case OpIn, OpNotIn:
		// An empty candidate list yields no matches without raising,
		// for both membership directions.
		if len(values) == 0 {
			return false, nil
		}
		for _, v := range values {
			ok, err := record.Equal(lhs, v)
			if err != nil {
				return false, err
			}
			if ok {
				return c.Operator == OpIn, nil
			}
		}
		return c.Operator == OpNotIn, nil

	case OpBetween, OpNotBetween:
		match, err := ev.evalBetween(lhs, values)
		if err != nil {
			return false, err
		}
		if c.Operator == OpNotBetween {
			return !match, nil
		}
		return match, nil

	case OpOn, OpOnOrBefore, OpOnOrAfter:
		t, ok := ev.timeOperand(lhs)
		if !ok {
			return false, faults.TypeMismatch("operator %s requires a date-time attribute", c.Operator)
		}
		day, ok := ev.timeOperand(record.Unwrap(values[0]))
		if !ok {
			return false, faults.TypeMismatch("operator %s requires a date value", c.Operator)
		}
		start, end := dayRange(day)
		switch c.Operator {
		case OpOn:
			return !t.Before(start) && t.Before(end), nil
		case OpOnOrBefore:
			return t.Before(end), nil
		default:
			return !t.Before(start), nil
		}

	default:
		return ev.evalRelativeDate(lhs, c.Operator, values)
	}
}

// evalBetween covers numeric and date-time ranges. Date ranges close the
// end bound at the last instant of the end day.
func (ev *evaluator) evalBetween(lhs record.Value, values []record.Value) (bool, error) {
	if t, ok := ev.timeOperand(lhs); ok {
		lo, okLo := ev.timeOperand(record.Unwrap(values[0]))
		hi, okHi := ev.timeOperand(record.Unwrap(values[1]))
		if !okLo || !okHi {
			return false, faults.TypeMismatch("between on a date-time attribute requires date values")
		}
		_, end := dayRange(hi)
		return !t.Before(lo) && t.Before(end), nil
	}

	cmpLo, err := record.Compare(lhs, record.Unwrap(values[0]))
	if err != nil {
		return false, err
	}
	cmpHi, err := record.Compare(lhs, record.Unwrap(values[1]))
	if err != nil {
		return false, err
	}
	return cmpLo >= 0 && cmpHi <= 0, nil
}

// evalRelativeDate handles the today/week/month/year and fiscal family.
func (ev *evaluator) evalRelativeDate(lhs record.Value, op Operator, values []record.Value) (bool, error) {
	t, ok := ev.timeOperand(lhs)
	if !ok {
		return false, faults.TypeMismatch("operator %s requires a date-time attribute", op)
	}
	now := ev.now.In(ev.loc)

	var start, end time.Time
	switch op {
	case OpToday:
		start, end = dayRange(now)
	case OpYesterday:
		start, end = dayRange(now.AddDate(0, 0, -1))
	case OpTomorrow:
		start, end = dayRange(now.AddDate(0, 0, 1))
	case OpThisWeek:
		start, end = weekRange(now)
	case OpLastWeek:
		start, end = weekRange(now.AddDate(0, 0, -7))
	case OpNextWeek:
		start, end = weekRange(now.AddDate(0, 0, 7))
	case OpThisMonth:
		start, end = monthRange(now)
	case OpLastMonth:
		start, end = monthRange(now.AddDate(0, -1, 0))
	case OpNextMonth:
		start, end = monthRange(now.AddDate(0, 1, 0))
	case OpThisYear:
		start, end = yearRange(now)
	case OpLastYear:
		start, end = yearRange(now.AddDate(-1, 0, 0))
	case OpNextYear:
		start, end = yearRange(now.AddDate(1, 0, 0))

	case OpLastXDays, OpNextXDays, OpLastXMonths, OpNextXMonths, OpLastXYears, OpNextXYears, OpOlderThanXMonths, OpInFiscalYear:
		x, err := intOperand(values[0])
		if err != nil {
			return false, err
		}
		switch op {
		case OpLastXDays:
			start = startOfDay(now.AddDate(0, 0, -x))
			_, end = dayRange(now)
		case OpNextXDays:
			start, _ = dayRange(now)
			_, end = dayRange(now.AddDate(0, 0, x))
		case OpLastXMonths:
			start = startOfDay(now.AddDate(0, -x, 0))
			_, end = dayRange(now)
		case OpNextXMonths:
			start, _ = dayRange(now)
			_, end = dayRange(now.AddDate(0, x, 0))
		case OpLastXYears:
			start = startOfDay(now.AddDate(-x, 0, 0))
			_, end = dayRange(now)
		case OpNextXYears:
			start, _ = dayRange(now)
			_, end = dayRange(now.AddDate(x, 0, 0))
		case OpOlderThanXMonths:
			return t.Before(startOfDay(now.AddDate(0, -x, 0))), nil
		case OpInFiscalYear:
			start, end = ev.fiscal.YearRangeFor(x, ev.loc)
		}

	case OpThisFiscalYear:
		start, end = ev.fiscal.YearRange(now)
	case OpLastFiscalYear:
		start, end = ev.fiscal.PreviousYearRange(now)
	case OpNextFiscalYear:
		start, end = ev.fiscal.NextYearRange(now)
	case OpThisFiscalPeriod:
		start, end = ev.fiscal.PeriodRange(now)
	case OpLastFiscalPeriod:
		start, end = ev.fiscal.PreviousPeriodRange(now)
	case OpNextFiscalPeriod:
		start, end = ev.fiscal.NextPeriodRange(now)

	default:
		return false, faults.Validation("unsupported condition operator %q", op)
	}

	return !t.Before(start) && t.Before(end), nil
}

// operandValues resolves the comparison operands: either the other
// attribute of a column-to-column condition, or the literal values with
// attribute-type-driven coercion applied.
func (ev *evaluator) operandValues(r row, ent *record.Entity, c Condition) ([]record.Value, error) {
	if c.ValueOf != "" {
		other := r[c.ValueOfAlias]
		var v record.Value
		if other != nil {
			if ov, ok := other.Get(c.ValueOf); ok {
				v = record.Unwrap(ov)
			}
		}
		if v == nil {
			v = record.Null{}
		}
		return []record.Value{v}, nil
	}

	arity := operatorArity[c.Operator]
	if arity >= 0 && len(c.Values) != arity {
		return nil, faults.Validation("operator %s requires %d value(s), got %d", c.Operator, arity, len(c.Values))
	}

	entityType := ""
	if ent != nil {
		entityType = ent.Type
	}
	out := make([]record.Value, len(c.Values))
	for i, v := range c.Values {
		coerced, err := ev.coerceLiteral(entityType, c.Attribute, v)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

// coerceLiteral converts a string literal (as parsed from markup) into the
// attribute's declared type when the Metadata Provider knows it. Values
// that already carry a kind pass through unchanged.
func (ev *evaluator) coerceLiteral(entityType, attribute string, v record.Value) (record.Value, error) {
	s, isString := v.(record.String)
	if !isString || ev.meta == nil || entityType == "" {
		return v, nil
	}
	am, ok := ev.meta.Attribute(entityType, attribute)
	if !ok {
		return v, nil
	}

	lit := string(s)
	switch am.Type {
	case metadata.TypeInteger:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, faults.TypeMismatch("value %q is not an integer for attribute %s.%s", lit, entityType, attribute)
		}
		return record.Int(n), nil
	case metadata.TypeDecimal:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, faults.TypeMismatch("value %q is not a decimal for attribute %s.%s", lit, entityType, attribute)
		}
		return record.Float(f), nil
	case metadata.TypeMoney:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, faults.TypeMismatch("value %q is not a money amount for attribute %s.%s", lit, entityType, attribute)
		}
		return record.Money(f), nil
	case metadata.TypeOptionSet:
		n, err := strconv.Atoi(lit)
		if err != nil {
			return nil, faults.TypeMismatch("value %q is not an option code for attribute %s.%s", lit, entityType, attribute)
		}
		return record.Option(n), nil
	case metadata.TypeBoolean:
		switch record.Fold(lit) {
		case "true", "1":
			return record.Bool(true), nil
		case "false", "0":
			return record.Bool(false), nil
		}
		return nil, faults.TypeMismatch("value %q is not a boolean for attribute %s.%s", lit, entityType, attribute)
	case metadata.TypeDateTime:
		if t, ok := ev.parseTimeLiteral(lit); ok {
			return record.NewTime(t), nil
		}
		return nil, faults.TypeMismatch("value %q is not a date-time for attribute %s.%s", lit, entityType, attribute)
	case metadata.TypeUniqueID, metadata.TypeLookup:
		id, err := uuid.Parse(lit)
		if err != nil {
			return nil, faults.TypeMismatch("value %q is not an identifier for attribute %s.%s", lit, entityType, attribute)
		}
		return record.GUID(id), nil
	default:
		return v, nil
	}
}

// timeOperand extracts a time from a value, interpreting date-only string
// literals in the engine's configured time zone and normalizing everything
// into it before comparing.
func (ev *evaluator) timeOperand(v record.Value) (time.Time, bool) {
	switch tv := v.(type) {
	case record.Time:
		return tv.Std().In(ev.loc), true
	case record.String:
		if t, ok := ev.parseTimeLiteral(string(tv)); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func (ev *evaluator) parseTimeLiteral(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(ev.loc), true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, ev.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// textOperand extracts text for the matching operators. Non-text values
// are silent non-matches, never faults.
func textOperand(v record.Value) (string, bool) {
	s, ok := v.(record.String)
	return string(s), ok
}

// intOperand extracts the integer argument of a last-x/next-x operator.
func intOperand(v record.Value) (int, error) {
	switch nv := record.Unwrap(v).(type) {
	case record.Int:
		return int(nv), nil
	case record.Float:
		return int(nv), nil
	case record.String:
		n, err := strconv.Atoi(strings.TrimSpace(string(nv)))
		if err == nil {
			return n, nil
		}
	}
	return 0, faults.TypeMismatch("operator argument %v is not an integer", record.ToJSONValue(v))
}
