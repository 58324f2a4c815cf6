package query

import "fmt"

// Operator identifies one condition operator. The constant values are the
// spellings the markup grammar uses.
type Operator string

const (
	OpEq Operator = "eq"
	OpNe Operator = "ne"
	OpGt Operator = "gt"
	OpGe Operator = "ge"
	OpLt Operator = "lt"
	OpLe Operator = "le"

	OpLike           Operator = "like"
	OpNotLike        Operator = "not-like"
	OpBeginsWith     Operator = "begins-with"
	OpNotBeginWith   Operator = "not-begin-with"
	OpEndsWith       Operator = "ends-with"
	OpNotEndWith     Operator = "not-end-with"
	OpContains       Operator = "contains"
	OpDoesNotContain Operator = "does-not-contain"

	OpIn    Operator = "in"
	OpNotIn Operator = "not-in"

	OpNull    Operator = "null"
	OpNotNull Operator = "not-null"

	OpBetween    Operator = "between"
	OpNotBetween Operator = "not-between"

	OpOn         Operator = "on"
	OpOnOrBefore Operator = "on-or-before"
	OpOnOrAfter  Operator = "on-or-after"

	OpToday     Operator = "today"
	OpYesterday Operator = "yesterday"
	OpTomorrow  Operator = "tomorrow"

	OpThisWeek  Operator = "this-week"
	OpLastWeek  Operator = "last-week"
	OpNextWeek  Operator = "next-week"
	OpThisMonth Operator = "this-month"
	OpLastMonth Operator = "last-month"
	OpNextMonth Operator = "next-month"
	OpThisYear  Operator = "this-year"
	OpLastYear  Operator = "last-year"
	OpNextYear  Operator = "next-year"

	OpLastXDays        Operator = "last-x-days"
	OpNextXDays        Operator = "next-x-days"
	OpLastXMonths      Operator = "last-x-months"
	OpNextXMonths      Operator = "next-x-months"
	OpLastXYears       Operator = "last-x-years"
	OpNextXYears       Operator = "next-x-years"
	OpOlderThanXMonths Operator = "olderthan-x-months"

	OpThisFiscalYear   Operator = "this-fiscal-year"
	OpLastFiscalYear   Operator = "last-fiscal-year"
	OpNextFiscalYear   Operator = "next-fiscal-year"
	OpThisFiscalPeriod Operator = "this-fiscal-period"
	OpLastFiscalPeriod Operator = "last-fiscal-period"
	OpNextFiscalPeriod Operator = "next-fiscal-period"
	OpInFiscalYear     Operator = "in-fiscal-year"
)

// operatorArity maps operators to their required value count.
// -1 means "any count" (set membership).
var operatorArity = map[Operator]int{
	OpEq: 1, OpNe: 1, OpGt: 1, OpGe: 1, OpLt: 1, OpLe: 1,
	OpLike: 1, OpNotLike: 1,
	OpBeginsWith: 1, OpNotBeginWith: 1,
	OpEndsWith: 1, OpNotEndWith: 1,
	OpContains: 1, OpDoesNotContain: 1,
	OpIn: -1, OpNotIn: -1,
	OpNull: 0, OpNotNull: 0,
	OpBetween: 2, OpNotBetween: 2,
	OpOn: 1, OpOnOrBefore: 1, OpOnOrAfter: 1,
	OpToday: 0, OpYesterday: 0, OpTomorrow: 0,
	OpThisWeek: 0, OpLastWeek: 0, OpNextWeek: 0,
	OpThisMonth: 0, OpLastMonth: 0, OpNextMonth: 0,
	OpThisYear: 0, OpLastYear: 0, OpNextYear: 0,
	OpLastXDays: 1, OpNextXDays: 1,
	OpLastXMonths: 1, OpNextXMonths: 1,
	OpLastXYears: 1, OpNextXYears: 1,
	OpOlderThanXMonths: 1,
	OpThisFiscalYear:   0, OpLastFiscalYear: 0, OpNextFiscalYear: 0,
	OpThisFiscalPeriod: 0, OpLastFiscalPeriod: 0, OpNextFiscalPeriod: 0,
	OpInFiscalYear: 1,
}

// ParseOperator resolves a markup operator spelling. "neq" is accepted as
// a legacy alias of "ne".
func ParseOperator(s string) (Operator, error) {
	if s == "neq" {
		return OpNe, nil
	}
	op := Operator(s)
	if _, ok := operatorArity[op]; !ok {
		return "", fmt.Errorf("unknown condition operator %q", s)
	}
	return op, nil
}
