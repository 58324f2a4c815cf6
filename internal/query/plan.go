// Package query translates structured query plans into results against
// the in-memory store: joins in declaration order over row tuples, filter
// tree evaluation through the operator evaluator, optional aggregation,
// ordering, paging and projection.
package query

import "github.com/crmock/crmock/internal/record"

// Plan is the canonical description of one multi-record retrieval. A plan
// exists only for the duration of one retrieval call.
type Plan struct {
	// EntityType is the root entity type.
	EntityType string

	// Columns is the root projection.
	Columns ColumnSet

	// Filter is the root filter tree (nil = all rows).
	Filter Node

	// Joins are applied in declaration order.
	Joins []Join

	// Aggregation, when non-nil, replaces column projection with
	// group-by/aggregate output.
	Aggregation *Aggregation

	// Orders sort the surviving rows before paging.
	Orders []Order

	// Top limits the result count (0 = no limit). Offset skips rows.
	Top    int
	Offset int
}

// ColumnSet is a requested column projection.
type ColumnSet struct {
	// All requests every attribute.
	All bool

	// Columns lists specific attributes (ignored when All).
	Columns []string
}

// IsEmpty reports whether the set requests nothing.
func (c ColumnSet) IsEmpty() bool { return !c.All && len(c.Columns) == 0 }

// AllColumns requests every attribute.
func AllColumns() ColumnSet { return ColumnSet{All: true} }

// NewColumnSet requests the named attributes.
func NewColumnSet(columns ...string) ColumnSet { return ColumnSet{Columns: columns} }

// Node is a sealed interface over filter tree nodes.
//
// Node types:
//   - And: all children must match (vacuously true when empty)
//   - Or: at least one child must match
//   - Condition: a single operator applied to one attribute
//
// The marker method prevents external implementations and enables
// exhaustive type switches in the evaluator.
type Node interface {
	filterNode() // Marker method - seals interface to this package
}

// And matches when every child matches. Evaluation short-circuits on the
// first non-match.
type And struct {
	Children []Node
}

func (And) filterNode() {}

// Or matches when any child matches. Evaluation short-circuits on the
// first match.
type Or struct {
	Children []Node
}

func (Or) filterNode() {}

// Condition applies one operator to one attribute.
type Condition struct {
	// Alias selects the join the attribute lives on; empty means the
	// root entity.
	Alias string

	// Attribute is the attribute name.
	Attribute string

	Operator Operator

	// Values are the comparison operands. Literals parsed from markup
	// arrive as record.String and are coerced per the attribute's type.
	Values []Value

	// ValueOf, when set, compares the attribute against another
	// attribute instead of a literal. ValueOfAlias selects which row the
	// other attribute lives on (empty = root).
	ValueOf      string
	ValueOfAlias string
}

func (Condition) filterNode() {}

// JoinKind is the relationship between a parent row and a joined entity.
type JoinKind int

const (
	// Inner keeps only parent rows with at least one match and emits one
	// tuple per match.
	Inner JoinKind = iota

	// LeftOuter keeps all parent rows; unmatched parents get null-valued
	// joined columns.
	LeftOuter

	// Any keeps parents with at least one related record satisfying the
	// join's nested filter. Adds no columns.
	Any

	// NotAny keeps parents with no such related record.
	NotAny

	// All keeps parents where every related record satisfies the nested
	// filter (vacuously true when none exist).
	All

	// NotAll is the negation of All.
	NotAll
)

var joinKindNames = map[JoinKind]string{
	Inner:     "inner",
	LeftOuter: "outer",
	Any:       "any",
	NotAny:    "not any",
	All:       "all",
	NotAll:    "not all",
}

func (k JoinKind) String() string {
	if n, ok := joinKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// IsExistence reports whether the kind is an existence/universality test
// rather than a column-producing join.
func (k JoinKind) IsExistence() bool {
	return k == Any || k == NotAny || k == All || k == NotAll
}

// Join declares one joined entity.
//
// The matching attribute pair follows the markup grammar: From is the
// attribute on the joined entity, To the attribute on the parent row.
type Join struct {
	Entity string
	From   string
	To     string
	Kind   JoinKind

	// Alias tags columns sourced from this join; defaults to the entity
	// name. Aliases must be unique within a plan.
	Alias string

	// Columns projects attributes of the joined entity. Must be empty
	// for existence-kind joins.
	Columns ColumnSet

	// Filter restricts which related records match.
	Filter Node

	// Joins nest further joins under this one. Not allowed under
	// existence-kind joins.
	Joins []Join
}

// alias returns the effective alias.
func (j Join) alias() string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Entity
}

// Order sorts rows by one attribute.
type Order struct {
	// Alias selects a joined row; empty means the root entity.
	Alias     string
	Attribute string
	Desc      bool
}

// Value is the operand type for conditions; an alias of record.Value so
// plan literals read naturally at call sites.
type Value = record.Value

// Aggregation groups surviving rows and computes aggregates per group.
// Enumeration and reference grouping values compare by underlying
// code/id, not object identity.
type Aggregation struct {
	Groups  []GroupBy
	Columns []AggregateColumn
}

// GroupBy declares one grouping attribute. Alias names the output
// attribute.
type GroupBy struct {
	EntityAlias string // empty = root
	Attribute   string
	Alias       string
}

// AggregateFn enumerates the aggregate functions.
type AggregateFn string

const (
	AggCount       AggregateFn = "count"
	AggCountColumn AggregateFn = "countcolumn"
	AggSum         AggregateFn = "sum"
	AggAvg         AggregateFn = "avg"
	AggMin         AggregateFn = "min"
	AggMax         AggregateFn = "max"
)

// AggregateColumn declares one aggregate output.
type AggregateColumn struct {
	EntityAlias string // empty = root
	Attribute   string
	Alias       string
	Fn          AggregateFn
}
