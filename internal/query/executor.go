package query

import (
	"sort"
	"time"

	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/record"
)

// Source enumerates stored records. *store.Store satisfies it.
type Source interface {
	Enumerate(entityType string) []*record.Entity
}

// Executor runs query plans against a Source. It is stateless across
// calls; a plan exists only for the duration of one Execute.
type Executor struct {
	Source Source
	Meta   metadata.Provider // may be nil

	Fiscal   FiscalSettings
	Location *time.Location
	Now      func() time.Time
}

// Execute validates and runs a plan, returning the projected result rows.
//
// Pipeline: joins in declaration order over the working tuple set, filter
// tree, optional aggregation, ordering, paging, projection.
func (x *Executor) Execute(p *Plan) ([]*record.Entity, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	loc := x.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now()
	if x.Now != nil {
		now = x.Now()
	}
	ev := &evaluator{meta: x.Meta, fiscal: x.Fiscal, loc: loc, now: now}

	// Seed: one tuple per root record.
	roots := x.Source.Enumerate(p.EntityType)
	rows := make([]row, 0, len(roots))
	for _, e := range roots {
		rows = append(rows, row{"": e})
	}

	// Joins in declaration order.
	var err error
	for _, j := range p.Joins {
		rows, err = x.applyJoin(ev, rows, "", j)
		if err != nil {
			return nil, err
		}
	}

	// Filter.
	if p.Filter != nil {
		kept := rows[:0]
		for _, r := range rows {
			ok, err := ev.evalNode(r, p.Filter)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	if p.Aggregation != nil {
		grouped, err := aggregate(p, rows)
		if err != nil {
			return nil, err
		}
		return pageEntities(grouped, p.Top, p.Offset), nil
	}

	sortRows(rows, p.Orders)
	rows = pageRows(rows, p.Top, p.Offset)

	out := make([]*record.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, projectRow(p, r))
	}
	return out, nil
}

// applyJoin advances the working tuple set by one join declaration.
func (x *Executor) applyJoin(ev *evaluator, rows []row, parentAlias string, j Join) ([]row, error) {
	children := x.Source.Enumerate(j.Entity)
	alias := j.alias()

	if j.Kind.IsExistence() {
		kept := rows[:0]
		for _, r := range rows {
			ok, err := x.evalExistence(ev, r[parentAlias], children, j)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, r)
			}
		}
		return kept, nil
	}

	var next []row
	for _, r := range rows {
		parent := r[parentAlias]
		if parent == nil {
			// Unmatched outer parent higher up: inner drops the tuple,
			// outer carries the hole through.
			if j.Kind == LeftOuter {
				next = append(next, extendRow(r, alias, nil))
			}
			continue
		}

		matches, err := x.matchingChildren(ev, parent, children, j)
		if err != nil {
			return nil, err
		}

		switch {
		case len(matches) > 0:
			for _, child := range matches {
				next = append(next, extendRow(r, alias, child))
			}
		case j.Kind == LeftOuter:
			// Group-join-then-flatten-with-default: the parent survives
			// exactly once with null-valued joined columns.
			next = append(next, extendRow(r, alias, nil))
		}
	}

	// Nested joins hang off this join's alias.
	var err error
	for _, child := range j.Joins {
		next, err = x.applyJoin(ev, next, alias, child)
		if err != nil {
			return nil, err
		}
	}
	return next, nil
}

// matchingChildren returns the joined-type records related to parent that
// also satisfy the join's nested filter.
func (x *Executor) matchingChildren(ev *evaluator, parent *record.Entity, children []*record.Entity, j Join) ([]*record.Entity, error) {
	related, err := relatedChildren(parent, children, j)
	if err != nil {
		return nil, err
	}
	if j.Filter == nil {
		return related, nil
	}
	out := related[:0]
	for _, child := range related {
		ok, err := ev.evalNode(row{"": child}, j.Filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, child)
		}
	}
	return out, nil
}

// relatedChildren returns the records whose From attribute equals the
// parent's To attribute. Null on either side is a silent non-match.
func relatedChildren(parent *record.Entity, children []*record.Entity, j Join) ([]*record.Entity, error) {
	pv, ok := parent.Get(j.To)
	if !ok || record.IsNull(pv) {
		return nil, nil
	}
	var out []*record.Entity
	for _, child := range children {
		cv, ok := child.Get(j.From)
		if !ok || record.IsNull(cv) {
			continue
		}
		match, err := joinEqual(cv, pv)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, child)
		}
	}
	return out, nil
}

// joinEqual compares join attributes symmetrically: a lookup on either
// side may meet a plain identifier on the other. Incomparable kinds are a
// silent non-match, never a fault.
func joinEqual(a, b record.Value) (bool, error) {
	ok, err := record.Equal(a, b)
	if err == nil {
		return ok, nil
	}
	ok, err = record.Equal(b, a)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// evalExistence runs an any/not-any/all/not-all test for one parent.
func (x *Executor) evalExistence(ev *evaluator, parent *record.Entity, children []*record.Entity, j Join) (bool, error) {
	if parent == nil {
		return false, nil
	}
	related, err := relatedChildren(parent, children, j)
	if err != nil {
		return false, err
	}

	satisfied := 0
	for _, child := range related {
		ok, err := ev.evalNode(row{"": child}, j.Filter)
		if err != nil {
			return false, err
		}
		if ok {
			satisfied++
		}
	}

	switch j.Kind {
	case Any:
		return satisfied > 0, nil
	case NotAny:
		return satisfied == 0, nil
	case All:
		// Vacuously true when no related records exist.
		return satisfied == len(related), nil
	default: // NotAll
		return satisfied != len(related), nil
	}
}

// extendRow copies a tuple and adds one joined entity under alias.
func extendRow(r row, alias string, child *record.Entity) row {
	out := make(row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[alias] = child
	return out
}

// sortRows orders tuples by the requested attributes. Null values sort
// first ascending; incomparable pairs keep their relative order.
func sortRows(rows []row, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, k int) bool {
		for _, o := range orders {
			a := attributeOf(rows[i], o.Alias, o.Attribute)
			b := attributeOf(rows[k], o.Alias, o.Attribute)
			cmp := orderCompare(a, b)
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func attributeOf(r row, alias, attribute string) record.Value {
	ent := r[alias]
	if ent == nil {
		return nil
	}
	v, _ := ent.Get(attribute)
	return record.Unwrap(v)
}

func orderCompare(a, b record.Value) int {
	aNull, bNull := record.IsNull(a), record.IsNull(b)
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	}
	cmp, err := record.Compare(a, b)
	if err != nil {
		return 0
	}
	return cmp
}

// pageRows applies offset then top.
func pageRows(rows []row, top, offset int) []row {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}
	return rows
}

func pageEntities(out []*record.Entity, top, offset int) []*record.Entity {
	if offset > 0 {
		if offset >= len(out) {
			return nil
		}
		out = out[offset:]
	}
	if top > 0 && top < len(out) {
		out = out[:top]
	}
	return out
}

// projectRow emits the requested columns of one tuple. Columns sourced
// from a joined alias are keyed "alias.attribute" and wrapped so they are
// distinguishable from root attributes of the same name.
func projectRow(p *Plan, r row) *record.Entity {
	root := r[""]
	out := record.NewWithID(p.EntityType, root.ID)
	copyColumns(out, root, p.Columns, "")
	projectJoins(out, r, p.Joins)
	return out
}

func projectJoins(out *record.Entity, r row, joins []Join) {
	for _, j := range joins {
		if j.Kind.IsExistence() {
			continue
		}
		alias := j.alias()
		if child := r[alias]; child != nil {
			copyColumns(out, child, j.Columns, alias)
		}
		projectJoins(out, r, j.Joins)
	}
}

// copyColumns projects one entity's attributes into the output row.
func copyColumns(out, src *record.Entity, cs ColumnSet, alias string) {
	emit := func(name string, v record.Value) {
		if alias == "" {
			out.Set(name, v)
			return
		}
		out.Set(alias+"."+name, record.Aliased{Alias: alias, Attribute: name, Value: v})
	}

	if cs.All {
		for _, name := range src.Names() {
			v, _ := src.Get(name)
			emit(name, v)
		}
		return
	}
	for _, name := range cs.Columns {
		if v, ok := src.Get(name); ok {
			emit(name, v)
		}
	}
}

// ProjectEntity applies a root column set to a single record; used by
// single-record retrieval.
func ProjectEntity(e *record.Entity, cs ColumnSet) *record.Entity {
	out := record.NewWithID(e.Type, e.ID)
	copyColumns(out, e, cs, "")
	return out
}
