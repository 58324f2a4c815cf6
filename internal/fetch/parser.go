// Package fetch translates the XML markup query grammar into query plans.
// The grammar mirrors the structured plan: a fetch root with paging and
// aggregate attributes, one entity element, and nested attribute / filter /
// order / link-entity elements.
//
// Literal condition values are carried as strings; the evaluator coerces
// them against the attribute's declared type at execution time.
package fetch

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/crmock/crmock/internal/faults"
	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/query"
	"github.com/crmock/crmock/internal/record"
)

type fetchElem struct {
	XMLName   xml.Name   `xml:"fetch"`
	Top       string     `xml:"top,attr"`
	Page      string     `xml:"page,attr"`
	Count     string     `xml:"count,attr"`
	Aggregate string     `xml:"aggregate,attr"`
	Entity    *entityElem `xml:"entity"`
}

type entityElem struct {
	Name    string          `xml:"name,attr"`
	AllAttr *struct{}       `xml:"all-attributes"`
	Attrs   []attributeElem `xml:"attribute"`
	Filters []filterElem    `xml:"filter"`
	Orders  []orderElem     `xml:"order"`
	Links   []linkElem      `xml:"link-entity"`
}

type attributeElem struct {
	Name      string `xml:"name,attr"`
	Alias     string `xml:"alias,attr"`
	Aggregate string `xml:"aggregate,attr"`
	GroupBy   string `xml:"groupby,attr"`
}

type filterElem struct {
	Type       string          `xml:"type,attr"`
	Conditions []conditionElem `xml:"condition"`
	Filters    []filterElem    `xml:"filter"`
}

type conditionElem struct {
	EntityName string      `xml:"entityname,attr"`
	Attribute  string      `xml:"attribute,attr"`
	Operator   string      `xml:"operator,attr"`
	Value      *string     `xml:"value,attr"`
	ValueOf    string      `xml:"valueof,attr"`
	Values     []valueElem `xml:"value"`
}

type valueElem struct {
	Text string `xml:",chardata"`
}

type orderElem struct {
	Attribute  string `xml:"attribute,attr"`
	Alias      string `xml:"alias,attr"`
	Descending string `xml:"descending,attr"`
}

type linkElem struct {
	Name     string          `xml:"name,attr"`
	From     string          `xml:"from,attr"`
	To       string          `xml:"to,attr"`
	Alias    string          `xml:"alias,attr"`
	LinkType string          `xml:"link-type,attr"`
	AllAttr  *struct{}       `xml:"all-attributes"`
	Attrs    []attributeElem `xml:"attribute"`
	Filters  []filterElem    `xml:"filter"`
	Links    []linkElem      `xml:"link-entity"`
}

var linkKinds = map[string]query.JoinKind{
	"":        query.Inner,
	"inner":   query.Inner,
	"outer":   query.LeftOuter,
	"any":     query.Any,
	"not any": query.NotAny,
	"all":     query.All,
	"not all": query.NotAll,
}

// Translate parses a markup document into a validated query plan. meta may
// be nil; it is consulted only to resolve link-entity matching attributes
// from registered relationships when from/to are omitted.
func Translate(data []byte, meta metadata.Provider) (*query.Plan, error) {
	var doc fetchElem
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse query markup: %w", err)
	}
	if doc.Entity == nil {
		return nil, faults.Validation("query markup requires an entity element")
	}
	if doc.Entity.Name == "" {
		return nil, faults.Validation("entity element requires a name")
	}

	t := &translator{meta: meta, aggregate: doc.Aggregate == "true"}

	p := &query.Plan{EntityType: doc.Entity.Name}
	if err := t.paging(p, doc); err != nil {
		return nil, err
	}

	if t.aggregate {
		p.Aggregation = &query.Aggregation{}
		if err := t.aggregateColumns(p.Aggregation, "", doc.Entity.Attrs); err != nil {
			return nil, err
		}
	} else {
		p.Columns = columnSet(doc.Entity.AllAttr, doc.Entity.Attrs)
	}

	filter, err := t.combineFilters(doc.Entity.Filters)
	if err != nil {
		return nil, err
	}
	p.Filter = filter

	for _, o := range doc.Entity.Orders {
		if o.Attribute == "" {
			return nil, faults.Validation("order element requires an attribute")
		}
		p.Orders = append(p.Orders, query.Order{
			Alias:     o.Alias,
			Attribute: o.Attribute,
			Desc:      o.Descending == "true",
		})
	}

	for _, l := range doc.Entity.Links {
		j, err := t.link(doc.Entity.Name, l, p.Aggregation)
		if err != nil {
			return nil, err
		}
		p.Joins = append(p.Joins, j)
	}

	if err := query.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

type translator struct {
	meta      metadata.Provider
	aggregate bool
}

func (t *translator) paging(p *query.Plan, doc fetchElem) error {
	top, err := intAttr("top", doc.Top)
	if err != nil {
		return err
	}
	page, err := intAttr("page", doc.Page)
	if err != nil {
		return err
	}
	count, err := intAttr("count", doc.Count)
	if err != nil {
		return err
	}

	if top > 0 && (page > 0 || count > 0) {
		return faults.Validation("top cannot be combined with page/count paging")
	}
	p.Top = top
	if count > 0 {
		p.Top = count
		if page > 1 {
			p.Offset = (page - 1) * count
		}
	}
	return nil
}

func intAttr(name, s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, faults.Validation("attribute %q must be a non-negative integer, got %q", name, s)
	}
	return n, nil
}

func columnSet(all *struct{}, attrs []attributeElem) query.ColumnSet {
	if all != nil {
		return query.AllColumns()
	}
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	return query.NewColumnSet(names...)
}

// aggregateColumns maps attribute elements in aggregate mode onto group-by
// and aggregate declarations.
func (t *translator) aggregateColumns(agg *query.Aggregation, entityAlias string, attrs []attributeElem) error {
	for _, a := range attrs {
		if a.Name == "" {
			return faults.Validation("attribute element requires a name")
		}
		switch {
		case a.GroupBy == "true":
			agg.Groups = append(agg.Groups, query.GroupBy{
				EntityAlias: entityAlias,
				Attribute:   a.Name,
				Alias:       a.Alias,
			})
		case a.Aggregate != "":
			fn, err := parseAggregateFn(a.Aggregate)
			if err != nil {
				return err
			}
			agg.Columns = append(agg.Columns, query.AggregateColumn{
				EntityAlias: entityAlias,
				Attribute:   a.Name,
				Alias:       a.Alias,
				Fn:          fn,
			})
		default:
			return faults.Validation("attribute %q in an aggregate query requires groupby or an aggregate function", a.Name)
		}
	}
	return nil
}

func parseAggregateFn(s string) (query.AggregateFn, error) {
	switch fn := query.AggregateFn(s); fn {
	case query.AggCount, query.AggCountColumn, query.AggSum, query.AggAvg, query.AggMin, query.AggMax:
		return fn, nil
	}
	return "", faults.Validation("unknown aggregate function %q", s)
}

// combineFilters joins sibling filter elements with logical AND. A single
// filter translates to its own node.
func (t *translator) combineFilters(filters []filterElem) (query.Node, error) {
	nodes := make([]query.Node, 0, len(filters))
	for _, f := range filters {
		n, err := t.filter(f)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	}
	return query.And{Children: nodes}, nil
}

func (t *translator) filter(f filterElem) (query.Node, error) {
	var children []query.Node
	for _, c := range f.Conditions {
		cond, err := t.condition(c)
		if err != nil {
			return nil, err
		}
		children = append(children, cond)
	}
	for _, nested := range f.Filters {
		n, err := t.filter(nested)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}

	switch f.Type {
	case "", "and":
		return query.And{Children: children}, nil
	case "or":
		return query.Or{Children: children}, nil
	}
	return nil, faults.Validation("filter type must be \"and\" or \"or\", got %q", f.Type)
}

func (t *translator) condition(c conditionElem) (query.Node, error) {
	if c.Attribute == "" {
		return nil, faults.Validation("condition element requires an attribute")
	}
	op, err := query.ParseOperator(c.Operator)
	if err != nil {
		return nil, faults.Validation("condition on %q: %v", c.Attribute, err)
	}
	if c.Value != nil && len(c.Values) > 0 {
		return nil, faults.Validation("condition on %q mixes a value attribute with value elements", c.Attribute)
	}

	cond := query.Condition{
		Alias:     c.EntityName,
		Attribute: c.Attribute,
		Operator:  op,
	}
	if c.ValueOf != "" {
		cond.ValueOfAlias, cond.ValueOf = splitAliased(c.ValueOf)
	}
	if c.Value != nil {
		cond.Values = []query.Value{record.String(*c.Value)}
	}
	for _, v := range c.Values {
		cond.Values = append(cond.Values, record.String(v.Text))
	}
	return cond, nil
}

// splitAliased splits "alias.attribute" column references; a bare name
// refers to the root entity.
func splitAliased(s string) (alias, attribute string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func (t *translator) link(parentEntity string, l linkElem, agg *query.Aggregation) (query.Join, error) {
	if l.Name == "" {
		return query.Join{}, faults.Validation("link-entity element requires a name")
	}
	kind, ok := linkKinds[l.LinkType]
	if !ok {
		return query.Join{}, faults.Validation("unknown link-type %q on link-entity %q", l.LinkType, l.Name)
	}

	j := query.Join{
		Entity: l.Name,
		From:   l.From,
		To:     l.To,
		Kind:   kind,
		Alias:  l.Alias,
	}

	if j.From == "" && j.To == "" {
		from, to, err := t.resolveLinkAttributes(parentEntity, l.Name)
		if err != nil {
			return query.Join{}, err
		}
		j.From, j.To = from, to
	}
	if j.From == "" || j.To == "" {
		return query.Join{}, faults.Validation("link-entity %q requires from and to attributes", l.Name)
	}

	if agg != nil {
		alias := j.Alias
		if alias == "" {
			alias = j.Entity
		}
		if err := t.aggregateColumns(agg, alias, l.Attrs); err != nil {
			return query.Join{}, err
		}
	} else {
		j.Columns = columnSet(l.AllAttr, l.Attrs)
	}

	filter, err := t.combineFilters(l.Filters)
	if err != nil {
		return query.Join{}, err
	}
	j.Filter = filter

	for _, nested := range l.Links {
		child, err := t.link(l.Name, nested, agg)
		if err != nil {
			return query.Join{}, err
		}
		j.Joins = append(j.Joins, child)
	}
	return j, nil
}

// resolveLinkAttributes derives the matching attribute pair from a
// registered one-to-many relationship between the two entity types.
func (t *translator) resolveLinkAttributes(parent, linked string) (from, to string, err error) {
	if t.meta == nil {
		return "", "", faults.Validation("link-entity %q requires from and to attributes", linked)
	}
	rel, ok := t.meta.RelationshipBetween(parent, linked)
	if !ok {
		return "", "", faults.Validation("no registered relationship between %q and %q resolves link-entity attributes", parent, linked)
	}
	if rel.Referenced == parent {
		// Parent is the "one" side: joined records carry the lookup.
		return rel.ReferencingAttribute, rel.ReferencedAttribute, nil
	}
	return rel.ReferencedAttribute, rel.ReferencingAttribute, nil
}
