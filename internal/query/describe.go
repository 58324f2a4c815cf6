package query

import (
	"fmt"
	"strings"

	"github.com/crmock/crmock/internal/record"
)

// Describe renders a plan as a deterministic, line-oriented text form.
// Used by the CLI's verbose output and by golden tests of the markup
// translator.
func (p *Plan) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "entity %s\n", p.EntityType)
	describeColumns(&b, 0, p.Columns)
	describeNode(&b, 0, p.Filter)
	for _, j := range p.Joins {
		describeJoin(&b, 0, j)
	}
	if p.Aggregation != nil {
		describeAggregation(&b, p.Aggregation)
	}
	for _, o := range p.Orders {
		name := o.Attribute
		if o.Alias != "" {
			name = o.Alias + "." + o.Attribute
		}
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, "order %s %s\n", name, dir)
	}
	if p.Top > 0 || p.Offset > 0 {
		fmt.Fprintf(&b, "page top=%d offset=%d\n", p.Top, p.Offset)
	}
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

func describeColumns(b *strings.Builder, depth int, cs ColumnSet) {
	switch {
	case cs.All:
		indent(b, depth)
		b.WriteString("columns all\n")
	case len(cs.Columns) > 0:
		indent(b, depth)
		fmt.Fprintf(b, "columns %s\n", strings.Join(cs.Columns, ", "))
	}
}

func describeNode(b *strings.Builder, depth int, n Node) {
	switch node := n.(type) {
	case nil:
	case And:
		indent(b, depth)
		b.WriteString("filter and\n")
		for _, child := range node.Children {
			describeNode(b, depth+1, child)
		}
	case *And:
		describeNode(b, depth, *node)
	case Or:
		indent(b, depth)
		b.WriteString("filter or\n")
		for _, child := range node.Children {
			describeNode(b, depth+1, child)
		}
	case *Or:
		describeNode(b, depth, *node)
	case Condition:
		indent(b, depth)
		name := node.Attribute
		if node.Alias != "" {
			name = node.Alias + "." + node.Attribute
		}
		fmt.Fprintf(b, "condition %s %s", name, node.Operator)
		if node.ValueOf != "" {
			other := node.ValueOf
			if node.ValueOfAlias != "" {
				other = node.ValueOfAlias + "." + node.ValueOf
			}
			fmt.Fprintf(b, " valueof %s", other)
		}
		for _, v := range node.Values {
			fmt.Fprintf(b, " %s", describeValue(v))
		}
		b.WriteString("\n")
	case *Condition:
		describeNode(b, depth, *node)
	}
}

func describeValue(v record.Value) string {
	switch val := record.Unwrap(v).(type) {
	case nil, record.Null:
		return "null"
	case record.String:
		return fmt.Sprintf("%q", string(val))
	default:
		return fmt.Sprintf("%v", record.ToJSONValue(v))
	}
}

func describeJoin(b *strings.Builder, depth int, j Join) {
	indent(b, depth)
	fmt.Fprintf(b, "join %s %s as %s (from=%s to=%s)\n", j.Kind, j.Entity, j.alias(), j.From, j.To)
	describeColumns(b, depth+1, j.Columns)
	describeNode(b, depth+1, j.Filter)
	for _, child := range j.Joins {
		describeJoin(b, depth+1, child)
	}
}

func describeAggregation(b *strings.Builder, agg *Aggregation) {
	for _, g := range agg.Groups {
		name := g.Attribute
		if g.EntityAlias != "" {
			name = g.EntityAlias + "." + g.Attribute
		}
		alias := g.Alias
		if alias == "" {
			alias = g.Attribute
		}
		fmt.Fprintf(b, "group %s as %s\n", name, alias)
	}
	for _, c := range agg.Columns {
		name := c.Attribute
		if c.EntityAlias != "" {
			name = c.EntityAlias + "." + c.Attribute
		}
		alias := c.Alias
		if alias == "" {
			alias = c.Attribute
		}
		fmt.Fprintf(b, "aggregate %s %s as %s\n", c.Fn, name, alias)
	}
}
