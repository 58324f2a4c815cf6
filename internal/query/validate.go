package query

import (
	"github.com/crmock/crmock/internal/faults"
)

// Validate checks a plan against the translation-time rules:
//
//  1. The root entity type is required.
//  2. Join aliases are unique within the plan.
//  3. Existence-kind joins (any/not-any/all/not-all) may only be direct
//     children of the root entity, may carry a nested filter but no
//     column projection, and may not contain child joins.
//  4. Condition operators receive the value count they require where the
//     count is fixed (between needs two, null needs none). Column-compare
//     conditions fit single-value operators only and carry no literals.
//  5. Aggregation requires at least one aggregate column.
//
// Violations are validation faults raised before any row is touched.
// Validate is a pure function with no side effects.
func Validate(p *Plan) error {
	if p == nil {
		return faults.Validation("query plan is nil")
	}
	if p.EntityType == "" {
		return faults.Validation("query plan requires a root entity type")
	}

	v := &planValidator{aliases: map[string]bool{}}
	for _, j := range p.Joins {
		if err := v.validateJoin(j, true); err != nil {
			return err
		}
	}
	if err := v.validateNode(p.Filter); err != nil {
		return err
	}
	if p.Aggregation != nil && len(p.Aggregation.Columns) == 0 {
		return faults.Validation("aggregation requires at least one aggregate column")
	}
	if p.Top < 0 || p.Offset < 0 {
		return faults.Validation("paging limits must not be negative")
	}
	return nil
}

type planValidator struct {
	aliases map[string]bool
}

func (v *planValidator) validateJoin(j Join, atRoot bool) error {
	if j.Entity == "" {
		return faults.Validation("join requires an entity type")
	}
	if j.From == "" || j.To == "" {
		return faults.Validation("join on %q requires matching attributes", j.Entity)
	}

	alias := j.alias()
	if v.aliases[alias] {
		return faults.Validation("duplicate join alias %q", alias)
	}
	v.aliases[alias] = true

	if j.Kind.IsExistence() {
		if !atRoot {
			return faults.Validation("%s join on %q must be a direct child of the root entity", j.Kind, j.Entity)
		}
		if !j.Columns.IsEmpty() {
			return faults.Validation("%s join on %q cannot carry a column projection", j.Kind, j.Entity)
		}
		if len(j.Joins) > 0 {
			return faults.Validation("%s join on %q cannot contain child joins", j.Kind, j.Entity)
		}
	}

	if err := v.validateNode(j.Filter); err != nil {
		return err
	}
	for _, child := range j.Joins {
		if err := v.validateJoin(child, false); err != nil {
			return err
		}
	}
	return nil
}

func (v *planValidator) validateNode(n Node) error {
	switch node := n.(type) {
	case nil:
		return nil
	case And:
		for _, child := range node.Children {
			if err := v.validateNode(child); err != nil {
				return err
			}
		}
	case *And:
		return v.validateNode(*node)
	case Or:
		for _, child := range node.Children {
			if err := v.validateNode(child); err != nil {
				return err
			}
		}
	case *Or:
		return v.validateNode(*node)
	case Condition:
		return v.validateCondition(node)
	case *Condition:
		return v.validateCondition(*node)
	default:
		return faults.Validation("unknown filter node type %T", n)
	}
	return nil
}

func (v *planValidator) validateCondition(c Condition) error {
	if c.Attribute == "" {
		return faults.Validation("condition requires an attribute")
	}
	if _, ok := operatorArity[c.Operator]; !ok {
		return faults.Validation("unknown condition operator %q", c.Operator)
	}
	if c.ValueOf != "" {
		// Column-compare supplies exactly one operand, so it only fits
		// operators that take exactly one value.
		if operatorArity[c.Operator] != 1 {
			return faults.Validation("operator %s cannot compare against another attribute", c.Operator)
		}
		if len(c.Values) > 0 {
			return faults.Validation("operator %s cannot mix literal values with an attribute comparison", c.Operator)
		}
		return nil
	}
	if arity := operatorArity[c.Operator]; arity >= 0 && len(c.Values) != arity {
		return faults.Validation("operator %s requires %d value(s), got %d", c.Operator, arity, len(c.Values))
	}
	return nil
}
