package query

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmock/crmock/internal/faults"
	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/record"
)

// fakeSource is an in-test Source over literal slices.
type fakeSource map[string][]*record.Entity

func (s fakeSource) Enumerate(entityType string) []*record.Entity {
	return s[entityType]
}

var testNow = time.Date(2024, time.March, 13, 15, 0, 0, 0, time.UTC) // a Wednesday

func newAccount(attrs map[string]record.Value) *record.Entity {
	e := record.NewWithID("account", uuid.New())
	for name, v := range attrs {
		e.Set(name, v)
	}
	return e
}

// filterAccounts runs a filter over the given accounts with a fixed clock.
func filterAccounts(t *testing.T, ents []*record.Entity, filter Node) []*record.Entity {
	t.Helper()
	x := &Executor{
		Source: fakeSource{"account": ents},
		Now:    func() time.Time { return testNow },
	}
	out, err := x.Execute(&Plan{EntityType: "account", Columns: AllColumns(), Filter: filter})
	require.NoError(t, err)
	return out
}

func cond(attr string, op Operator, values ...Value) Condition {
	return Condition{Attribute: attr, Operator: op, Values: values}
}

func TestEvaluate_EqAndNe(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"name": record.String("Acme")}),
		newAccount(map[string]record.Value{"name": record.String("Umbrella")}),
	}

	out := filterAccounts(t, ents, cond("name", OpEq, record.String("ACME")))
	assert.Len(t, out, 1)

	out = filterAccounts(t, ents, cond("name", OpNe, record.String("acme")))
	assert.Len(t, out, 1)
	assert.Equal(t, "Umbrella", out[0].GetString("name"))
}

func TestEvaluate_NullAttribute_IsSilentNonMatch(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"name": record.String("Acme")}),
		newAccount(map[string]record.Value{}), // no name at all
	}

	for _, op := range []Operator{OpEq, OpNe, OpGt, OpLike, OpBeginsWith, OpContains} {
		out := filterAccounts(t, ents, cond("name", op, record.String("acme")))
		for _, e := range out {
			assert.NotEmpty(t, e.GetString("name"), "operator %s matched a record without the attribute", op)
		}
	}
}

func TestEvaluate_NullAndNotNull_UnwrapAliased(t *testing.T) {
	withName := newAccount(map[string]record.Value{"name": record.String("Acme")})
	aliasedNull := newAccount(map[string]record.Value{
		"name": record.Aliased{Alias: "x", Attribute: "name", Value: record.Null{}},
	})
	ents := []*record.Entity{withName, aliasedNull}

	out := filterAccounts(t, ents, cond("name", OpNull))
	require.Len(t, out, 1)
	assert.Equal(t, aliasedNull.ID, out[0].ID)

	out = filterAccounts(t, ents, cond("name", OpNotNull))
	require.Len(t, out, 1)
	assert.Equal(t, withName.ID, out[0].ID)
}

func TestEvaluate_Like_NullOperand_NeverRaises(t *testing.T) {
	ents := []*record.Entity{newAccount(map[string]record.Value{})}

	x := &Executor{Source: fakeSource{"account": ents}}
	out, err := x.Execute(&Plan{
		EntityType: "account",
		Columns:    AllColumns(),
		Filter:     cond("name", OpLike, record.String("%acme%")),
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEvaluate_TextOperators(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"name": record.String("Acme Corporation")}),
	}

	assert.Len(t, filterAccounts(t, ents, cond("name", OpBeginsWith, record.String("acme"))), 1)
	assert.Len(t, filterAccounts(t, ents, cond("name", OpEndsWith, record.String("CORPORATION"))), 1)
	assert.Len(t, filterAccounts(t, ents, cond("name", OpContains, record.String("e cor"))), 1)
	assert.Len(t, filterAccounts(t, ents, cond("name", OpDoesNotContain, record.String("widgets"))), 1)
	assert.Empty(t, filterAccounts(t, ents, cond("name", OpNotBeginWith, record.String("acme"))))
	assert.Len(t, filterAccounts(t, ents, cond("name", OpLike, record.String("acme%"))), 1)
	assert.Empty(t, filterAccounts(t, ents, cond("name", OpNotLike, record.String("acme%"))))
}

func TestEvaluate_InAndNotIn(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"state": record.Option(1)}),
		newAccount(map[string]record.Value{"state": record.Option(3)}),
	}

	out := filterAccounts(t, ents, cond("state", OpIn, record.Int(1), record.Int(2)))
	assert.Len(t, out, 1)

	out = filterAccounts(t, ents, cond("state", OpNotIn, record.Int(1), record.Int(2)))
	assert.Len(t, out, 1)

	// Empty candidate lists match nothing, in both directions.
	assert.Empty(t, filterAccounts(t, ents, cond("state", OpIn)))
	assert.Empty(t, filterAccounts(t, ents, cond("state", OpNotIn)))
}

func TestEvaluate_Comparisons(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"revenue": record.Money(50)}),
		newAccount(map[string]record.Value{"revenue": record.Money(150)}),
	}

	assert.Len(t, filterAccounts(t, ents, cond("revenue", OpGt, record.Int(100))), 1)
	assert.Len(t, filterAccounts(t, ents, cond("revenue", OpGe, record.Int(50))), 2)
	assert.Len(t, filterAccounts(t, ents, cond("revenue", OpLt, record.Int(100))), 1)
	assert.Len(t, filterAccounts(t, ents, cond("revenue", OpLe, record.Int(49))), 0)
}

func TestEvaluate_Between_ClosesEndOfDay(t *testing.T) {
	late := newAccount(map[string]record.Value{
		"closed": record.NewTime(time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)),
	})
	after := newAccount(map[string]record.Value{
		"closed": record.NewTime(time.Date(2024, 4, 1, 0, 30, 0, 0, time.UTC)),
	})
	ents := []*record.Entity{late, after}

	out := filterAccounts(t, ents, cond("closed", OpBetween,
		record.String("2024-03-01"), record.String("2024-03-31")))
	require.Len(t, out, 1)
	assert.Equal(t, late.ID, out[0].ID)

	out = filterAccounts(t, ents, cond("closed", OpNotBetween,
		record.String("2024-03-01"), record.String("2024-03-31")))
	require.Len(t, out, 1)
	assert.Equal(t, after.ID, out[0].ID)
}

func TestEvaluate_Between_Numeric(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"employees": record.Int(10)}),
		newAccount(map[string]record.Value{"employees": record.Int(500)}),
	}

	out := filterAccounts(t, ents, cond("employees", OpBetween, record.Int(1), record.Int(100)))
	assert.Len(t, out, 1)
}

func TestEvaluate_OnOperators(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{
			"closed": record.NewTime(time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)),
		}),
	}

	assert.Len(t, filterAccounts(t, ents, cond("closed", OpOn, record.String("2024-03-15"))), 1)
	assert.Empty(t, filterAccounts(t, ents, cond("closed", OpOn, record.String("2024-03-16"))))
	assert.Len(t, filterAccounts(t, ents, cond("closed", OpOnOrBefore, record.String("2024-03-15"))), 1)
	assert.Len(t, filterAccounts(t, ents, cond("closed", OpOnOrAfter, record.String("2024-03-15"))), 1)
	assert.Empty(t, filterAccounts(t, ents, cond("closed", OpOnOrAfter, record.String("2024-03-16"))))
}

func TestEvaluate_RelativeDates(t *testing.T) {
	today := newAccount(map[string]record.Value{
		"closed": record.NewTime(testNow.Add(-2 * time.Hour)),
	})
	lastWeek := newAccount(map[string]record.Value{
		"closed": record.NewTime(testNow.AddDate(0, 0, -7)),
	})
	lastYear := newAccount(map[string]record.Value{
		"closed": record.NewTime(testNow.AddDate(-1, 0, 0)),
	})
	ents := []*record.Entity{today, lastWeek, lastYear}

	out := filterAccounts(t, ents, cond("closed", OpToday))
	require.Len(t, out, 1)
	assert.Equal(t, today.ID, out[0].ID)

	out = filterAccounts(t, ents, cond("closed", OpThisWeek))
	require.Len(t, out, 1)

	out = filterAccounts(t, ents, cond("closed", OpLastWeek))
	require.Len(t, out, 1)
	assert.Equal(t, lastWeek.ID, out[0].ID)

	out = filterAccounts(t, ents, cond("closed", OpThisMonth))
	assert.Len(t, out, 2)

	out = filterAccounts(t, ents, cond("closed", OpLastYear))
	require.Len(t, out, 1)
	assert.Equal(t, lastYear.ID, out[0].ID)

	out = filterAccounts(t, ents, cond("closed", OpLastXDays, record.String("10")))
	assert.Len(t, out, 2)

	out = filterAccounts(t, ents, cond("closed", OpOlderThanXMonths, record.Int(6)))
	require.Len(t, out, 1)
	assert.Equal(t, lastYear.ID, out[0].ID)
}

func TestEvaluate_FiscalOperators(t *testing.T) {
	// July-anchored quarters: testNow (March 2024) is in fiscal Q3 of the
	// fiscal year that started July 2023.
	fs := FiscalSettings{StartMonth: time.July, StartDay: 1, Template: FiscalQuarterly}

	inPeriod := newAccount(map[string]record.Value{
		"closed": record.NewTime(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	})
	prevPeriod := newAccount(map[string]record.Value{
		"closed": record.NewTime(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)),
	})
	prevYear := newAccount(map[string]record.Value{
		"closed": record.NewTime(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)),
	})
	ents := []*record.Entity{inPeriod, prevPeriod, prevYear}

	x := &Executor{
		Source: fakeSource{"account": ents},
		Fiscal: fs,
		Now:    func() time.Time { return testNow },
	}

	run := func(c Condition) []*record.Entity {
		out, err := x.Execute(&Plan{EntityType: "account", Columns: AllColumns(), Filter: c})
		require.NoError(t, err)
		return out
	}

	out := run(cond("closed", OpThisFiscalPeriod))
	require.Len(t, out, 1)
	assert.Equal(t, inPeriod.ID, out[0].ID)

	out = run(cond("closed", OpLastFiscalPeriod))
	require.Len(t, out, 1)
	assert.Equal(t, prevPeriod.ID, out[0].ID)

	out = run(cond("closed", OpThisFiscalYear))
	assert.Len(t, out, 2)

	out = run(cond("closed", OpLastFiscalYear))
	require.Len(t, out, 1)
	assert.Equal(t, prevYear.ID, out[0].ID)

	// in-fiscal-year labels a year by its starting calendar year.
	out = run(cond("closed", OpInFiscalYear, record.String("2023")))
	assert.Len(t, out, 2)
}

func TestEvaluate_GUIDAgainstRef_Faults(t *testing.T) {
	id := uuid.New()
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"accountid": record.GUID(id)}),
	}

	x := &Executor{Source: fakeSource{"account": ents}}
	_, err := x.Execute(&Plan{
		EntityType: "account",
		Columns:    AllColumns(),
		Filter:     cond("accountid", OpEq, record.Ref{Entity: "account", ID: id}),
	})
	require.Error(t, err)
	assert.True(t, faults.IsTypeMismatch(err))
}

func TestEvaluate_RefAgainstIdentifier_Matches(t *testing.T) {
	id := uuid.New()
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"ownerid": record.Ref{Entity: "contact", ID: id}}),
		newAccount(map[string]record.Value{"ownerid": record.Ref{Entity: "contact", ID: uuid.New()}}),
	}

	out := filterAccounts(t, ents, cond("ownerid", OpEq, record.String(id.String())))
	assert.Len(t, out, 1)
}

func TestEvaluate_AndOrShortCircuit(t *testing.T) {
	ents := []*record.Entity{
		newAccount(map[string]record.Value{"name": record.String("Acme"), "state": record.Option(0)}),
		newAccount(map[string]record.Value{"name": record.String("Umbrella"), "state": record.Option(0)}),
	}

	filter := And{Children: []Node{
		cond("state", OpEq, record.Int(0)),
		Or{Children: []Node{
			cond("name", OpEq, record.String("acme")),
			cond("name", OpEq, record.String("initech")),
		}},
	}}
	out := filterAccounts(t, ents, filter)
	require.Len(t, out, 1)
	assert.Equal(t, "Acme", out[0].GetString("name"))

	// Vacuously true AND keeps everything.
	assert.Len(t, filterAccounts(t, ents, And{}), 2)
	// Empty OR matches nothing.
	assert.Empty(t, filterAccounts(t, ents, Or{}))
}

func TestEvaluate_ColumnToColumnCompare(t *testing.T) {
	equal := newAccount(map[string]record.Value{
		"budget": record.Money(100), "spend": record.Money(100),
	})
	over := newAccount(map[string]record.Value{
		"budget": record.Money(100), "spend": record.Money(150),
	})
	ents := []*record.Entity{equal, over}

	out := filterAccounts(t, ents, Condition{
		Attribute: "spend", Operator: OpGt, ValueOf: "budget",
	})
	require.Len(t, out, 1)
	assert.Equal(t, over.ID, out[0].ID)

	out = filterAccounts(t, ents, Condition{
		Attribute: "spend", Operator: OpEq, ValueOf: "budget",
	})
	require.Len(t, out, 1)
	assert.Equal(t, equal.ID, out[0].ID)
}

func TestEvaluate_LiteralCoercion_FromMetadata(t *testing.T) {
	reg := metadata.NewRegistry()
	require.NoError(t, reg.RegisterEntity(&metadata.EntityMetadata{
		Name: "account",
		Attributes: map[string]metadata.AttributeMetadata{
			"employees": {Name: "employees", Type: metadata.TypeInteger},
			"state":     {Name: "state", Type: metadata.TypeOptionSet},
		},
	}))

	ents := []*record.Entity{
		newAccount(map[string]record.Value{"employees": record.Int(12), "state": record.Option(1)}),
	}
	x := &Executor{Source: fakeSource{"account": ents}, Meta: reg}

	// String literals, as the markup parser produces, compare numerically
	// once coerced against the declared attribute type.
	out, err := x.Execute(&Plan{
		EntityType: "account",
		Columns:    AllColumns(),
		Filter: And{Children: []Node{
			cond("employees", OpGt, record.String("10")),
			cond("state", OpEq, record.String("1")),
		}},
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// A non-numeric literal against an integer attribute is a fault.
	_, err = x.Execute(&Plan{
		EntityType: "account",
		Columns:    AllColumns(),
		Filter:     cond("employees", OpEq, record.String("many")),
	})
	assert.True(t, faults.IsTypeMismatch(err))
}
