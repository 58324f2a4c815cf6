package fetch

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmock/crmock/internal/faults"
	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/query"
	"github.com/crmock/crmock/internal/record"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func translate(t *testing.T, markup string) *query.Plan {
	t.Helper()
	p, err := Translate([]byte(markup), nil)
	require.NoError(t, err)
	return p
}

func TestTranslate_Basic_Golden(t *testing.T) {
	p := translate(t, `
<fetch top="10">
  <entity name="account">
    <attribute name="name"/>
    <attribute name="accountnumber"/>
    <filter type="and">
      <condition attribute="statecode" operator="eq" value="0"/>
      <condition attribute="name" operator="like" value="%acme%"/>
    </filter>
    <order attribute="name" descending="true"/>
  </entity>
</fetch>`)

	golden(t).Assert(t, "basic", []byte(p.Describe()))
}

func TestTranslate_Joins_Golden(t *testing.T) {
	p := translate(t, `
<fetch>
  <entity name="account">
    <attribute name="name"/>
    <link-entity name="contact" from="parentaccountid" to="accountid" alias="c" link-type="outer">
      <attribute name="fullname"/>
      <filter type="or">
        <condition attribute="statecode" operator="eq" value="0"/>
        <condition attribute="fullname" operator="not-null"/>
      </filter>
      <link-entity name="task" from="regardingid" to="contactid" alias="t">
        <all-attributes/>
      </link-entity>
    </link-entity>
    <link-entity name="lead" from="originatingaccountid" to="accountid" link-type="not any">
      <filter>
        <condition attribute="subject" operator="begins-with" value="spam"/>
      </filter>
    </link-entity>
  </entity>
</fetch>`)

	golden(t).Assert(t, "joins", []byte(p.Describe()))
}

func TestTranslate_Aggregate_Golden(t *testing.T) {
	p := translate(t, `
<fetch aggregate="true" page="2" count="5">
  <entity name="account">
    <attribute name="city" groupby="true" alias="city"/>
    <attribute name="revenue" aggregate="sum" alias="total"/>
    <attribute name="accountid" aggregate="count" alias="n"/>
  </entity>
</fetch>`)

	golden(t).Assert(t, "aggregate", []byte(p.Describe()))
}

func TestTranslate_AllAttributes(t *testing.T) {
	p := translate(t, `
<fetch>
  <entity name="account">
    <all-attributes/>
  </entity>
</fetch>`)
	assert.True(t, p.Columns.All)
}

// Multiple sibling filters at one nesting level combine with logical AND;
// none may be dropped.
func TestTranslate_SiblingFilters_CombineWithAnd(t *testing.T) {
	p := translate(t, `
<fetch>
  <entity name="account">
    <filter type="or">
      <condition attribute="name" operator="eq" value="a"/>
      <condition attribute="name" operator="eq" value="b"/>
    </filter>
    <filter>
      <condition attribute="statecode" operator="eq" value="0"/>
    </filter>
  </entity>
</fetch>`)

	root, ok := p.Filter.(query.And)
	require.True(t, ok, "sibling filters must be AND-combined")
	require.Len(t, root.Children, 2)

	first, ok := root.Children[0].(query.Or)
	require.True(t, ok)
	assert.Len(t, first.Children, 2)

	second, ok := root.Children[1].(query.And)
	require.True(t, ok)
	assert.Len(t, second.Children, 1)
}

func TestTranslate_ValueElements_ForSetMembership(t *testing.T) {
	p := translate(t, `
<fetch>
  <entity name="account">
    <filter>
      <condition attribute="statecode" operator="in">
        <value>0</value>
        <value>1</value>
      </condition>
    </filter>
  </entity>
</fetch>`)

	root := p.Filter.(query.And)
	c := root.Children[0].(query.Condition)
	assert.Equal(t, query.OpIn, c.Operator)
	assert.Equal(t, []query.Value{record.String("0"), record.String("1")}, c.Values)
}

func TestTranslate_ValueOf_ColumnCompare(t *testing.T) {
	p := translate(t, `
<fetch>
  <entity name="account">
    <filter>
      <condition attribute="spend" operator="gt" valueof="budget"/>
      <condition attribute="spend" operator="eq" valueof="c.limit"/>
    </filter>
  </entity>
</fetch>`)

	root := p.Filter.(query.And)
	first := root.Children[0].(query.Condition)
	assert.Equal(t, "budget", first.ValueOf)
	assert.Empty(t, first.ValueOfAlias)

	second := root.Children[1].(query.Condition)
	assert.Equal(t, "limit", second.ValueOf)
	assert.Equal(t, "c", second.ValueOfAlias)
}

func TestTranslate_ConditionEntityName_TargetsJoinedRow(t *testing.T) {
	p := translate(t, `
<fetch>
  <entity name="account">
    <link-entity name="contact" from="parentaccountid" to="accountid" alias="c"/>
    <filter>
      <condition entityname="c" attribute="fullname" operator="not-null"/>
    </filter>
  </entity>
</fetch>`)

	root := p.Filter.(query.And)
	c := root.Children[0].(query.Condition)
	assert.Equal(t, "c", c.Alias)
}

func TestTranslate_LinkAttributes_FromRelationship(t *testing.T) {
	reg := metadata.NewRegistry()
	require.NoError(t, reg.RegisterRelationship(&metadata.Relationship{
		Name:                 "account_contacts",
		Kind:                 metadata.OneToMany,
		Referenced:           "account",
		ReferencedAttribute:  "accountid",
		Referencing:          "contact",
		ReferencingAttribute: "parentaccountid",
	}))

	p, err := Translate([]byte(`
<fetch>
  <entity name="account">
    <link-entity name="contact" alias="c"/>
  </entity>
</fetch>`), reg)
	require.NoError(t, err)
	require.Len(t, p.Joins, 1)
	assert.Equal(t, "parentaccountid", p.Joins[0].From)
	assert.Equal(t, "accountid", p.Joins[0].To)
}

func TestTranslate_LinkWithoutAttributesOrRelationship_Fails(t *testing.T) {
	_, err := Translate([]byte(`
<fetch>
  <entity name="account">
    <link-entity name="contact"/>
  </entity>
</fetch>`), nil)
	assert.True(t, faults.IsValidation(err))
}

func TestTranslate_LegacyOperatorAlias(t *testing.T) {
	p := translate(t, `
<fetch>
  <entity name="account">
    <filter>
      <condition attribute="name" operator="neq" value="x"/>
    </filter>
  </entity>
</fetch>`)

	root := p.Filter.(query.And)
	assert.Equal(t, query.OpNe, root.Children[0].(query.Condition).Operator)
}

func TestTranslate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		markup string
	}{
		{"missing entity", `<fetch></fetch>`},
		{"entity without name", `<fetch><entity/></fetch>`},
		{"unknown operator", `
<fetch><entity name="account">
  <filter><condition attribute="name" operator="regex" value="x"/></filter>
</entity></fetch>`},
		{"wrong arity", `
<fetch><entity name="account">
  <filter><condition attribute="closed" operator="between" value="2024-01-01"/></filter>
</entity></fetch>`},
		{"bad filter type", `
<fetch><entity name="account">
  <filter type="xor"><condition attribute="name" operator="null"/></filter>
</entity></fetch>`},
		{"value attr mixed with value elements", `
<fetch><entity name="account">
  <filter><condition attribute="state" operator="in" value="0"><value>1</value></condition></filter>
</entity></fetch>`},
		{"unknown link-type", `
<fetch><entity name="account">
  <link-entity name="contact" from="a" to="b" link-type="cross"/>
</entity></fetch>`},
		{"top combined with page", `
<fetch top="5" page="2" count="5"><entity name="account"/></fetch>`},
		{"negative top", `
<fetch top="-1"><entity name="account"/></fetch>`},
		{"existence join with columns", `
<fetch><entity name="account">
  <link-entity name="contact" from="a" to="b" link-type="any">
    <attribute name="fullname"/>
  </link-entity>
</entity></fetch>`},
		{"existence join with nested link", `
<fetch><entity name="account">
  <link-entity name="contact" from="a" to="b" link-type="any">
    <link-entity name="task" from="x" to="y"/>
  </link-entity>
</entity></fetch>`},
		{"range operator with valueof", `
<fetch><entity name="account">
  <filter><condition attribute="closed" operator="between" valueof="opened"/></filter>
</entity></fetch>`},
		{"aggregate attribute without role", `
<fetch aggregate="true"><entity name="account">
  <attribute name="name"/>
</entity></fetch>`},
		{"aggregate with unknown function", `
<fetch aggregate="true"><entity name="account">
  <attribute name="revenue" aggregate="median"/>
</entity></fetch>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Translate([]byte(tc.markup), nil)
			assert.True(t, faults.IsValidation(err), "expected a validation fault, got %v", err)
		})
	}
}

func TestTranslate_MalformedXML(t *testing.T) {
	_, err := Translate([]byte(`<fetch><entity name="account">`), nil)
	require.Error(t, err)
	assert.False(t, faults.IsValidation(err), "XML syntax errors are wrapped parse errors, not faults")
}
