package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaDoc = `
entities:
  - name: account
    primary_name: name
    attributes:
      name: string
      accountnumber: string
      revenue: money
      primarycontactid: { type: lookup, target: contact }
    keys:
      - name: number
        attributes: [accountnumber]
  - name: contact
    primary_name: fullname
    attributes:
      fullname: string
relationships:
  - name: contact_accounts
    referenced: contact
    referenced_attribute: contactid
    referencing: account
    referencing_attribute: primarycontactid
`

func TestParseDocument(t *testing.T) {
	reg, err := ParseDocument([]byte(schemaDoc))
	require.NoError(t, err)

	account, ok := reg.Entity("account")
	require.True(t, ok)
	assert.Equal(t, "name", account.PrimaryName)
	require.Len(t, account.Keys, 1)
	assert.Equal(t, []string{"accountnumber"}, account.Keys[0].Attributes)

	am, ok := reg.Attribute("account", "primarycontactid")
	require.True(t, ok)
	assert.Equal(t, TypeLookup, am.Type)
	assert.Equal(t, "contact", am.Target)

	rel, ok := reg.RelationshipBetween("account", "contact")
	require.True(t, ok)
	assert.Equal(t, OneToMany, rel.Kind)
	assert.Equal(t, "primarycontactid", rel.ReferencingAttribute)
}

func TestParseDocument_UnknownAttributeType(t *testing.T) {
	_, err := ParseDocument([]byte(`
entities:
  - name: account
    attributes:
      name: varchar
`))
	assert.ErrorContains(t, err, "unknown attribute type")
}

func TestParseDocument_KeyOnUndeclaredAttribute(t *testing.T) {
	_, err := ParseDocument([]byte(`
entities:
  - name: account
    attributes:
      name: string
    keys:
      - name: bad
        attributes: [nosuch]
`))
	assert.ErrorContains(t, err, "undeclared attribute")
}

func TestParseDocument_EntityWithoutName(t *testing.T) {
	_, err := ParseDocument([]byte(`
entities:
  - attributes:
      name: string
`))
	assert.ErrorContains(t, err, "entity without a name")
}
