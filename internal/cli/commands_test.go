package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

const validQuery = `
<fetch top="5">
  <entity name="account">
    <attribute name="name"/>
    <filter>
      <condition attribute="name" operator="eq" value="Foo"/>
    </filter>
  </entity>
</fetch>`

func TestValidateCommand_ValidQuery(t *testing.T) {
	path := writeFile(t, "query.xml", validQuery)

	out, _, err := runCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "query valid")
}

func TestValidateCommand_InvalidQuery_ExitFailure(t *testing.T) {
	path := writeFile(t, "query.xml", `
<fetch><entity name="account">
  <filter><condition attribute="name" operator="regex" value="x"/></filter>
</entity></fetch>`)

	out, _, err := runCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "unknown condition operator")
}

func TestValidateCommand_MissingFile_ExitCommandError(t *testing.T) {
	_, _, err := runCommand(t, "validate", "does-not-exist.xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand_JSONFormat(t *testing.T) {
	path := writeFile(t, "query.xml", validQuery)

	out, _, err := runCommand(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestQueryCommand_EndToEnd(t *testing.T) {
	meta := writeFile(t, "meta.yaml", metadataYAML)
	data := writeFile(t, "data.yaml", `
records:
  - entity: account
    attributes:
      name: Foo
  - entity: account
    attributes:
      name: Other
`)
	queryPath := writeFile(t, "query.xml", validQuery)

	out, _, err := runCommand(t, "query", "--metadata", meta, "--data", data, queryPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 record(s)")
	assert.Contains(t, out, `name: "Foo"`)
	assert.NotContains(t, out, "Other")
}

func TestQueryCommand_JSONFormat(t *testing.T) {
	data := writeFile(t, "data.yaml", `
records:
  - entity: account
    attributes:
      name: Foo
`)
	queryPath := writeFile(t, "query.xml", validQuery)

	out, _, err := runCommand(t, "--format", "json", "query", "--data", data, queryPath)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Equal(t, 1, resp.Data.Count)
	attrs, ok := resp.Data.Records[0]["attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Foo", attrs["name"])
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	path := writeFile(t, "query.xml", validQuery)

	_, _, err := runCommand(t, "--format", "xml", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
