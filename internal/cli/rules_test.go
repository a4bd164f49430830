package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rulesResponse struct {
	Status string      `json:"status"`
	Data   RulesResult `json:"data"`
}

func TestRulesText(t *testing.T) {
	out, _, err := execute(t, "--catalog", abCatalog, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "RULE")
	assert.Contains(t, out, "AToB")
	assert.Contains(t, out, "DEFAULT")
	assert.NotContains(t, out, "BToA", "inactive rules are hidden by default")
}

func TestRulesIncludesInactive(t *testing.T) {
	out, _, err := execute(t, "--catalog", abCatalog, "rules", "--inactive")
	require.NoError(t, err)
	assert.Contains(t, out, "BToA")
	assert.Contains(t, out, "inactive: annotated: false")
}

func TestRulesFilterJSON(t *testing.T) {
	out, _, err := execute(t, "--catalog", abCatalog, "--format", "json", "rules", "--inactive", "--filter", "B*")
	require.NoError(t, err)

	var resp rulesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.RuleSetHash)
	require.Len(t, resp.Data.Rules, 1)
	assert.Equal(t, "BToA", resp.Data.Rules[0].ID)
	assert.False(t, resp.Data.Rules[0].Active)
}

func TestRulesDescribesAlternatives(t *testing.T) {
	out, _, err := execute(t, "--catalog", cycleCatalog, "--format", "json", "rules")
	require.NoError(t, err)

	var resp rulesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Rules, 2)
	assert.Equal(t, "AToB", resp.Data.Rules[0].ID, "declaration order")
	assert.Equal(t, "BToA", resp.Data.Rules[1].ID)
	for _, r := range resp.Data.Rules {
		assert.True(t, r.Active)
		assert.Len(t, r.Before, 1)
		assert.NotEmpty(t, r.After)
	}
}

func TestRulesNoMatch(t *testing.T) {
	out, _, err := execute(t, "--catalog", abCatalog, "rules", "--filter", "Nothing*")
	require.NoError(t, err)
	assert.Contains(t, out, "No rules found.")
}

func TestRulesInvalidFilter(t *testing.T) {
	_, _, err := execute(t, "--catalog", abCatalog, "rules", "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
