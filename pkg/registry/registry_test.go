// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"dialogue-engine/internal/common/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ClosedTable(t *testing.T) {
	cat := Default()
	assert.Equal(t, []string{
		ActionAccessToRedmine, ActionGetIssueByDate, ActionGetIssueByID, ActionGetIssueByName,
		ActionGetIssueStatus, ActionGetMyIssues, ActionGetIssueHours, ActionFillIssueHours,
		ActionGetUserStatus, ActionSetUserStatus, ActionCreateIssue, ActionAssignIssue,
		ActionGetWikiInfo, ActionGetGoogleSearch,
	}, cat.Names())

	for _, a := range cat.Actions {
		assert.NoError(t, validation.ValidateActionName(a.Name))
		assert.Equal(t, "object", a.Parameters.Type, a.Name)
	}
}

func TestCatalogue_Tools(t *testing.T) {
	tools := Default().Tools()
	require.Len(t, tools, 14)
	assert.Equal(t, ActionAccessToRedmine, tools[0].Name)
	assert.NotNil(t, tools[0].Parameters["properties"])
	assert.Equal(t, []interface{}{"issue_id"}, tools[2].Parameters["required"])
}

func TestCatalogue_Validate(t *testing.T) {
	cat := Default()

	res, err := cat.Validate(ActionFillIssueHours, map[string]interface{}{"issue_id": "#12", "hours": 3.5})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = cat.Validate(ActionFillIssueHours, map[string]interface{}{"issue_id": 12, "hours": -1.0})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	_, err = cat.Validate("drop_database", nil)
	assert.Error(t, err)
}

func TestLoad_AppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2.0.0",
		"actions": [
			{"name": "get_wiki_info", "description": "Read a page of the team wiki"},
			{"name": "get_google_search", "parameters": {"type": "object", "properties": {"q": {"type": "string"}}, "required": ["q"]}}
		]
	}`), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", cat.Version)

	wiki, ok := cat.Lookup(ActionGetWikiInfo)
	require.True(t, ok)
	assert.Equal(t, "Read a page of the team wiki", wiki.Description)
	assert.Equal(t, []string{"topic"}, wiki.Parameters.Required)

	search, _ := cat.Lookup(ActionGetGoogleSearch)
	assert.Equal(t, []string{"q"}, search.Parameters.Required)
	assert.Equal(t, "Search the web for general information", search.Description)
}

func TestLoad_RejectsUnknownActions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"actions":[{"name":"delete_everything","description":"x"}]}`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete_everything")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cat.Actions, 14)
}
