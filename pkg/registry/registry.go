// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"dialogue-engine/internal/common/validation"
)

const (
	CategoryTicketing = "ticketing"
	CategorySearch    = "search"
)

// Action names understood by the dispatcher.
const (
	ActionAccessToRedmine = "access_to_redmine"
	ActionGetIssueByDate  = "get_issue_by_date"
	ActionGetIssueByID    = "get_issue_by_id"
	ActionGetIssueByName  = "get_issue_by_name"
	ActionGetIssueStatus  = "get_issue_status"
	ActionGetMyIssues     = "get_my_issues"
	ActionGetIssueHours   = "get_issue_hours"
	ActionFillIssueHours  = "fill_issue_hours"
	ActionGetUserStatus   = "get_user_status"
	ActionSetUserStatus   = "set_user_status"
	ActionCreateIssue     = "create_issue"
	ActionAssignIssue     = "assign_issue"
	ActionGetWikiInfo     = "get_wiki_info"
	ActionGetGoogleSearch = "get_google_search"
)

func str(desc string) validation.Property {
	return validation.Property{Type: "string", Description: desc}
}

func idProp(desc string) validation.Property {
	return validation.Property{Description: desc, AnyOf: []validation.Property{{Type: "string"}, {Type: "integer"}}}
}

func object(required []string, props map[string]validation.Property) validation.JSONSchema {
	if props == nil {
		props = map[string]validation.Property{}
	}
	return validation.JSONSchema{Type: "object", Properties: props, Required: required}
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	minHours := 0.0
	return &Catalogue{
		Version:     "1.0.0",
		LastUpdated: "2025-03-01",
		Actions: []Action{
			{
				Name: ActionAccessToRedmine, DisplayName: "Check Redmine access", Category: CategoryTicketing,
				Description: "Check that the Redmine API is reachable with the configured key",
				Parameters:  object(nil, nil),
			},
			{
				Name: ActionGetIssueByDate, DisplayName: "Issues by date", Category: CategoryTicketing,
				Description: "List my issues updated on or after a date such as today, yesterday, 15.03 or 15.03.2025",
				Parameters:  object([]string{"date"}, map[string]validation.Property{"date": str("Date of the issues")}),
			},
			{
				Name: ActionGetIssueByID, DisplayName: "Issue by id", Category: CategoryTicketing,
				Description: "Get issue #453799 details by ID",
				Parameters:  object([]string{"issue_id"}, map[string]validation.Property{"issue_id": idProp("ID of the issue, with or without #")}),
			},
			{
				Name: ActionGetIssueByName, DisplayName: "Issue by name", Category: CategoryTicketing,
				Description: "Find my open issues whose subject contains a name",
				Parameters:  object([]string{"name"}, map[string]validation.Property{"name": str("Name of the issue")}),
			},
			{
				Name: ActionGetIssueStatus, DisplayName: "Issue status", Category: CategoryTicketing,
				Description: "Get the status of an issue by name or ID",
				Parameters: object(nil, map[string]validation.Property{
					"name":     str("Name of the issue"),
					"issue_id": idProp("ID of the issue"),
				}),
			},
			{
				Name: ActionGetMyIssues, DisplayName: "My issues", Category: CategoryTicketing,
				Description: "Get issues assigned to me",
				Parameters: object(nil, map[string]validation.Property{
					"status": {Type: "string", Description: "Issue status filter", Enum: []string{"open", "closed", "*"}},
				}),
			},
			{
				Name: ActionGetIssueHours, DisplayName: "Issue hours", Category: CategoryTicketing,
				Description: "Get estimated and spent hours of an issue by name",
				Parameters:  object([]string{"name"}, map[string]validation.Property{"name": str("Name of the issue")}),
			},
			{
				Name: ActionFillIssueHours, DisplayName: "Log hours", Category: CategoryTicketing,
				Description: "Fill issue #453799 5 hours I did some hotfix",
				Parameters: object([]string{"issue_id", "hours"}, map[string]validation.Property{
					"issue_id":    idProp("ID of the issue"),
					"hours":       {Type: "number", Description: "Number of hours spent on the issue", Minimum: &minHours},
					"description": str("Description of the work done"),
					"date":        str("Day the work was done"),
				}),
			},
			{
				Name: ActionGetUserStatus, DisplayName: "User status", Category: CategoryTicketing,
				Description: "Get a Redmine user's status, mine when no user is given",
				Parameters:  object(nil, map[string]validation.Property{"user_id": idProp("ID of the user")}),
			},
			{
				Name: ActionSetUserStatus, DisplayName: "Set user status", Category: CategoryTicketing,
				Description: "Set a Redmine user's status to active, registered or locked",
				Parameters: object([]string{"status"}, map[string]validation.Property{
					"user_id": idProp("ID of the user"),
					"status":  str("New status of the user"),
				}),
			},
			{
				Name: ActionCreateIssue, DisplayName: "Create issue", Category: CategoryTicketing,
				Description: "Create a new issue",
				Parameters: object([]string{"subject"}, map[string]validation.Property{
					"subject":     str("Subject of the issue"),
					"description": str("Description of the issue"),
					"priority":    str("Priority name, Normal by default"),
				}),
			},
			{
				Name: ActionAssignIssue, DisplayName: "Assign issue", Category: CategoryTicketing,
				Description: "Assign an issue to a user, me for the current user",
				Parameters: object([]string{"issue_id", "user_id"}, map[string]validation.Property{
					"issue_id": idProp("ID of the issue"),
					"user_id":  idProp("ID of the user or me"),
				}),
			},
			{
				Name: ActionGetWikiInfo, DisplayName: "Wiki page", Category: CategoryTicketing,
				Description: "Get wiki information by page name",
				Parameters:  object([]string{"topic"}, map[string]validation.Property{"topic": str("Title of the wiki page")}),
			},
			{
				Name: ActionGetGoogleSearch, DisplayName: "Web search", Category: CategorySearch,
				Description: "Search the web for general information",
				Parameters:  object([]string{"query"}, map[string]validation.Property{"query": str("Search query")}),
			},
		},
	}
}

// LoadRegistry reads a catalogue override file.
func LoadRegistry(path string) (*OverrideFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file OverrideFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &file, nil
}

// Load returns the built-in catalogue, with overrides applied when path is set.
func Load(path string) (*Catalogue, error) {
	cat := Default()
	if path == "" {
		return cat, nil
	}
	file, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	if err := cat.Apply(file.Overrides); err != nil {
		return nil, err
	}
	if file.Version != "" {
		cat.Version = file.Version
	}
	return cat, nil
}

// Apply merges overrides into the catalogue. Unknown action names are rejected
// since the dispatch table is closed.
func (c *Catalogue) Apply(overrides []Override) error {
	for _, o := range overrides {
		if err := validation.ValidateActionName(o.Name); err != nil {
			return err
		}
		idx := c.indexOf(o.Name)
		if idx < 0 {
			return fmt.Errorf("unknown action %q in catalogue override", o.Name)
		}
		if o.Description != "" {
			c.Actions[idx].Description = o.Description
		}
		if o.Parameters != nil {
			if o.Parameters.Type != "object" {
				return fmt.Errorf("action %q: parameters must be an object schema", o.Name)
			}
			c.Actions[idx].Parameters = *o.Parameters
		}
	}
	return nil
}

func (c *Catalogue) indexOf(name string) int {
	for i, a := range c.Actions {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Lookup finds an action by name.
func (c *Catalogue) Lookup(name string) (Action, bool) {
	if i := c.indexOf(name); i >= 0 {
		return c.Actions[i], true
	}
	return Action{}, false
}

func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.Actions))
	for _, a := range c.Actions {
		names = append(names, a.Name)
	}
	return names
}

// Tools renders the catalogue for a generation provider.
func (c *Catalogue) Tools() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(c.Actions))
	for _, a := range c.Actions {
		out = append(out, ToolDefinition{Name: a.Name, Description: a.Description, Parameters: a.Parameters.ToMap()})
	}
	return out
}

// Validate checks arguments against the action's schema.
func (c *Catalogue) Validate(name string, args map[string]interface{}) (*validation.ValidationResult, error) {
	a, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	return validation.ValidateInput(args, a.Parameters), nil
}
