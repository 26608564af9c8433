// pkg/registry/schema.go
package registry

import "dialogue-engine/internal/common/validation"

// Catalogue is the closed set of actions the intent classifier may select.
type Catalogue struct {
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
	Actions     []Action `json:"actions"`
}

type Action struct {
	Name        string                `json:"name"`
	DisplayName string                `json:"displayName"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Parameters  validation.JSONSchema `json:"parameters"`
	ErrorCodes  []string              `json:"errorCodes,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
}

// Override replaces the description and, when present, the parameter schema
// of a known action.
type Override struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  *validation.JSONSchema `json:"parameters,omitempty"`
}

type OverrideFile struct {
	Version   string     `json:"version"`
	Overrides []Override `json:"actions"`
}

// ToolDefinition is the provider-neutral shape of one action.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}
