// internal/workers/dialogue/action-dispatcher/models.go
package actiondispatcher

import (
	"fmt"
	"strconv"
	"strings"

	"dialogue-engine/internal/models"
)

// Unknown is what a missing argument reads as.
const Unknown = "unknown"

type Input struct {
	State models.ConversationState `json:"state"`
}

type Output struct {
	State models.ConversationState `json:"state"`
}

// Args wraps provider-supplied arguments, which may be loosely typed.
type Args map[string]interface{}

// String returns the argument as text, or Unknown when it is missing or empty.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return Unknown
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}

// Has reports whether key carries a usable value.
func (a Args) Has(key string) bool {
	return a.String(key) != Unknown
}

// Require returns the argument as text, or ErrInvalidArgument when it is
// missing. Use it for values that are sent upstream as-is.
func (a Args) Require(key string) (string, error) {
	if !a.Has(key) {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgument, key)
	}
	return a.String(key), nil
}

// IssueID reads an issue id, tolerating a leading "#".
func (a Args) IssueID(key string) (int, error) {
	raw := strings.TrimPrefix(a.String(key), "#")
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not an issue id", ErrInvalidArgument, a.String(key))
	}
	return id, nil
}

// Float reads a number sent either as a JSON number or as text. A decimal
// comma is accepted.
func (a Args) Float(key string) (float64, error) {
	if f, ok := a[key].(float64); ok {
		return f, nil
	}
	raw := strings.ReplaceAll(a.String(key), ",", ".")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, a.String(key))
	}
	return f, nil
}
