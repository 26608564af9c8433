// Package genai talks to chat-completion style generation providers.
package genai

import (
	"context"
	"errors"
)

var (
	ErrRateLimited    = errors.New("GENAI_RATE_LIMITED")
	ErrUnauthorized   = errors.New("GENAI_UNAUTHORIZED")
	ErrTimeout        = errors.New("GENAI_TIMEOUT")
	ErrEmptyResponse  = errors.New("GENAI_EMPTY_RESPONSE")
	ErrProviderFailed = errors.New("GENAI_FAILED")
)

// Provider completes a conversation, optionally choosing tools.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool is a callable function offered to the model.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type Request struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// ToolCall is a model-selected tool. Arguments is raw JSON text as produced by
// the model and may be malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Response struct {
	Text      string
	ToolCalls []ToolCall
	Model     string
}
