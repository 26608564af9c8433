package genai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	httpclient "dialogue-engine/internal/common/http"
)

// Config configures an OpenAI-compatible chat completions client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAIProvider calls POST {base}/chat/completions.
type OpenAIProvider struct {
	config *Config
	client *httpclient.Client
}

func NewOpenAIProvider(config *Config) *OpenAIProvider {
	return NewOpenAIProviderWithClient(config, httpclient.NewClient(config.Timeout))
}

// NewOpenAIProviderWithClient lets tests inject an httptest client.
func NewOpenAIProviderWithClient(config *Config, client *httpclient.Client) *OpenAIProvider {
	return &OpenAIProvider{
		config: config,
		client: client.WithHeader("Authorization", "Bearer "+config.APIKey),
	}
}

type chatTool struct {
	Type     string `json:"type"`
	Function Tool   `json:"function"`
}

type chatRequest struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	Tools       []chatTool `json:"tools,omitempty"`
	ToolChoice  string     `json:"tool_choice,omitempty"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	body := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, chatTool{Type: "function", Function: t})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/chat/completions"

	var out chatResponse
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}

		err := p.client.DoJSON(ctx, http.MethodPost, url, body, &out)
		if err == nil {
			lastErr = nil
			break
		}
		var retry bool
		retry, lastErr = classify(ctx, err)
		if !retry {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if len(out.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	msg := out.Choices[0].Message
	resp := &Response{Model: out.Model}
	if msg.Content != nil {
		resp.Text = strings.TrimSpace(*msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if resp.Text == "" && len(resp.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// classify maps transport errors onto the package sentinels and reports
// whether another attempt may succeed.
func classify(ctx context.Context, err error) (bool, error) {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return false, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case code == http.StatusTooManyRequests:
			return true, fmt.Errorf("%w: %v", ErrRateLimited, err)
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return false, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return true, fmt.Errorf("%w: %v", ErrTimeout, err)
		case code >= 500:
			return true, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		default:
			return false, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if strings.Contains(err.Error(), "decode response") {
		return false, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	return true, fmt.Errorf("%w: %v", ErrProviderFailed, err)
}
