package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "dialogue-engine/internal/common/errors"
	httpclient "dialogue-engine/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestProvider(t *testing.T, handler http.HandlerFunc, retries int) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 2 * time.Second, MaxRetries: retries}
	return NewOpenAIProviderWithClient(cfg, httpclient.NewClientWith(srv.Client())), srv
}

func writeChoice(w http.ResponseWriter, content *string, toolCalls []map[string]interface{}) {
	msg := map[string]interface{}{"role": "assistant", "content": content}
	if toolCalls != nil {
		msg["tool_calls"] = toolCalls
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"model":   "gpt-test",
		"choices": []map[string]interface{}{{"message": msg}},
	})
}

func strPtr(s string) *string { return &s }

// ==========================
// Core Functionality Tests
// ==========================

func TestComplete_TextResponse(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		assert.Nil(t, body["tools"])

		writeChoice(w, strPtr("  Hello there  "), nil)
	}, 0)

	resp, err := p.Complete(context.Background(), &Request{
		Model:    "gpt-test",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Text)
	assert.Empty(t, resp.ToolCalls)
}

func TestComplete_ToolCalls(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "auto", body["tool_choice"])
		tools := body["tools"].([]interface{})
		require.Len(t, tools, 1)
		assert.Equal(t, "function", tools[0].(map[string]interface{})["type"])

		writeChoice(w, nil, []map[string]interface{}{
			{"id": "c1", "type": "function", "function": map[string]interface{}{"name": "get_issue_by_id", "arguments": `{"issue_id":"42"}`}},
			{"id": "c2", "type": "function", "function": map[string]interface{}{"name": "get_my_issues", "arguments": `{}`}},
		})
	}, 0)

	resp, err := p.Complete(context.Background(), &Request{
		Model: "gpt-test",
		Tools: []Tool{{Name: "get_issue_by_id", Parameters: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "get_issue_by_id", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"issue_id":"42"}`, resp.ToolCalls[0].Arguments)
}

// ==========================
// Error Handling Tests
// ==========================

func TestComplete_ErrorClasses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  error
		wantCode apperrors.ErrorCode
		calls    int32
	}{
		{"rate limited retries", http.StatusTooManyRequests, ErrRateLimited, apperrors.ErrCodeGenAIRateLimited, 3},
		{"unauthorized fails fast", http.StatusUnauthorized, ErrUnauthorized, apperrors.ErrCodeGenAIUnauthorized, 1},
		{"server error retries", http.StatusBadGateway, ErrProviderFailed, apperrors.ErrCodeGenAIFailed, 3},
		{"bad request fails fast", http.StatusBadRequest, ErrProviderFailed, apperrors.ErrCodeGenAIFailed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}, 2)

			_, err := p.Complete(context.Background(), &Request{Model: "m"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, tt.wantCode, ErrorCode(err))
			assert.Equal(t, tt.calls, atomic.LoadInt32(&calls))
		})
	}
}

func TestComplete_EmptyResponse(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeChoice(w, strPtr("   "), nil)
	}, 0)

	_, err := p.Complete(context.Background(), &Request{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, apperrors.ErrCodeGenAIEmptyResponse, ErrorCode(err))
}

func TestComplete_Timeout(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, &Request{Model: "m"})
	assert.ErrorIs(t, err, ErrTimeout)
}
