package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/sashabaranov/go-openai"
)

func newTestServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("request body is not JSON: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) openai.ClientConfig {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return cfg
}

func TestInvokeModel_ToolCalls(t *testing.T) {
	var captured map[string]any
	srv := newTestServer(t, http.StatusOK, `{
		"id": "cmpl-1",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "search", "arguments": "{\"query\":\"docker\"}"}
				}]
			}
		}]
	}`, &captured)

	client := NewClientWithConfig(testConfig(srv), "gpt-test")
	resp, err := client.InvokeModel(context.Background(), llm.LLMRequest{
		System: "system prompt",
		Prompt: "How do I run docker?",
		Tools:  []llm.ToolSpec{{Name: "search", Description: "d", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("InvokeModel failed: %v", err)
	}

	if resp.StopReason != "tool_calls" {
		t.Errorf("unexpected stop reason %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Arguments["query"] != "docker" {
		t.Errorf("unexpected tool calls %+v", resp.ToolCalls)
	}

	if captured["model"] != "gpt-test" {
		t.Errorf("expected model gpt-test, got %v", captured["model"])
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", captured["messages"])
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("expected first message to be the system prompt, got %v", first)
	}
	if tools, _ := captured["tools"].([]any); len(tools) != 1 {
		t.Errorf("expected one tool in request, got %v", captured["tools"])
	}
}

func TestInvokeModel_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "rate limit", status: 429, body: `{"error":{"message":"slow down","type":"requests"}}`, want: llm.ErrQuotaExceeded},
		{name: "bad key", status: 401, body: `{"error":{"message":"invalid key","type":"invalid_request_error"}}`, want: llm.ErrAuth},
		{name: "unknown model", status: 404, body: `{"error":{"message":"model not found","type":"invalid_request_error"}}`, want: llm.ErrModelNotFound},
		{name: "server", status: 503, body: `{"error":{"message":"overloaded","type":"server_error"}}`, want: llm.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			client := NewClientWithConfig(testConfig(srv), "gpt-test")

			_, err := client.InvokeModel(context.Background(), llm.LLMRequest{Prompt: "hi"})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuildChatRequest_Conversation(t *testing.T) {
	req, err := buildChatRequest("m", llm.LLMRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "q"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search", Arguments: map[string]any{"query": "x"}}}},
			{Role: llm.RoleTool, ToolCallID: "c1", Name: "search", Content: "[]"},
		},
	})
	if err != nil {
		t.Fatalf("buildChatRequest failed: %v", err)
	}

	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(req.Messages))
	}
	if req.Messages[1].ToolCalls[0].Function.Arguments != `{"query":"x"}` {
		t.Errorf("unexpected arguments %q", req.Messages[1].ToolCalls[0].Function.Arguments)
	}
	if req.Messages[2].Role != openai.ChatMessageRoleTool || req.Messages[2].ToolCallID != "c1" {
		t.Errorf("unexpected tool message %+v", req.Messages[2])
	}
}

func TestEmbedder(t *testing.T) {
	var captured map[string]any
	srv := newTestServer(t, http.StatusOK, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.5]}],"model":"m"}`, &captured)

	emb := NewEmbedderWithConfig(testConfig(srv), "", 2)
	vec, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 2 || emb.Dimension() != 2 {
		t.Errorf("unexpected vector %v", vec)
	}
	if captured["model"] != DefaultEmbeddingModel {
		t.Errorf("expected default embedding model, got %v", captured["model"])
	}
}
