package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
)

type fakeRuntime struct {
	body     string
	err      error
	lastBody []byte
	lastID   string
}

func (f *fakeRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastBody = params.Body
	f.lastID = *params.ModelId
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestInvokeModel_TextAndToolUse(t *testing.T) {
	runtime := &fakeRuntime{body: `{
		"content": [
			{"type": "text", "text": "Let me search."},
			{"type": "tool_use", "id": "tu_1", "name": "search", "input": {"query": "kafka install"}}
		],
		"stop_reason": "tool_use"
	}`}
	client := &Client{Client: runtime, ModelID: "claude-test", Retry: llm.DefaultRetryConfig()}

	resp, err := client.InvokeModel(context.Background(), llm.LLMRequest{
		System: "You are GitSensei",
		Prompt: "How do I install Kafka?",
		Tools: []llm.ToolSpec{{
			Name:        "search",
			Description: "Search the FAQ",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("InvokeModel failed: %v", err)
	}

	if resp.Content != "Let me search." || resp.StopReason != "tool_use" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "search" || resp.ToolCalls[0].Arguments["query"] != "kafka install" {
		t.Errorf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if runtime.lastID != "claude-test" {
		t.Errorf("expected model id claude-test, got %s", runtime.lastID)
	}

	var sent claudeMessageRequest
	if err := json.Unmarshal(runtime.lastBody, &sent); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if sent.System != "You are GitSensei" || sent.AnthropicVersion != anthropicVersion {
		t.Errorf("unexpected request header fields %+v", sent)
	}
	if sent.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", sent.MaxTokens)
	}
	if len(sent.Tools) != 1 || sent.Tools[0].Name != "search" {
		t.Errorf("expected tool spec in request, got %+v", sent.Tools)
	}
}

func TestBuildClaudeRequest_ToolResults(t *testing.T) {
	req := buildClaudeRequest(llm.LLMRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "question"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "a", Name: "search"}, {ID: "b", Name: "search"}}},
			{Role: llm.RoleTool, ToolCallID: "a", Content: "result a"},
			{Role: llm.RoleTool, ToolCallID: "b", Content: "result b"},
		},
	})

	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(req.Messages))
	}
	results := req.Messages[2]
	if results.Role != "user" || len(results.Content) != 2 {
		t.Fatalf("expected merged tool results turn, got %+v", results)
	}
	if results.Content[1].ToolUseID != "b" || results.Content[1].Type != "tool_result" {
		t.Errorf("unexpected tool result block %+v", results.Content[1])
	}
	if req.Messages[1].Content[0].Input == nil {
		t.Error("tool_use blocks must always carry an input object")
	}
}

func TestInvokeModel_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{code: "ThrottlingException", want: llm.ErrQuotaExceeded},
		{code: "AccessDeniedException", want: llm.ErrAuth},
		{code: "ResourceNotFoundException", want: llm.ErrModelNotFound},
		{code: "ServiceUnavailableException", want: llm.ErrUnavailable},
		{code: "ModelTimeoutException", want: llm.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			apiErr := &smithy.GenericAPIError{Code: tt.code, Message: "failure"}
			client := &Client{Client: &fakeRuntime{err: fmt.Errorf("operation error: %w", apiErr)}, ModelID: "m"}

			_, err := client.InvokeModel(context.Background(), llm.LLMRequest{Prompt: "hi"})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("validation stays unclassified", func(t *testing.T) {
		apiErr := &smithy.GenericAPIError{Code: "ValidationException", Message: "bad"}
		client := &Client{Client: &fakeRuntime{err: apiErr}, ModelID: "m"}
		_, err := client.InvokeModel(context.Background(), llm.LLMRequest{Prompt: "hi"})
		if llm.IsRetryable(err) {
			t.Errorf("validation errors must not be retryable: %v", err)
		}
	})
}

func TestTitanEmbedder(t *testing.T) {
	runtime := &fakeRuntime{body: `{"embedding": [0.1, 0.2, 0.3], "inputTextTokenCount": 3}`}
	emb := &TitanEmbedder{Client: runtime, ModelID: DefaultTitanModelID, Dimensions: 3}

	vec, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || emb.Dimension() != 3 {
		t.Errorf("unexpected vector %v", vec)
	}

	var sent titanRequest
	if err := json.Unmarshal(runtime.lastBody, &sent); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if sent.InputText != "hello" || !sent.Normalize || sent.Dimensions != 3 {
		t.Errorf("unexpected titan request %+v", sent)
	}

	runtime.err = &smithy.GenericAPIError{Code: "ThrottlingException"}
	if _, err := emb.Embed(context.Background(), "hello"); !errors.Is(err, llm.ErrQuotaExceeded) {
		t.Errorf("expected quota error, got %v", err)
	}
}
