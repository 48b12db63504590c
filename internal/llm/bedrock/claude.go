package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
)

type claudeMessageRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
	Tools            []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeMessageResponse struct {
	Content    []claudeBlock `json:"content"`
	StopReason string        `json:"stop_reason"`
}

var anthropicVersion = "bedrock-2023-05-31"

const defaultMaxTokens = 1024

func (c *Client) InvokeModel(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	payload := buildClaudeRequest(request)

	byes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("Unable to serialize claude request. Error: %w", err)
	}

	output, err := c.Client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.ModelID,
		Body:        byes,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})

	if err != nil {
		return nil, classify(fmt.Errorf("Unable to invoke claude model. Error: %w", err))
	}

	var response claudeMessageResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal bedrock response. Error: %w", err)
	}

	result := &llm.LLMResponse{StopReason: response.StopReason}
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			args, _ := block.Input.(map[string]any)
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return result, nil
}

func (c *Client) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	return llm.InvokeWithRetry(ctx, c.Retry, request, c.InvokeModel)
}

func buildClaudeRequest(request llm.LLMRequest) claudeMessageRequest {
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := claudeMessageRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      request.Temperature,
		System:           request.System,
	}

	for _, tool := range request.Tools {
		payload.Tools = append(payload.Tools, claudeTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	for _, msg := range request.Conversation() {
		switch msg.Role {
		case llm.RoleTool:
			block := claudeBlock{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content}
			// Consecutive tool results belong to one user turn.
			if n := len(payload.Messages); n > 0 && payload.Messages[n-1].Role == "user" && isToolResultTurn(payload.Messages[n-1]) {
				payload.Messages[n-1].Content = append(payload.Messages[n-1].Content, block)
				continue
			}
			payload.Messages = append(payload.Messages, claudeMessage{Role: "user", Content: []claudeBlock{block}})
		case llm.RoleAssistant:
			var blocks []claudeBlock
			if msg.Content != "" {
				blocks = append(blocks, claudeBlock{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				input := call.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, claudeBlock{Type: "tool_use", ID: call.ID, Name: call.Name, Input: input})
			}
			payload.Messages = append(payload.Messages, claudeMessage{Role: "assistant", Content: blocks})
		default:
			payload.Messages = append(payload.Messages, claudeMessage{
				Role:    "user",
				Content: []claudeBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}

	return payload
}

func isToolResultTurn(m claudeMessage) bool {
	return len(m.Content) > 0 && m.Content[0].Type == "tool_result"
}
