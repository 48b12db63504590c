package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/sashabaranov/go-openai"
)

const (
	provider       = "openai"
	DefaultModelID = "gpt-4o-mini"
)

type Client struct {
	Client  *openai.Client
	ModelID string
	Retry   llm.RetryConfig
}

func NewClient(apiKey string, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return NewClientWithConfig(openai.DefaultConfig(apiKey), modelID), nil
}

// NewClientWithConfig builds a client from a full go-openai config, e.g. a custom BaseURL.
func NewClientWithConfig(cfg openai.ClientConfig, modelID string) *Client {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Client{
		Client:  openai.NewClientWithConfig(cfg),
		ModelID: modelID,
		Retry: llm.RetryConfig{
			MaxRetries:   3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     12 * time.Second,
		},
	}
}

func (c *Client) InvokeModel(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	chatReq, err := buildChatRequest(c.ModelID, request)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classify(fmt.Errorf("Unable to invoke openai model. Error: %w", err))
	}

	if len(resp.Choices) == 0 {
		return nil, llm.Wrap(provider, llm.ErrUnavailable, errors.New("empty choices in chat completion"))
	}

	choice := resp.Choices[0]
	result := &llm.LLMResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}

	for _, call := range choice.Message.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("Failed to decode arguments of tool call %s. Error: %w", call.Function.Name, err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	return result, nil
}

func (c *Client) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	return llm.InvokeWithRetry(ctx, c.Retry, request, c.InvokeModel)
}

func buildChatRequest(model string, request llm.LLMRequest) (openai.ChatCompletionRequest, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   request.MaxTokens,
		Temperature: float32(request.Temperature),
	}

	if request.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.System,
		})
	}

	for _, msg := range request.Conversation() {
		switch msg.Role {
		case llm.RoleTool:
			chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
				Name:       msg.Name,
			})
		case llm.RoleAssistant:
			out := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Arguments)
				if err != nil {
					return openai.ChatCompletionRequest{}, fmt.Errorf("Unable to serialize arguments of tool call %s. Error: %w", call.Name, err)
				}
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			chatReq.Messages = append(chatReq.Messages, out)
		default:
			chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}

	for _, tool := range request.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return chatReq, nil
}
