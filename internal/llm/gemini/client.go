package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"google.golang.org/genai"
)

const (
	provider       = "gemini"
	DefaultModelID = "gemini-2.0-flash"
)

// Generator is the subset of genai.Models used for chat.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	Models  Generator
	ModelID string
	Retry   llm.RetryConfig
}

func NewClient(ctx context.Context, apiKey string, modelID string) (*Client, error) {
	client, err := newGenaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if modelID == "" {
		modelID = DefaultModelID
	}

	return &Client{
		Models:  client.Models,
		ModelID: modelID,
		Retry: llm.RetryConfig{
			MaxRetries:   3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     12 * time.Second,
		},
	}, nil
}

func newGenaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return client, nil
}

func (c *Client) InvokeModel(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	resp, err := c.Models.GenerateContent(ctx, c.ModelID, convertMessages(request.Conversation()), buildConfig(request))
	if err != nil {
		return nil, classify(fmt.Errorf("Unable to invoke gemini model. Error: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return nil, llm.Wrap(provider, llm.ErrUnavailable, errors.New("no candidates in gemini response"))
	}

	result := &llm.LLMResponse{
		Content:    resp.Text(),
		StopReason: string(resp.Candidates[0].FinishReason),
	}
	for _, call := range resp.FunctionCalls() {
		args := call.Args
		if args == nil {
			args = map[string]any{}
		}
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: args,
		})
	}

	return result, nil
}

func (c *Client) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	return llm.InvokeWithRetry(ctx, c.Retry, request, c.InvokeModel)
}

func buildConfig(request llm.LLMRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if request.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: request.System}},
		}
	}

	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(request.MaxTokens, math.MaxInt32))
	}

	temperature := float32(request.Temperature)
	config.Temperature = &temperature

	if len(request.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(request.Tools))
		for _, tool := range request.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  toSchema(tool.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	return config
}

func convertMessages(messages []llm.Message) []*genai.Content {
	var result []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.Name,
				Response: map[string]any{"output": msg.Content},
			}}
			// Consecutive tool results belong to one user turn.
			if n := len(result); n > 0 && result[n-1].Role == genai.RoleUser && result[n-1].Parts[0].FunctionResponse != nil {
				result[n-1].Parts = append(result[n-1].Parts, part)
				continue
			}
			result = append(result, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		case llm.RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: call.Arguments,
				}})
			}
			if len(content.Parts) > 0 {
				result = append(result, content)
			}
		default:
			result = append(result, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	return result
}

// toSchema converts a JSON schema object to the Gemini schema type.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}

	schema := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := m["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := m["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toSchema(propMap)
			}
		}
	}
	switch required := m["required"].(type) {
	case []string:
		schema.Required = append(schema.Required, required...)
	case []any:
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}
	return schema
}

// classify tags a Gemini API failure with its llm error kind.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.Wrap(provider, kindFromAPIError(apiErr), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llm.Wrap(provider, kindFromAPIError(*apiErrPtr), err)
	}
	return llm.Wrap(provider, llm.KindFromTransport(err), err)
}

func kindFromAPIError(apiErr genai.APIError) error {
	switch apiErr.Status {
	case "RESOURCE_EXHAUSTED":
		return llm.ErrQuotaExceeded
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return llm.ErrAuth
	}
	if apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key") {
		return llm.ErrAuth
	}
	return llm.KindFromStatus(apiErr.Code)
}
