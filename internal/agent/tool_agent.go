package agent

import (
	"context"
	"fmt"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
	"github.com/rs/zerolog"
)

// ToolAgent answers with native function calling.
type ToolAgent struct {
	client       llm.LLMClient
	tool         SearchTool
	cfg          Config
	interactions InteractionLogger
	logger       *zerolog.Logger
}

func NewToolAgent(client llm.LLMClient, tool SearchTool, cfg Config, interactions InteractionLogger, logger *zerolog.Logger) *ToolAgent {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ToolAgent{
		client:       client,
		tool:         tool,
		cfg:          cfg.withDefaults(),
		interactions: interactions,
		logger:       logger,
	}
}

func (a *ToolAgent) Ask(ctx context.Context, question string) (*Answer, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: question}}
	var calls []models.ToolCall

	for step := 0; step < a.cfg.MaxSteps; step++ {
		resp, err := invoke(ctx, a.client, llm.LLMRequest{
			System:   a.cfg.SystemPrompt,
			Messages: messages,
			Tools:    []llm.ToolSpec{a.tool.Spec()},
		})
		if err != nil {
			return nil, fmt.Errorf("agent %s failed to answer: %w", a.cfg.Name, err)
		}

		if len(resp.ToolCalls) == 0 {
			a.logger.Debug().Str("agent", a.cfg.Name).Int("steps", step+1).Int("tool_calls", len(calls)).Msg("Agent answered")
			return finish(a.cfg, a.interactions, question, resp.Content, calls)
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			calls = append(calls, models.ToolCall{Function: call.Name, Arguments: call.Arguments})

			content, err := a.execute(ctx, call)
			if err != nil {
				return nil, err
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    content,
			})
		}
	}

	return nil, fmt.Errorf("agent %s did not produce an answer within %d steps", a.cfg.Name, a.cfg.MaxSteps)
}

func (a *ToolAgent) execute(ctx context.Context, call llm.ToolCall) (string, error) {
	if call.Name != search.ToolName {
		a.logger.Warn().Str("tool", call.Name).Msg("Model requested an unknown tool")
		return fmt.Sprintf(`{"error": "unknown tool %q"}`, call.Name), nil
	}

	query, ok := search.QueryArgument(call.Arguments)
	if !ok {
		return `{"error": "the query argument is required"}`, nil
	}
	return runSearch(ctx, a.tool, query)
}
