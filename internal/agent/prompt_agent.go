package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
)

const functionCallInstructions = `

You can search the repository materials. To run a search, reply with exactly one line and nothing else:
FUNCTION_CALL: search(query="your search query")
You will then receive the search results and must write the final answer.
If you can answer without searching, reply with the answer directly.`

var functionCallPattern = regexp.MustCompile(`FUNCTION_CALL:\s*(search|hybrid_search)\(\s*query\s*=\s*"((?:[^"\\]|\\.)*)"\s*\)`)

// ParseFunctionCall extracts the tool name and query from a text tool call.
func ParseFunctionCall(text string) (name string, query string, ok bool) {
	m := functionCallPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}

	query, err := strconv.Unquote(`"` + m[2] + `"`)
	if err != nil {
		query = m[2]
	}
	if strings.TrimSpace(query) == "" {
		return "", "", false
	}
	return m[1], query, true
}

// PromptAgent drives search through a FUNCTION_CALL text protocol, for
// chat backends without native tool calling.
type PromptAgent struct {
	client       llm.LLMClient
	tool         SearchTool
	cfg          Config
	interactions InteractionLogger
	logger       *zerolog.Logger
}

func NewPromptAgent(client llm.LLMClient, tool SearchTool, cfg Config, interactions InteractionLogger, logger *zerolog.Logger) *PromptAgent {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &PromptAgent{
		client:       client,
		tool:         tool,
		cfg:          cfg.withDefaults(),
		interactions: interactions,
		logger:       logger,
	}
}

func (a *PromptAgent) Ask(ctx context.Context, question string) (*Answer, error) {
	system := a.cfg.SystemPrompt + functionCallInstructions
	messages := []llm.Message{{Role: llm.RoleUser, Content: question}}

	first, err := invoke(ctx, a.client, llm.LLMRequest{System: system, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("agent %s failed to answer: %w", a.cfg.Name, err)
	}

	name, query, ok := ParseFunctionCall(first.Content)
	if !ok {
		return finish(a.cfg, a.interactions, question, first.Content, nil)
	}

	a.logger.Debug().Str("agent", a.cfg.Name).Str("function", name).Str("query", query).Msg("Text function call detected")
	calls := []models.ToolCall{{Function: name, Arguments: map[string]any{"query": query}}}

	results, err := runSearch(ctx, a.tool, query)
	if err != nil {
		return nil, err
	}

	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: first.Content},
		llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Search results for %q:\n%s\n\nUsing these results, answer the original question: %s", query, results, question)},
	)

	final, err := invoke(ctx, a.client, llm.LLMRequest{System: a.cfg.SystemPrompt, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("agent %s failed to answer after search: %w", a.cfg.Name, err)
	}

	return finish(a.cfg, a.interactions, question, final.Content, calls)
}
