package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
)

var errEmptyInput = errors.New("input is required")

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Hit, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, input judge.Input) (*models.EvaluationChecklist, error)
}

// SearchInput is the MCP tool input schema for the FAQ search.
type SearchInput struct {
	Query string `json:"query" jsonschema:"search query text to look up in the course FAQ"`
}

type SearchOutput struct {
	Results []search.Hit `json:"results"`
}

// AskInput is the MCP tool input schema for the agent.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the FAQ"`
}

type AskOutput struct {
	Response  string            `json:"response"`
	ToolCalls []models.ToolCall `json:"tool_calls"`
	LogFile   string            `json:"log_file,omitempty"`
}

// EvaluateInput matches the HTTP API field names.
type EvaluateInput struct {
	Question     string            `json:"question" jsonschema:"the user question"`
	Answer       string            `json:"answer" jsonschema:"agent response to evaluate"`
	Instructions string            `json:"instructions,omitempty" jsonschema:"optional agent instructions to judge against"`
	ToolCalls    []models.ToolCall `json:"tool_calls,omitempty" jsonschema:"optional tool calls the agent made"`
}

// NewSearchHandler returns a tool handler for the hybrid search tool.
// Pass the returned function to mcp.AddTool.
func NewSearchHandler(searcher Searcher) func(context.Context, *mcp.CallToolRequest, SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return nil, SearchOutput{}, fmt.Errorf("query: %w", errEmptyInput)
		}

		hits, err := searcher.Search(ctx, query)
		if err != nil {
			return nil, SearchOutput{}, withGuidance(err)
		}
		if hits == nil {
			hits = []search.Hit{}
		}
		return nil, SearchOutput{Results: hits}, nil
	}
}

func NewAskHandler(asker agent.Asker) func(context.Context, *mcp.CallToolRequest, AskInput) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
		question := strings.TrimSpace(input.Question)
		if question == "" {
			return nil, AskOutput{}, fmt.Errorf("question: %w", errEmptyInput)
		}

		answer, err := asker.Ask(ctx, question)
		if err != nil {
			return nil, AskOutput{}, withGuidance(err)
		}

		out := AskOutput{Response: answer.ResponseText, ToolCalls: answer.ToolCalls}
		if out.ToolCalls == nil {
			out.ToolCalls = []models.ToolCall{}
		}
		if answer.LogPath != "" {
			out.LogFile = filepath.Base(answer.LogPath)
		}
		return nil, out, nil
	}
}

// NewEvaluateHandler judges one answer. instructions is used when the input carries none.
func NewEvaluateHandler(evaluator Evaluator, instructions string) func(context.Context, *mcp.CallToolRequest, EvaluateInput) (*mcp.CallToolResult, models.EvaluationChecklist, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EvaluateInput) (*mcp.CallToolResult, models.EvaluationChecklist, error) {
		if strings.TrimSpace(input.Question) == "" || strings.TrimSpace(input.Answer) == "" {
			return nil, models.EvaluationChecklist{}, fmt.Errorf("question and answer: %w", errEmptyInput)
		}

		if input.Instructions == "" {
			input.Instructions = instructions
		}

		checklist, err := evaluator.Evaluate(ctx, judge.Input{
			Instructions: input.Instructions,
			Question:     input.Question,
			Answer:       input.Answer,
			ToolCalls:    input.ToolCalls,
		})
		if err != nil {
			return nil, models.EvaluationChecklist{}, withGuidance(err)
		}
		return nil, *checklist, nil
	}
}

// withGuidance appends actionable text for classified LLM failures.
func withGuidance(err error) error {
	if guidance := llm.Guidance(err); guidance != "" {
		return fmt.Errorf("%w (%s)", err, guidance)
	}
	return err
}
