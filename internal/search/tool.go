package search

import (
	"context"
	"strings"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

const (
	ToolName          = "search"
	DefaultNumResults = 5
)

// Hit is what the agent sees for one search result.
type Hit struct {
	Text           string `json:"text"`
	SourceFilename string `json:"source_filename"`
}

type Searcher interface {
	Search(ctx context.Context, query string, numResults int, boost map[string]float64) ([]models.ScoredChunk, error)
}

// Tool exposes a Searcher as the agent-facing search(query) function.
type Tool struct {
	searcher   Searcher
	numResults int
	boost      map[string]float64
}

func NewTool(searcher Searcher, numResults int, boost map[string]float64) *Tool {
	if numResults <= 0 {
		numResults = DefaultNumResults
	}
	return &Tool{searcher: searcher, numResults: numResults, boost: boost}
}

func (t *Tool) Search(ctx context.Context, query string) ([]Hit, error) {
	results, err := t.searcher.Search(ctx, query, t.numResults, t.boost)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{Text: r.Chunk.Text, SourceFilename: r.Chunk.SourceFilename})
	}
	return hits, nil
}

func (t *Tool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ToolName,
		Description: "Search the FAQ database for entries matching the given query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query text to look up in the course FAQ.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// QueryArgument extracts the query string from tool call arguments.
func QueryArgument(args map[string]any) (string, bool) {
	q, ok := args["query"].(string)
	if !ok || strings.TrimSpace(q) == "" {
		return "", false
	}
	return q, true
}
