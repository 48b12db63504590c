package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/metrics"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
)

const (
	DefaultName      = "gitsensei_agent"
	DefaultRepoOwner = "DataTalksClub"
	DefaultRepoName  = "faq"
	defaultMaxSteps  = 5
)

const systemPromptTemplate = `You are GitSensei, a helpful AI assistant that answers questions about GitHub repositories and documentation.

Use the search tool to find relevant information from the repository materials before answering questions.

If you can find specific information through search, use it to provide accurate answers.

Always include references by citing the filename of the source material you used.
Replace it with the full path to the GitHub repository:
"https://github.com/{{.RepoOwner}}/{{.RepoName}}/blob/main/"
Format: [LINK TITLE](FULL_GITHUB_LINK)

If the search doesn't return relevant results, let the user know and provide general guidance about GitHub repositories and development practices.`

var systemPrompt = template.Must(template.New("system").Parse(systemPromptTemplate))

// SystemPrompt renders the GitSensei instructions for one repository.
func SystemPrompt(repoOwner, repoName string) (string, error) {
	if repoOwner == "" {
		repoOwner = DefaultRepoOwner
	}
	if repoName == "" {
		repoName = DefaultRepoName
	}

	var buf strings.Builder
	err := systemPrompt.Execute(&buf, struct{ RepoOwner, RepoName string }{repoOwner, repoName})
	if err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return buf.String(), nil
}

// Answer is the result of one Ask call.
type Answer struct {
	ResponseText string
	ToolCalls    []models.ToolCall
	Record       models.InteractionRecord
	// LogPath is empty when no interaction logger is configured.
	LogPath string
}

type Asker interface {
	Ask(ctx context.Context, question string) (*Answer, error)
}

type SearchTool interface {
	Search(ctx context.Context, query string) ([]search.Hit, error)
	Spec() llm.ToolSpec
}

type InteractionLogger interface {
	Log(record models.InteractionRecord) (string, error)
}

// Config describes the agent identity written to every interaction record.
type Config struct {
	Name         string
	ModelName    string
	SystemPrompt string
	Source       models.InteractionSource
	MaxSteps     int
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Source == "" {
		c.Source = models.InteractionSourceUser
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	return c
}

// finish builds the interaction record and persists it when a logger is set.
func finish(cfg Config, interactions InteractionLogger, question, response string, calls []models.ToolCall) (*Answer, error) {
	if calls == nil {
		calls = []models.ToolCall{}
	}

	record := models.InteractionRecord{
		AgentName:    cfg.Name,
		SystemPrompt: cfg.SystemPrompt,
		ModelName:    cfg.ModelName,
		Question:     question,
		ResponseText: response,
		ToolCalls:    calls,
		Source:       cfg.Source,
		Timestamp:    time.Now().UTC(),
	}

	answer := &Answer{ResponseText: response, ToolCalls: calls, Record: record}
	if interactions == nil {
		return answer, nil
	}

	path, err := interactions.Log(record)
	if err != nil {
		return nil, fmt.Errorf("failed to log interaction: %w", err)
	}
	answer.LogPath = path
	return answer, nil
}

func runSearch(ctx context.Context, tool SearchTool, query string) (string, error) {
	hits, err := tool.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search tool failed for %q: %w", query, err)
	}

	body, err := json.Marshal(hits)
	if err != nil {
		return "", fmt.Errorf("failed to encode search results: %w", err)
	}
	return string(body), nil
}

func invoke(ctx context.Context, client llm.LLMClient, request llm.LLMRequest) (*llm.LLMResponse, error) {
	resp, err := client.InvokeModelWithRetry(ctx, request)
	outcome := "ok"
	if err != nil {
		outcome = llm.Kind(err)
	}
	metrics.LLMCalls.WithLabelValues("agent", outcome).Inc()
	return resp, err
}
