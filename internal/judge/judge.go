package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/config"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/metrics"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Input is one interaction to be judged.
type Input struct {
	Instructions string
	Question     string
	Answer       string
	ToolCalls    []models.ToolCall
}

type promptData struct {
	Instructions string
	Question     string
	Answer       string
	ToolCalls    string
	Criteria     []config.Criterion
}

// Judge scores an interaction against a fixed checklist using an LLM.
type Judge struct {
	settings       config.JudgeSettings
	promptTemplate *template.Template
	schema         *gojsonschema.Schema
	criteria       map[string]bool
	llmClient      llm.LLMClient
	logger         *zerolog.Logger
}

func New(settings config.JudgeSettings, llmClient llm.LLMClient, logger *zerolog.Logger) (*Judge, error) {
	if llmClient == nil {
		return nil, errors.New("judge requires an LLM client")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid judge settings: %w", err)
	}

	tmpl, err := template.New("judge").Option("missingkey=error").Parse(settings.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse judge prompt template: %w", err)
	}

	schema, err := CompileSchema(checklistSchema)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	criteria := make(map[string]bool, len(settings.Criteria))
	for _, c := range settings.Criteria {
		criteria[c.Name] = true
	}

	return &Judge{
		settings:       settings,
		promptTemplate: tmpl,
		schema:         schema,
		criteria:       criteria,
		llmClient:      llmClient,
		logger:         logger,
	}, nil
}

// Evaluate returns a checklist holding exactly the configured criteria, or an error.
func (j *Judge) Evaluate(ctx context.Context, input Input) (*models.EvaluationChecklist, error) {
	start := time.Now()

	prompt, err := j.buildPrompt(input)
	if err != nil {
		return nil, err
	}

	request := llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   j.settings.Model.MaxTokens,
		Temperature: j.settings.Model.Temperature,
	}

	var resp *llm.LLMResponse
	if j.settings.Model.Retry {
		resp, err = j.llmClient.InvokeModelWithRetry(ctx, request)
	} else {
		resp, err = j.llmClient.InvokeModel(ctx, request)
	}
	if err != nil {
		metrics.LLMCalls.WithLabelValues("judge", llm.Kind(err)).Inc()
		j.logger.Error().Err(err).Str("kind", llm.Kind(err)).Msg("Judge LLM call failed")
		return nil, fmt.Errorf("judge LLM call failed: %w", err)
	}
	metrics.LLMCalls.WithLabelValues("judge", "ok").Inc()

	checklist, err := j.parse(resp.Content)
	if err != nil {
		metrics.JudgeParseFailures.Inc()
		j.logger.Error().Err(err).Str("content", resp.Content).Msg("Failed to parse judge response")
		return nil, err
	}

	j.logger.Info().
		Int("checks", len(checklist.Checklist)).
		Dur("duration", time.Since(start)).
		Msg("Judge evaluation completed")

	return checklist, nil
}

func (j *Judge) buildPrompt(input Input) (string, error) {
	calls := input.ToolCalls
	if calls == nil {
		calls = []models.ToolCall{}
	}
	toolCalls, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode tool calls for judge prompt: %w", err)
	}

	var buf bytes.Buffer
	err = j.promptTemplate.Execute(&buf, promptData{
		Instructions: input.Instructions,
		Question:     input.Question,
		Answer:       input.Answer,
		ToolCalls:    string(toolCalls),
		Criteria:     j.settings.Criteria,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute judge prompt template: %w", err)
	}
	return buf.String(), nil
}

func (j *Judge) parse(content string) (*models.EvaluationChecklist, error) {
	raw := StripMarkdownCodeBlock(content)

	if err := ValidateDocument(j.schema, raw); err != nil {
		return nil, err
	}

	var decoded models.EvaluationChecklist
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, &ParseError{Reason: "failed to decode checklist", Raw: content, Err: err}
	}

	result := &models.EvaluationChecklist{Summary: decoded.Summary}
	seen := make(map[string]bool, len(j.criteria))
	for _, check := range decoded.Checklist {
		if !j.criteria[check.CheckName] {
			j.logger.Warn().Str("check_name", check.CheckName).Msg("Dropping unknown check from judge output")
			continue
		}
		if seen[check.CheckName] {
			j.logger.Warn().Str("check_name", check.CheckName).Msg("Dropping duplicate check from judge output")
			continue
		}
		seen[check.CheckName] = true
		result.Checklist = append(result.Checklist, check)
	}

	for _, name := range j.settings.CriterionNames() {
		if !seen[name] {
			return nil, &ParseError{Reason: fmt.Sprintf("missing check %q", name), Raw: content}
		}
	}

	return result, nil
}
