package config

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

const defaultJudgeConfigPath = "configs/judge.yaml"

// JudgeConfig is the root of configs/judge.yaml.
type JudgeConfig struct {
	Judge JudgeSettings `yaml:"judge"`
}

type JudgeSettings struct {
	// Prompt is a text/template rendered with the judge input and the criteria.
	Prompt   string      `yaml:"prompt"`
	Criteria []Criterion `yaml:"criteria"`
	Model    ModelParams `yaml:"model"`
}

type Criterion struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type ModelParams struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Retry       bool    `yaml:"retry"`
}

func DefaultCriteria() []Criterion {
	return []Criterion{
		{Name: "instructions_follow", Description: "The agent followed the user's instructions"},
		{Name: "instructions_avoid", Description: "The agent avoided doing things it was told not to do"},
		{Name: "answer_relevant", Description: "The response directly addresses the user's question"},
		{Name: "answer_clear", Description: "The answer is clear and correct"},
		{Name: "answer_citations", Description: "The response includes proper citations or sources when required"},
		{Name: "completeness", Description: "The response is complete and covers all key aspects of the request"},
		{Name: "tool_call_search", Description: "Is the search tool invoked?"},
	}
}

const DefaultJudgePrompt = `Use this checklist to evaluate the quality of an AI agent's answer (<ANSWER>) to a user question (<QUESTION>).
We also include the entire log (<LOG>) for analysis.

For each item, check if the condition is met.

Checklist:
{{range .Criteria}}
- {{.Name}}: {{.Description}}
{{- end}}

Output true/false for each check and provide a short explanation for your judgment.

<INSTRUCTIONS>{{.Instructions}}</INSTRUCTIONS>
<QUESTION>{{.Question}}</QUESTION>
<ANSWER>{{.Answer}}</ANSWER>
<LOG>{{.ToolCalls}}</LOG>

Respond with JSON only, no prose, in exactly this shape:
{"checklist": [{"check_name": "<name>", "justification": "<short reason>", "check_pass": true}], "summary": "<one sentence>"}
Include one checklist entry for every check listed above.`

func LoadJudgeConfig() (*JudgeConfig, error) {
	path := os.Getenv("JUDGE_CONFIG_PATH")
	if path == "" {
		path = defaultJudgeConfigPath
	}
	return LoadJudgeConfigFile(path)
}

// LoadJudgeConfigFile reads path. A missing file yields the built-in rubric.
func LoadJudgeConfigFile(path string) (*JudgeConfig, error) {
	var cfg JudgeConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg.Judge.Model.Retry = true
	case err != nil:
		return nil, fmt.Errorf("failed to read judge config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse judge config %s: %w", path, err)
		}
	}

	applyJudgeDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyJudgeDefaults(cfg *JudgeConfig) {
	if cfg.Judge.Prompt == "" {
		cfg.Judge.Prompt = DefaultJudgePrompt
	}
	if len(cfg.Judge.Criteria) == 0 {
		cfg.Judge.Criteria = DefaultCriteria()
	}
	if cfg.Judge.Model.MaxTokens == 0 {
		cfg.Judge.Model.MaxTokens = 1024
	}
}

func (j *JudgeConfig) Validate() error {
	return j.Judge.Validate()
}

func (s *JudgeSettings) Validate() error {
	if s.Prompt == "" {
		return fmt.Errorf("judge prompt is required")
	}
	if len(s.Criteria) == 0 {
		return fmt.Errorf("at least one judge criterion is required")
	}

	seen := make(map[string]bool, len(s.Criteria))
	for i, c := range s.Criteria {
		if c.Name == "" {
			return fmt.Errorf("criterion %d: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("criterion %q is defined more than once", c.Name)
		}
		seen[c.Name] = true
	}

	if s.Model.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.Model.MaxTokens)
	}
	if s.Model.Temperature < 0 || s.Model.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %v", s.Model.Temperature)
	}
	return nil
}

// CriterionNames returns the configured check names in order.
func (s *JudgeSettings) CriterionNames() []string {
	names := make([]string, 0, len(s.Criteria))
	for _, c := range s.Criteria {
		names = append(names, c.Name)
	}
	return names
}
