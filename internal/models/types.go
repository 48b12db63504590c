package models

import (
	"time"
)

type Verdict string

const (
	VerdictPass   Verdict = "pass"
	VerdictFail   Verdict = "fail"
	VerdictReview Verdict = "review"
)

// Chunk is a unit of indexed document text with its source metadata.
type Chunk struct {
	ID             string            `json:"id" yaml:"id"`
	Text           string            `json:"text" yaml:"text"`
	SourceFilename string            `json:"source_filename" yaml:"source_filename"`
	Metadata       map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type ResultSource string

const (
	SourceLexical  ResultSource = "lexical"
	SourceSemantic ResultSource = "semantic"
	SourceHybrid   ResultSource = "hybrid"
)

// SearchResult is one sub-index hit. Scores of different sources are not comparable.
type SearchResult struct {
	ChunkID string       `json:"chunk_id"`
	Score   float64      `json:"score"`
	Source  ResultSource `json:"source"`
}

// ScoredChunk is a hybrid search hit carrying the merged score.
type ScoredChunk struct {
	Chunk         Chunk          `json:"chunk"`
	Score         float64        `json:"score"`
	LexicalScore  float64        `json:"lexical_score"`
	SemanticScore float64        `json:"semantic_score"`
	Sources       []ResultSource `json:"sources"`
}

type ToolCall struct {
	Function  string         `json:"function"`
	Arguments map[string]any `json:"arguments"`
}

type InteractionSource string

const (
	InteractionSourceUser        InteractionSource = "user"
	InteractionSourceAIGenerated InteractionSource = "ai-generated"
	InteractionSourceEvaluation  InteractionSource = "evaluation"
)

// InteractionRecord is persisted once per answered question and never mutated.
type InteractionRecord struct {
	AgentName    string            `json:"agent_name"`
	SystemPrompt string            `json:"system_prompt"`
	ModelName    string            `json:"model_name"`
	Question     string            `json:"question"`
	ResponseText string            `json:"response_text"`
	ToolCalls    []ToolCall        `json:"tool_calls"`
	Source       InteractionSource `json:"source"`
	Timestamp    time.Time         `json:"timestamp"`
	// Metadata holds opaque debug values. Unencodable values are stringified.
	Metadata map[string]any `json:"metadata,omitempty"`
}

type EvaluationCheck struct {
	CheckName     string `json:"check_name"`
	Justification string `json:"justification"`
	CheckPass     bool   `json:"check_pass"`
}

type EvaluationChecklist struct {
	Checklist []EvaluationCheck `json:"checklist"`
	Summary   string            `json:"summary"`
}

type QuestionState string

const (
	StatePending    QuestionState = "PENDING"
	StateAsking     QuestionState = "ASKING"
	StateAsked      QuestionState = "ASKED"
	StateEvaluating QuestionState = "EVALUATING"
	StateEvaluated  QuestionState = "EVALUATED"
	StateFailed     QuestionState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s QuestionState) Terminal() bool {
	return s == StateEvaluated || s == StateFailed
}

// EvaluationRow is the flattened join of one interaction and its checklist.
type EvaluationRow struct {
	Index         int             `json:"index"`
	File          string          `json:"file"`
	Question      string          `json:"question"`
	Response      string          `json:"response"`
	ToolCallsMade int             `json:"tool_calls_made"`
	Checks        map[string]bool `json:"checks,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	State         QuestionState   `json:"state"`
	Error         string          `json:"error,omitempty"`
}
