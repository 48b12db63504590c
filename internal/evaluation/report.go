package evaluation

import (
	"context"
	"fmt"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/aggregator"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

// QuestionSource produces evaluation questions from corpus chunks.
type QuestionSource interface {
	Generate(ctx context.Context, chunks []models.Chunk, n int) ([]string, error)
}

// Report is the outcome of a generate, ask, judge and aggregate cycle.
type Report struct {
	Questions []string               `json:"questions"`
	Rows      []models.EvaluationRow `json:"rows"`
	Analysis  aggregator.Analysis    `json:"analysis"`
}

// RunFull generates numQuestions questions, evaluates up to maxQuestions of them
// and aggregates the rows.
func (r *Runner) RunFull(ctx context.Context, source QuestionSource, chunks []models.Chunk, numQuestions, maxQuestions int) (*Report, error) {
	questions, err := source.Generate(ctx, chunks, numQuestions)
	if err != nil {
		return nil, fmt.Errorf("Unable to generate questions. Error: %w", err)
	}

	rows := r.Run(ctx, questions, maxQuestions)
	return &Report{
		Questions: questions,
		Rows:      rows,
		Analysis:  r.Analyze(rows),
	}, nil
}

// Analyze aggregates rows produced by Run or Replay.
func (r *Runner) Analyze(rows []models.EvaluationRow) aggregator.Analysis {
	return r.aggregator.Analyze(rows)
}
