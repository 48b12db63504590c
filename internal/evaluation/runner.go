package evaluation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/aggregator"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/metrics"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . Asker,Evaluator

const maxResponseRunes = 500

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (*agent.Answer, error)
}

// Evaluator scores one interaction.
type Evaluator interface {
	Evaluate(ctx context.Context, input judge.Input) (*models.EvaluationChecklist, error)
}

type Runner struct {
	asker        Asker
	evaluator    Evaluator
	workers      int
	instructions string
	observer     Observer
	aggregator   *aggregator.Aggregator
	logger       *zerolog.Logger
}

type Option func(*Runner)

// WithWorkers bounds how many questions are processed at once.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithInstructions sets the agent instructions passed to the judge.
func WithInstructions(instructions string) Option {
	return func(r *Runner) { r.instructions = instructions }
}

func WithObserver(observer Observer) Option {
	return func(r *Runner) { r.observer = observer }
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(asker Asker, evaluator Evaluator, opts ...Option) *Runner {
	nop := zerolog.Nop()
	r := &Runner{
		asker:     asker,
		evaluator: evaluator,
		workers:   1,
		logger:    &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.aggregator = aggregator.NewAggregator(r.logger)
	return r
}

// Run asks and judges the first maxQuestions questions (all when maxQuestions <= 0).
// Rows come back in input order. A failing question yields a FAILED row.
func (r *Runner) Run(ctx context.Context, questions []string, maxQuestions int) []models.EvaluationRow {
	if maxQuestions > 0 && maxQuestions < len(questions) {
		questions = questions[:maxQuestions]
	}

	rows := make([]models.EvaluationRow, len(questions))
	states := newTracker(len(questions), r.observer)

	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, question := range questions {
		g.Go(func() error {
			defer r.recoverRow(states, rows, models.EvaluationRow{Index: i, Question: question})
			rows[i] = r.runQuestion(ctx, states, i, question)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info().Int("questions", len(rows)).Int("workers", r.workers).Msg("Evaluation run finished")
	return rows
}

func (r *Runner) runQuestion(ctx context.Context, states *tracker, index int, question string) models.EvaluationRow {
	row := models.EvaluationRow{Index: index, Question: question}
	log := r.logger.With().Int("index", index).Logger()

	log.Info().Str("question", question).Msg("Evaluating question")

	if err := ctx.Err(); err != nil {
		return r.fail(states, row, fmt.Errorf("evaluation canceled: %w", err))
	}
	if err := states.advance(index, models.StateAsking); err != nil {
		return r.fail(states, row, err)
	}

	answer, err := r.asker.Ask(ctx, question)
	if err != nil {
		return r.fail(states, row, fmt.Errorf("agent failed: %w", err))
	}
	if answer == nil {
		return r.fail(states, row, errors.New("agent failed: no answer returned"))
	}
	if err := states.advance(index, models.StateAsked); err != nil {
		return r.fail(states, row, err)
	}

	if answer.LogPath != "" {
		row.File = filepath.Base(answer.LogPath)
	}

	return r.judge(ctx, states, row, judge.Input{
		Instructions: r.instructions,
		Question:     question,
		Answer:       answer.ResponseText,
		ToolCalls:    answer.ToolCalls,
	})
}

// judge moves an ASKED question through evaluation.
func (r *Runner) judge(ctx context.Context, states *tracker, row models.EvaluationRow, input judge.Input) models.EvaluationRow {
	row.Response = truncate(input.Answer, maxResponseRunes)
	row.ToolCallsMade = len(input.ToolCalls)

	if err := ctx.Err(); err != nil {
		return r.fail(states, row, fmt.Errorf("evaluation canceled: %w", err))
	}
	if err := states.advance(row.Index, models.StateEvaluating); err != nil {
		return r.fail(states, row, err)
	}

	checklist, err := r.evaluator.Evaluate(ctx, input)
	if err != nil {
		return r.fail(states, row, fmt.Errorf("judge failed: %w", err))
	}
	if checklist == nil {
		return r.fail(states, row, errors.New("judge failed: no checklist returned"))
	}

	row.Checks = make(map[string]bool, len(checklist.Checklist))
	for _, check := range checklist.Checklist {
		row.Checks[check.CheckName] = check.CheckPass
	}
	row.Summary = checklist.Summary

	if err := states.advance(row.Index, models.StateEvaluated); err != nil {
		return r.fail(states, row, err)
	}
	row.State = models.StateEvaluated
	metrics.EvaluationQuestions.WithLabelValues(string(row.State)).Inc()
	return row
}

// recoverRow turns a panic in a question worker into a FAILED row.
func (r *Runner) recoverRow(states *tracker, rows []models.EvaluationRow, row models.EvaluationRow) {
	if p := recover(); p != nil {
		rows[row.Index] = r.fail(states, row, fmt.Errorf("evaluation panicked: %v", p))
	}
}

func (r *Runner) fail(states *tracker, row models.EvaluationRow, err error) models.EvaluationRow {
	if !states.state(row.Index).Terminal() {
		_ = states.advance(row.Index, models.StateFailed)
	}
	row.State = models.StateFailed
	row.Error = err.Error()
	metrics.EvaluationQuestions.WithLabelValues(string(row.State)).Inc()
	r.logger.Warn().Err(err).Int("index", row.Index).Str("question", row.Question).Msg("Question failed")
	return row
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
