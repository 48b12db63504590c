package evaluation

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/interactionlog"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"golang.org/x/sync/errgroup"
)

// LoggedInteraction is a previously persisted record and where it came from.
type LoggedInteraction struct {
	Path   string
	Record models.InteractionRecord
}

// LoadLogged reads every interaction record in dir, oldest file name first.
func LoadLogged(dir string) ([]LoggedInteraction, error) {
	paths, err := interactionlog.List(dir)
	if err != nil {
		return nil, err
	}

	logged := make([]LoggedInteraction, 0, len(paths))
	for _, path := range paths {
		record, err := interactionlog.Read(path)
		if err != nil {
			return nil, fmt.Errorf("Unable to load interaction %s. Error: %w", path, err)
		}
		logged = append(logged, LoggedInteraction{Path: path, Record: record})
	}
	return logged, nil
}

// Replay judges interactions that were already answered. Each question starts
// in ASKED, so the agent is never called.
func (r *Runner) Replay(ctx context.Context, interactions []LoggedInteraction) []models.EvaluationRow {
	rows := make([]models.EvaluationRow, len(interactions))
	states := newTracker(len(interactions), r.observer)

	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, logged := range interactions {
		g.Go(func() error {
			defer r.recoverRow(states, rows, models.EvaluationRow{Index: i, Question: logged.Record.Question})
			rows[i] = r.replayOne(ctx, states, i, logged)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info().Int("interactions", len(rows)).Msg("Replay finished")
	return rows
}

func (r *Runner) replayOne(ctx context.Context, states *tracker, index int, logged LoggedInteraction) models.EvaluationRow {
	record := logged.Record
	row := models.EvaluationRow{Index: index, Question: record.Question}
	if logged.Path != "" {
		row.File = filepath.Base(logged.Path)
	}

	if err := states.advance(index, models.StateAsked); err != nil {
		return r.fail(states, row, err)
	}

	instructions := r.instructions
	if instructions == "" {
		instructions = record.SystemPrompt
	}

	return r.judge(ctx, states, row, judge.Input{
		Instructions: instructions,
		Question:     record.Question,
		Answer:       record.ResponseText,
		ToolCalls:    record.ToolCalls,
	})
}
