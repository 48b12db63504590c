package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/evaluation/mocks"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func passingChecklist() *models.EvaluationChecklist {
	return &models.EvaluationChecklist{
		Checklist: []models.EvaluationCheck{
			{CheckName: "answer_relevant", Justification: "on topic", CheckPass: true},
			{CheckName: "tool_call_search", Justification: "searched", CheckPass: false},
		},
		Summary: "mostly fine",
	}
}

func TestRunner_Run_FailingQuestionIsIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	mockAsker.EXPECT().Ask(gomock.Any(), "q1").Return(&agent.Answer{
		ResponseText: "a1",
		ToolCalls:    []models.ToolCall{{Function: "search", Arguments: map[string]any{"query": "q1"}}},
		LogPath:      "/tmp/logs/gitsensei_agent_20250101120000_abc.json",
	}, nil)
	mockAsker.EXPECT().Ask(gomock.Any(), "q2").Return(nil, errors.New("model exploded"))
	mockAsker.EXPECT().Ask(gomock.Any(), "q3").Return(&agent.Answer{ResponseText: "a3"}, nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(passingChecklist(), nil).Times(2)

	runner := NewRunner(mockAsker, mockEvaluator, WithWorkers(2), WithInstructions("be helpful"), WithLogger(newTestLogger()))
	rows := runner.Run(context.Background(), []string{"q1", "q2", "q3"}, 0)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, want := range []string{"q1", "q2", "q3"} {
		if rows[i].Question != want || rows[i].Index != i {
			t.Errorf("row %d out of order: %+v", i, rows[i])
		}
	}

	if rows[0].State != models.StateEvaluated || rows[2].State != models.StateEvaluated {
		t.Errorf("expected rows 1 and 3 evaluated, got %s and %s", rows[0].State, rows[2].State)
	}
	if rows[1].State != models.StateFailed || !strings.Contains(rows[1].Error, "model exploded") {
		t.Errorf("expected row 2 failed with agent error, got %+v", rows[1])
	}

	if rows[0].File != "gitsensei_agent_20250101120000_abc.json" {
		t.Errorf("expected log file base name, got %q", rows[0].File)
	}
	if rows[0].ToolCallsMade != 1 || rows[2].ToolCallsMade != 0 {
		t.Errorf("unexpected tool call counts %d, %d", rows[0].ToolCallsMade, rows[2].ToolCallsMade)
	}
	if !rows[0].Checks["answer_relevant"] || rows[0].Checks["tool_call_search"] {
		t.Errorf("unexpected checks %v", rows[0].Checks)
	}
	if rows[0].Summary != "mostly fine" {
		t.Errorf("unexpected summary %q", rows[0].Summary)
	}
}

func TestRunner_Run_MaxQuestions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	mockAsker.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(&agent.Answer{ResponseText: "ok"}, nil).Times(2)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(passingChecklist(), nil).Times(2)

	runner := NewRunner(mockAsker, mockEvaluator, WithLogger(newTestLogger()))
	rows := runner.Run(context.Background(), []string{"a", "b", "c", "d"}, 2)

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestRunner_Run_PassesInteractionToJudge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	calls := []models.ToolCall{{Function: "search", Arguments: map[string]any{"query": "kafka"}}}
	mockAsker.EXPECT().Ask(gomock.Any(), "kafka?").Return(&agent.Answer{ResponseText: "install it", ToolCalls: calls}, nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), judge.Input{
		Instructions: "instructions",
		Question:     "kafka?",
		Answer:       "install it",
		ToolCalls:    calls,
	}).Return(passingChecklist(), nil)

	runner := NewRunner(mockAsker, mockEvaluator, WithInstructions("instructions"), WithLogger(newTestLogger()))
	rows := runner.Run(context.Background(), []string{"kafka?"}, 0)

	if rows[0].State != models.StateEvaluated {
		t.Errorf("expected evaluated row, got %+v", rows[0])
	}
}

func TestRunner_Run_TruncatesResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	long := strings.Repeat("é", 600)
	mockAsker.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(&agent.Answer{ResponseText: long}, nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, input judge.Input) (*models.EvaluationChecklist, error) {
			if input.Answer != long {
				t.Error("judge must see the full answer")
			}
			return passingChecklist(), nil
		})

	runner := NewRunner(mockAsker, mockEvaluator, WithLogger(newTestLogger()))
	rows := runner.Run(context.Background(), []string{"q"}, 0)

	if got := len([]rune(rows[0].Response)); got != maxResponseRunes {
		t.Errorf("expected %d runes, got %d", maxResponseRunes, got)
	}
}

func TestRunner_Run_JudgeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	mockAsker.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(&agent.Answer{ResponseText: "ok"}, nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(nil, &judge.ParseError{Reason: "missing check"})

	runner := NewRunner(mockAsker, mockEvaluator, WithLogger(newTestLogger()))
	rows := runner.Run(context.Background(), []string{"q"}, 0)

	if rows[0].State != models.StateFailed || !strings.Contains(rows[0].Error, "judge failed") {
		t.Errorf("expected judge failure, got %+v", rows[0])
	}
	if rows[0].Response != "ok" {
		t.Errorf("expected response kept on failed row, got %q", rows[0].Response)
	}
}

func TestRunner_Run_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(mockAsker, mockEvaluator, WithLogger(newTestLogger()))
	rows := runner.Run(ctx, []string{"a", "b"}, 0)

	for _, row := range rows {
		if row.State != models.StateFailed {
			t.Errorf("expected failed row on canceled context, got %+v", row)
		}
	}
}

func TestRunner_Run_ObserverSeesOrderedTransitions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	mockAsker.EXPECT().Ask(gomock.Any(), "good").Return(&agent.Answer{ResponseText: "ok"}, nil)
	mockAsker.EXPECT().Ask(gomock.Any(), "bad").Return(nil, errors.New("boom"))
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(passingChecklist(), nil)

	var mu sync.Mutex
	seen := map[int][]models.QuestionState{}
	observer := func(index int, _, to models.QuestionState) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = append(seen[index], to)
	}

	runner := NewRunner(mockAsker, mockEvaluator, WithWorkers(2), WithObserver(observer), WithLogger(newTestLogger()))
	runner.Run(context.Background(), []string{"good", "bad"}, 0)

	want := []models.QuestionState{models.StateAsking, models.StateAsked, models.StateEvaluating, models.StateEvaluated}
	if strings.Join(toStrings(seen[0]), ",") != strings.Join(toStrings(want), ",") {
		t.Errorf("unexpected transitions for good question: %v", seen[0])
	}
	failed := []models.QuestionState{models.StateAsking, models.StateFailed}
	if strings.Join(toStrings(seen[1]), ",") != strings.Join(toStrings(failed), ",") {
		t.Errorf("unexpected transitions for bad question: %v", seen[1])
	}
}

func TestRunner_Replay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	logged := []LoggedInteraction{
		{
			Path: "/logs/one.json",
			Record: models.InteractionRecord{
				SystemPrompt: "logged prompt",
				Question:     "q1",
				ResponseText: "a1",
				ToolCalls:    []models.ToolCall{{Function: "search"}},
			},
		},
		{Path: "/logs/two.json", Record: models.InteractionRecord{Question: "q2", ResponseText: "a2"}},
	}

	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, input judge.Input) (*models.EvaluationChecklist, error) {
			if input.Question == "q2" {
				return nil, errors.New("judge down")
			}
			if input.Instructions != "logged prompt" {
				t.Errorf("expected logged system prompt as instructions, got %q", input.Instructions)
			}
			return passingChecklist(), nil
		}).Times(2)

	runner := NewRunner(mockAsker, mockEvaluator, WithWorkers(2), WithLogger(newTestLogger()))
	rows := runner.Replay(context.Background(), logged)

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].State != models.StateEvaluated || rows[0].File != "one.json" || rows[0].ToolCallsMade != 1 {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].State != models.StateFailed {
		t.Errorf("expected second row failed, got %+v", rows[1])
	}
}

func TestTracker_RejectsIllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []models.QuestionState
		ok   bool
	}{
		{name: "full run", path: []models.QuestionState{models.StateAsking, models.StateAsked, models.StateEvaluating, models.StateEvaluated}, ok: true},
		{name: "replay", path: []models.QuestionState{models.StateAsked, models.StateEvaluating, models.StateEvaluated}, ok: true},
		{name: "skip asking result", path: []models.QuestionState{models.StateAsking, models.StateEvaluating}, ok: false},
		{name: "leave terminal", path: []models.QuestionState{models.StateFailed, models.StateAsking}, ok: false},
		{name: "evaluated twice", path: []models.QuestionState{models.StateAsked, models.StateEvaluating, models.StateEvaluated, models.StateEvaluated}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker(1, nil)
			var err error
			for _, to := range tt.path {
				if err = tr.advance(0, to); err != nil {
					break
				}
			}
			if (err == nil) != tt.ok {
				t.Errorf("expected ok=%v, got err=%v", tt.ok, err)
			}
		})
	}
}

func toStrings(states []models.QuestionState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func TestRunner_Run_NilResultsFailTheRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	mockAsker.EXPECT().Ask(gomock.Any(), "q1").Return(&agent.Answer{ResponseText: "a1"}, nil)
	mockAsker.EXPECT().Ask(gomock.Any(), "q2").Return(nil, nil)
	mockAsker.EXPECT().Ask(gomock.Any(), "q3").Return(&agent.Answer{ResponseText: "a3"}, nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), judgeInputFor("a1")).Return(passingChecklist(), nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), judgeInputFor("a3")).Return(nil, nil)

	runner := NewRunner(mockAsker, mockEvaluator, WithWorkers(3), WithLogger(newTestLogger()))
	rows := runner.Run(context.Background(), []string{"q1", "q2", "q3"}, 0)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].State != models.StateEvaluated {
		t.Errorf("expected row 1 evaluated, got %+v", rows[0])
	}
	if rows[1].State != models.StateFailed || !strings.Contains(rows[1].Error, "no answer") {
		t.Errorf("expected row 2 failed for a missing answer, got %+v", rows[1])
	}
	if rows[2].State != models.StateFailed || !strings.Contains(rows[2].Error, "no checklist") {
		t.Errorf("expected row 3 failed for a missing checklist, got %+v", rows[2])
	}
}

func TestRunner_Run_PanicsFailTheRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	mockAsker.EXPECT().Ask(gomock.Any(), "q1").Return(&agent.Answer{ResponseText: "a1"}, nil)
	mockAsker.EXPECT().Ask(gomock.Any(), "q2").DoAndReturn(func(context.Context, string) (*agent.Answer, error) {
		panic("agent blew up")
	})
	mockAsker.EXPECT().Ask(gomock.Any(), "q3").Return(&agent.Answer{ResponseText: "a3"}, nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), judgeInputFor("a1")).Return(passingChecklist(), nil)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), judgeInputFor("a3")).DoAndReturn(func(context.Context, judge.Input) (*models.EvaluationChecklist, error) {
		panic("judge blew up")
	})

	var mu sync.Mutex
	final := map[int]models.QuestionState{}
	observer := func(index int, _, to models.QuestionState) {
		mu.Lock()
		defer mu.Unlock()
		final[index] = to
	}

	runner := NewRunner(mockAsker, mockEvaluator, WithWorkers(2), WithObserver(observer), WithLogger(newTestLogger()))
	rows := runner.Run(context.Background(), []string{"q1", "q2", "q3"}, 0)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].State != models.StateEvaluated {
		t.Errorf("expected row 1 evaluated, got %+v", rows[0])
	}
	for _, i := range []int{1, 2} {
		if rows[i].State != models.StateFailed || !strings.Contains(rows[i].Error, "blew up") {
			t.Errorf("expected row %d failed with the panic value, got %+v", i+1, rows[i])
		}
		if rows[i].Question == "" || rows[i].Index != i {
			t.Errorf("expected row %d to keep its identity, got %+v", i+1, rows[i])
		}
		if final[i] != models.StateFailed {
			t.Errorf("expected tracker to end row %d in FAILED, got %s", i+1, final[i])
		}
	}
}

func TestRunner_Replay_PanicFailsTheRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEvaluator := mocks.NewMockEvaluator(ctrl)
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, judge.Input) (*models.EvaluationChecklist, error) {
		panic("judge blew up")
	})

	runner := NewRunner(mocks.NewMockAsker(ctrl), mockEvaluator, WithLogger(newTestLogger()))
	rows := runner.Replay(context.Background(), []LoggedInteraction{{
		Path:   "/logs/a.json",
		Record: models.InteractionRecord{Question: "q", ResponseText: "a"},
	}})

	if rows[0].State != models.StateFailed || rows[0].Question != "q" {
		t.Errorf("expected replayed row failed, got %+v", rows[0])
	}
}

// judgeInputFor matches the judge input carrying answer.
func judgeInputFor(answer string) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		input, ok := x.(judge.Input)
		return ok && input.Answer == answer
	})
}
