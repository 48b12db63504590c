package mcpadapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
)

type fakeSearcher struct {
	hits      []search.Hit
	err       error
	lastQuery string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]search.Hit, error) {
	f.lastQuery = query
	return f.hits, f.err
}

type fakeAsker struct {
	answer *agent.Answer
	err    error
}

func (f *fakeAsker) Ask(_ context.Context, _ string) (*agent.Answer, error) {
	return f.answer, f.err
}

type fakeEvaluator struct {
	checklist *models.EvaluationChecklist
	err       error
	lastInput judge.Input
}

func (f *fakeEvaluator) Evaluate(_ context.Context, input judge.Input) (*models.EvaluationChecklist, error) {
	f.lastInput = input
	return f.checklist, f.err
}

func TestSearchHandler(t *testing.T) {
	searcher := &fakeSearcher{hits: []search.Hit{{Text: "Use docker", SourceFilename: "kafka.md"}}}
	handler := NewSearchHandler(searcher)

	_, out, err := handler(context.Background(), nil, SearchInput{Query: " kafka "})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(out.Results) != 1 || searcher.lastQuery != "kafka" {
		t.Errorf("unexpected output %+v (query %q)", out, searcher.lastQuery)
	}

	if _, _, err := handler(context.Background(), nil, SearchInput{}); !errors.Is(err, errEmptyInput) {
		t.Errorf("expected empty input error, got %v", err)
	}

	searcher.hits = nil
	_, out, _ = handler(context.Background(), nil, SearchInput{Query: "nothing"})
	if out.Results == nil {
		t.Error("expected an empty, non-nil result list")
	}
}

func TestAskHandler(t *testing.T) {
	asker := &fakeAsker{answer: &agent.Answer{ResponseText: "answer", LogPath: "/logs/a.json"}}
	handler := NewAskHandler(asker)

	_, out, err := handler(context.Background(), nil, AskInput{Question: "q"})
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if out.Response != "answer" || out.LogFile != "a.json" || out.ToolCalls == nil {
		t.Errorf("unexpected output %+v", out)
	}

	asker.err = llm.Wrap("openai", llm.ErrQuotaExceeded, errors.New("429"))
	_, _, err = handler(context.Background(), nil, AskInput{Question: "q"})
	if !errors.Is(err, llm.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if !strings.Contains(err.Error(), llm.Guidance(asker.err)) {
		t.Errorf("expected guidance in error text, got %q", err.Error())
	}
}

func TestEvaluateHandler(t *testing.T) {
	evaluator := &fakeEvaluator{checklist: &models.EvaluationChecklist{Summary: "ok"}}
	handler := NewEvaluateHandler(evaluator, "default")

	_, out, err := handler(context.Background(), nil, EvaluateInput{Question: "q", Answer: "a"})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if out.Summary != "ok" || evaluator.lastInput.Instructions != "default" {
		t.Errorf("unexpected output %+v, input %+v", out, evaluator.lastInput)
	}

	if _, _, err := handler(context.Background(), nil, EvaluateInput{Question: "q"}); !errors.Is(err, errEmptyInput) {
		t.Errorf("expected empty input error, got %v", err)
	}

	evaluator.err = &judge.ParseError{Reason: "bad json"}
	if _, _, err := handler(context.Background(), nil, EvaluateInput{Question: "q", Answer: "a"}); !errors.Is(err, judge.ErrParse) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestNewServer(t *testing.T) {
	server := NewServer(ServerConfig{Name: "gitsensei", Version: "1.0.0"}, &fakeSearcher{}, &fakeAsker{}, &fakeEvaluator{})
	if server == nil {
		t.Fatal("expected a server")
	}
}
