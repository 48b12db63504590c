package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/evaluation/mocks"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/interactionlog"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"go.uber.org/mock/gomock"
)

// MockLLMClient is a mock implementation of llm.LLMClient for testing.
type MockLLMClient struct {
	ResponseToReturn *llm.LLMResponse
	ErrorToReturn    error
	LastRequest      llm.LLMRequest
}

func (m *MockLLMClient) InvokeModel(_ context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	m.LastRequest = request
	if m.ErrorToReturn != nil {
		return nil, m.ErrorToReturn
	}
	return m.ResponseToReturn, nil
}

func (m *MockLLMClient) InvokeModelWithRetry(ctx context.Context, request llm.LLMRequest) (*llm.LLMResponse, error) {
	return m.InvokeModel(ctx, request)
}

func sampleChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:             fmt.Sprintf("c%d", i),
			Text:           fmt.Sprintf("record number %d", i),
			SourceFilename: fmt.Sprintf("faq/%d.md", i),
		}
	}
	return chunks
}

func TestQuestionGenerator_Generate(t *testing.T) {
	client := &MockLLMClient{ResponseToReturn: &llm.LLMResponse{
		Content: "```json\n{\"questions\": [\"How do I install Kafka?\", \"  \", \"Where is the homework?\", \"extra\"]}\n```",
	}}
	gen, err := NewQuestionGenerator(client, WithSeed(42), WithGeneratorLogger(newTestLogger()))
	if err != nil {
		t.Fatalf("NewQuestionGenerator failed: %v", err)
	}

	questions, err := gen.Generate(context.Background(), sampleChunks(5), 2)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(questions) != 2 || questions[0] != "How do I install Kafka?" || questions[1] != "Where is the homework?" {
		t.Errorf("unexpected questions %q", questions)
	}
	if !strings.Contains(client.LastRequest.Prompt, "formulate 2 questions") {
		t.Errorf("expected count in prompt, got %q", client.LastRequest.Prompt)
	}
	if strings.Count(client.LastRequest.Prompt, "<record ") != 2 {
		t.Errorf("expected two sampled records in prompt")
	}
}

func TestQuestionGenerator_SeedIsReproducible(t *testing.T) {
	chunks := sampleChunks(20)
	a, _ := NewQuestionGenerator(&MockLLMClient{}, WithSeed(7))
	b, _ := NewQuestionGenerator(&MockLLMClient{}, WithSeed(7))

	first := a.sample(chunks, 5)
	second := b.sample(chunks, 5)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("samples diverge at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}

	if got := len(a.sample(chunks[:3], 10)); got != 3 {
		t.Errorf("expected sample capped at corpus size, got %d", got)
	}
}

func TestQuestionGenerator_Errors(t *testing.T) {
	tests := []struct {
		name      string
		client    *MockLLMClient
		wantParse bool
	}{
		{
			name:   "llm failure",
			client: &MockLLMClient{ErrorToReturn: llm.Wrap("test", llm.ErrQuotaExceeded, errors.New("429"))},
		},
		{
			name:      "not json",
			client:    &MockLLMClient{ResponseToReturn: &llm.LLMResponse{Content: "Here are some questions"}},
			wantParse: true,
		},
		{
			name:      "empty list",
			client:    &MockLLMClient{ResponseToReturn: &llm.LLMResponse{Content: `{"questions": []}`}},
			wantParse: true,
		},
		{
			name:      "wrong item type",
			client:    &MockLLMClient{ResponseToReturn: &llm.LLMResponse{Content: `{"questions": [1, 2]}`}},
			wantParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewQuestionGenerator(tt.client, WithSeed(1))
			if err != nil {
				t.Fatalf("NewQuestionGenerator failed: %v", err)
			}

			_, err = gen.Generate(context.Background(), sampleChunks(3), 2)
			if !errors.Is(err, ErrGeneration) {
				t.Fatalf("expected ErrGeneration, got %v", err)
			}
			var parseErr *judge.ParseError
			if errors.As(err, &parseErr) != tt.wantParse {
				t.Errorf("expected parse error=%v, got %v", tt.wantParse, err)
			}
		})
	}
}

func TestQuestionGenerator_NothingToDo(t *testing.T) {
	client := &MockLLMClient{ErrorToReturn: errors.New("must not be called")}
	gen, _ := NewQuestionGenerator(client)

	for _, tc := range []struct {
		chunks []models.Chunk
		n      int
	}{{sampleChunks(3), 0}, {nil, 5}} {
		questions, err := gen.Generate(context.Background(), tc.chunks, tc.n)
		if err != nil || questions == nil || len(questions) != 0 {
			t.Errorf("expected empty result, got %v, %v", questions, err)
		}
	}

	if _, err := NewQuestionGenerator(nil); err == nil {
		t.Error("expected error for nil client")
	}
}

type fakeSource struct {
	questions []string
	err       error
}

func (f *fakeSource) Generate(_ context.Context, _ []models.Chunk, n int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.questions[:min(n, len(f.questions))], nil
}

func TestRunner_RunFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAsker := mocks.NewMockAsker(ctrl)
	mockEvaluator := mocks.NewMockEvaluator(ctrl)

	mockAsker.EXPECT().Ask(gomock.Any(), "q1").Return(&agent.Answer{
		ResponseText: "a1",
		ToolCalls:    []models.ToolCall{{Function: "search"}},
	}, nil)
	mockAsker.EXPECT().Ask(gomock.Any(), "q2").Return(nil, errors.New("boom"))
	mockEvaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(passingChecklist(), nil)

	runner := NewRunner(mockAsker, mockEvaluator, WithLogger(newTestLogger()))
	report, err := runner.RunFull(context.Background(), &fakeSource{questions: []string{"q1", "q2", "q3"}}, sampleChunks(3), 3, 2)
	if err != nil {
		t.Fatalf("RunFull failed: %v", err)
	}

	if len(report.Questions) != 3 || len(report.Rows) != 2 {
		t.Fatalf("unexpected report sizes: %d questions, %d rows", len(report.Questions), len(report.Rows))
	}
	if report.Analysis.TotalQuestions != 2 || report.Analysis.Evaluated != 1 {
		t.Errorf("unexpected analysis %+v", report.Analysis)
	}
	if len(report.Analysis.FailedQuestions) != 1 || report.Analysis.FailedQuestions[0] != "q2" {
		t.Errorf("expected q2 in failed questions, got %v", report.Analysis.FailedQuestions)
	}
	if report.Analysis.ToolUsageRate != 0.5 {
		t.Errorf("expected tool usage 0.5, got %v", report.Analysis.ToolUsageRate)
	}

	_, err = runner.RunFull(context.Background(), &fakeSource{err: ErrGeneration}, nil, 3, 0)
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("expected generation error, got %v", err)
	}
}

func TestLoadLogged(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	logger, err := interactionlog.New(dir, newTestLogger(), interactionlog.WithClock(func() time.Time { return stamp }))
	if err != nil {
		t.Fatalf("interactionlog.New failed: %v", err)
	}

	for _, q := range []string{"first", "second"} {
		if _, err := logger.Log(models.InteractionRecord{AgentName: "gitsensei_agent", Question: q, Timestamp: stamp}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := os.WriteFile(dir+"/notes.txt", []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	logged, err := LoadLogged(dir)
	if err != nil {
		t.Fatalf("LoadLogged failed: %v", err)
	}
	if len(logged) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(logged))
	}
	for _, l := range logged {
		if l.Path == "" || (l.Record.Question != "first" && l.Record.Question != "second") {
			t.Errorf("unexpected logged interaction %+v", l)
		}
	}
}
