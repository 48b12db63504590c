package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/aggregator"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestReader_InvalidFile(t *testing.T) {
	reader := NewReader(strings.NewReader("invalid file content"), newTestLogger())

	count := 0
	for record := range reader.ReadAll(context.Background()) {
		count++
		if record.Error == nil {
			t.Errorf("expected parse error for invalid JSON, but got none")
		}
	}
	if count != 1 {
		t.Errorf("expected 1 record, got %d", count)
	}
}

func TestReader_LineNumbersAndFormats(t *testing.T) {
	input := `{"question": "How do I install Kafka?"}

{"invalid json}
"Where is the homework deadline?"
{"question": "   "}`

	reader := NewReader(strings.NewReader(input), newTestLogger())

	var records []InputRecord
	for record := range reader.ReadAll(context.Background()) {
		records = append(records, record)
	}

	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}

	tests := []struct {
		line     int
		question string
		wantErr  bool
	}{
		{line: 1, question: "How do I install Kafka?"},
		{line: 3, wantErr: true},
		{line: 4, question: "Where is the homework deadline?"},
		{line: 5, wantErr: true},
	}
	for i, tt := range tests {
		got := records[i]
		if got.LineNumber != tt.line {
			t.Errorf("record %d: expected line %d, got %d", i, tt.line, got.LineNumber)
		}
		if (got.Error != nil) != tt.wantErr {
			t.Errorf("record %d: expected error=%v, got %v", i, tt.wantErr, got.Error)
		}
		if got.Question != tt.question {
			t.Errorf("record %d: expected question %q, got %q", i, tt.question, got.Question)
		}
	}
}

func TestReader_ContextCancellation(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, `{"question": "test"}`)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := NewReader(strings.NewReader(strings.Join(lines, "\n")), newTestLogger())

	count := 0
	for range reader.ReadAll(ctx) {
		count++
		if count == 5 {
			cancel()
			break
		}
	}

	if count >= 100 {
		t.Errorf("expected early cancellation, but read all records")
	}
}

func TestQuestions(t *testing.T) {
	reader := NewReader(strings.NewReader("{\"question\":\"a\"}\nnope\n{\"question\":\"b\"}"), newTestLogger())
	questions, failed := Questions(reader.ReadAll(context.Background()))

	if len(questions) != 2 || questions[0] != "a" || questions[1] != "b" {
		t.Errorf("unexpected questions %v", questions)
	}
	if len(failed) != 1 || failed[0].LineNumber != 2 {
		t.Errorf("unexpected failed records %+v", failed)
	}
}

func TestLoadQueryCases(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"list.yaml": `- query: how to install kafka
  expected_docs: [kafka.md, docker.md]
- query: homework deadline
  expected_docs: [homework.md]
`,
		"keyed.yml": `cases:
  - query: how to install kafka
    expected_docs: [kafka.md]
`,
		"cases.jsonl": `{"query": "how to install kafka", "expected_docs": ["kafka.md"]}

{"query": "homework deadline", "expected_docs": ["homework.md"]}
`,
	}
	want := map[string]int{"list.yaml": 2, "keyed.yml": 1, "cases.jsonl": 2}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			cases, err := LoadQueryCases(path)
			if err != nil {
				t.Fatalf("LoadQueryCases failed: %v", err)
			}
			if len(cases) != want[name] {
				t.Fatalf("expected %d cases, got %d", want[name], len(cases))
			}
			if cases[0].Query != "how to install kafka" || cases[0].ExpectedDocs[0] != "kafka.md" {
				t.Errorf("unexpected first case %+v", cases[0])
			}
		})
	}

	t.Run("errors", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.jsonl")
		_ = os.WriteFile(bad, []byte(`{"query": ""}`), 0o644)
		if _, err := LoadQueryCases(bad); err == nil {
			t.Error("expected error for empty query")
		}
		if _, err := LoadQueryCases(filepath.Join(dir, "cases.csv")); err == nil {
			t.Error("expected error for missing file")
		}
		csv := filepath.Join(dir, "real.csv")
		_ = os.WriteFile(csv, []byte("query"), 0o644)
		if _, err := LoadQueryCases(csv); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

func sampleRows() []models.EvaluationRow {
	return []models.EvaluationRow{
		{Index: 0, Question: "q1", ToolCallsMade: 1, State: models.StateEvaluated, Checks: map[string]bool{"answer_relevant": true, "answer_citations": true}},
		{Index: 1, Question: "q2", State: models.StateEvaluated, Checks: map[string]bool{"answer_relevant": true, "answer_citations": false}},
		{Index: 2, Question: "q3", State: models.StateFailed, Error: "agent failed"},
	}
}

func TestWriter_JSONL(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSONL, newTestLogger())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, row := range sampleRows() {
		if err := w.Write(row); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	var row models.EvaluationRow
	if err := json.Unmarshal([]byte(lines[2]), &row); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if row.State != models.StateFailed || row.Error != "agent failed" {
		t.Errorf("unexpected decoded row %+v", row)
	}
}

func TestWriter_Summary(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatSummary, newTestLogger())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, row := range sampleRows() {
		_ = w.Write(row)
	}
	if buf.Len() != 0 {
		t.Error("summary format must not write before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Questions:         3",
		"Failed:            1",
		"[PASS]   answer_relevant",
		"[FAIL]   answer_citations",
		"  - q3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	if _, err := NewWriter(&buf, "csv", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteSearchQuality(t *testing.T) {
	var buf bytes.Buffer
	report := aggregator.SearchQualityReport{
		IndividualResults: []aggregator.QueryResult{
			{Query: "kafka", Precision: 0.5, Recall: 1, ReciprocalRank: 1},
			{Query: "broken", Error: "search unavailable"},
		},
		AggregateMetrics: aggregator.AggregateMetrics{TotalQueries: 2, AvgPrecision: 0.25, Errors: 1},
	}
	if err := WriteSearchQuality(&buf, report); err != nil {
		t.Fatalf("WriteSearchQuality failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Avg precision:  0.250") || !strings.Contains(buf.String(), "[ERROR] broken") {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
}
