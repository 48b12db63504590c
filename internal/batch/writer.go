package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/aggregator"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
)

const (
	FormatJSONL   = "jsonl"
	FormatSummary = "summary"
)

// Writer emits evaluation rows as JSONL, or buffers them and prints a text
// summary on Close.
type Writer struct {
	w      io.Writer
	format string
	enc    *json.Encoder
	rows   []models.EvaluationRow
	agg    *aggregator.Aggregator
	logger *zerolog.Logger
}

func NewWriter(w io.Writer, format string, logger *zerolog.Logger) (*Writer, error) {
	if format != FormatJSONL && format != FormatSummary {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Writer{
		w:      w,
		format: format,
		enc:    json.NewEncoder(w),
		agg:    aggregator.NewAggregator(logger),
		logger: logger,
	}, nil
}

func (w *Writer) Write(row models.EvaluationRow) error {
	if w.format == FormatSummary {
		w.rows = append(w.rows, row)
		return nil
	}
	if err := w.enc.Encode(row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row.Index, err)
	}
	return nil
}

// Close flushes the summary. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.format != FormatSummary {
		return nil
	}
	return WriteSummary(w.w, w.agg.Analyze(w.rows))
}

// WriteSummary prints overall metrics and per-check pass rates with a status marker.
func WriteSummary(w io.Writer, analysis aggregator.Analysis) error {
	var b strings.Builder

	b.WriteString("Evaluation summary\n")
	b.WriteString("==================\n")
	fmt.Fprintf(&b, "Questions:         %d\n", analysis.TotalQuestions)
	fmt.Fprintf(&b, "Evaluated:         %d\n", analysis.Evaluated)
	fmt.Fprintf(&b, "Failed:            %d\n", len(analysis.FailedQuestions))
	fmt.Fprintf(&b, "Average pass rate: %.1f%%\n", analysis.AveragePassRate*100)
	fmt.Fprintf(&b, "Tool usage rate:   %.1f%%\n", analysis.ToolUsageRate*100)

	if len(analysis.PassRatesByCheck) > 0 {
		b.WriteString("\nPass rates by check:\n")
		names := make([]string, 0, len(analysis.PassRatesByCheck))
		for name := range analysis.PassRatesByCheck {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			rate := analysis.PassRatesByCheck[name]
			fmt.Fprintf(&b, "  %-8s %-28s %.1f%%\n", marker(aggregator.CheckStatus(rate)), name, rate*100)
		}
	}

	if len(analysis.FailedQuestions) > 0 {
		b.WriteString("\nFailed questions:\n")
		for _, q := range analysis.FailedQuestions {
			fmt.Fprintf(&b, "  - %s\n", q)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSearchQuality prints the retrieval metrics report.
func WriteSearchQuality(w io.Writer, report aggregator.SearchQualityReport) error {
	var b strings.Builder

	b.WriteString("Search quality\n")
	b.WriteString("==============\n")
	m := report.AggregateMetrics
	fmt.Fprintf(&b, "Queries:        %d\n", m.TotalQueries)
	fmt.Fprintf(&b, "Avg precision:  %.3f\n", m.AvgPrecision)
	fmt.Fprintf(&b, "Avg recall:     %.3f\n", m.AvgRecall)
	fmt.Fprintf(&b, "MRR:            %.3f\n", m.MRR)
	fmt.Fprintf(&b, "Errors:         %d\n", m.Errors)

	for _, r := range report.IndividualResults {
		if r.Error != "" {
			fmt.Fprintf(&b, "  [ERROR] %s: %s\n", r.Query, r.Error)
			continue
		}
		fmt.Fprintf(&b, "  p=%.2f r=%.2f rr=%.2f  %s\n", r.Precision, r.Recall, r.ReciprocalRank, r.Query)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func marker(v models.Verdict) string {
	switch v {
	case models.VerdictPass:
		return "[PASS]"
	case models.VerdictReview:
		return "[REVIEW]"
	default:
		return "[FAIL]"
	}
}
