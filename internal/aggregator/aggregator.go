package aggregator

import (
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/rs/zerolog"
)

const (
	passThreshold   = 0.8
	reviewThreshold = 0.6
)

// Analysis summarises a batch of evaluation rows.
type Analysis struct {
	TotalQuestions   int                       `json:"total_questions"`
	Evaluated        int                       `json:"evaluated"`
	AveragePassRate  float64                   `json:"average_pass_rate"`
	ToolUsageRate    float64                   `json:"tool_usage_rate"`
	PassRatesByCheck map[string]float64        `json:"pass_rates_by_check"`
	CheckVerdicts    map[string]models.Verdict `json:"check_verdicts"`
	FailedQuestions  []string                  `json:"failed_questions"`
}

type Aggregator struct {
	logger *zerolog.Logger
}

func NewAggregator(logger *zerolog.Logger) *Aggregator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Aggregator{logger: logger}
}

// CheckStatus classifies a per-check pass rate.
func CheckStatus(rate float64) models.Verdict {
	if rate >= passThreshold {
		return models.VerdictPass
	}
	if rate >= reviewThreshold {
		return models.VerdictReview
	}
	return models.VerdictFail
}

// Analyze computes pass and tool usage rates. Empty input yields zeros.
func (a *Aggregator) Analyze(rows []models.EvaluationRow) Analysis {
	analysis := Analysis{
		TotalQuestions:   len(rows),
		PassRatesByCheck: map[string]float64{},
		CheckVerdicts:    map[string]models.Verdict{},
		FailedQuestions:  []string{},
	}
	if len(rows) == 0 {
		return analysis
	}

	var passed, total, withTools int
	checkPassed := map[string]int{}
	checkTotal := map[string]int{}

	for _, row := range rows {
		if row.ToolCallsMade > 0 {
			withTools++
		}
		if row.State == models.StateFailed {
			analysis.FailedQuestions = append(analysis.FailedQuestions, row.Question)
			continue
		}
		if row.State == models.StateEvaluated {
			analysis.Evaluated++
		}

		for name, pass := range row.Checks {
			total++
			checkTotal[name]++
			if pass {
				passed++
				checkPassed[name]++
			}
		}
	}

	analysis.ToolUsageRate = float64(withTools) / float64(len(rows))
	if total > 0 {
		analysis.AveragePassRate = float64(passed) / float64(total)
	}
	for name, n := range checkTotal {
		rate := float64(checkPassed[name]) / float64(n)
		analysis.PassRatesByCheck[name] = rate
		analysis.CheckVerdicts[name] = CheckStatus(rate)
	}

	a.logger.Info().
		Int("total_questions", analysis.TotalQuestions).
		Int("failed", len(analysis.FailedQuestions)).
		Float64("average_pass_rate", analysis.AveragePassRate).
		Float64("tool_usage_rate", analysis.ToolUsageRate).
		Msg("Evaluation analysis complete")

	return analysis
}
