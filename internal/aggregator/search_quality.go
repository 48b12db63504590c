package aggregator

import (
	"context"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
)

// QueryCase is one labelled search query.
type QueryCase struct {
	Query        string   `json:"query" yaml:"query"`
	ExpectedDocs []string `json:"expected_docs" yaml:"expected_docs"`
}

// SearchFunc returns the source filenames of the results for query, best first.
type SearchFunc func(ctx context.Context, query string) ([]string, error)

type QueryResult struct {
	Query          string   `json:"query"`
	NumResults     int      `json:"num_results"`
	Returned       []string `json:"returned"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	ReciprocalRank float64  `json:"reciprocal_rank"`
	Error          string   `json:"error,omitempty"`
}

type AggregateMetrics struct {
	TotalQueries int     `json:"total_queries"`
	AvgPrecision float64 `json:"avg_precision"`
	AvgRecall    float64 `json:"avg_recall"`
	MRR          float64 `json:"mrr"`
	Errors       int     `json:"errors"`
}

type SearchQualityReport struct {
	IndividualResults []QueryResult    `json:"individual_results"`
	AggregateMetrics  AggregateMetrics `json:"aggregate_metrics"`
}

type hitSearcher interface {
	Search(ctx context.Context, query string) ([]search.Hit, error)
}

// ToolSearchFunc adapts the agent search tool to a SearchFunc.
func ToolSearchFunc(tool hitSearcher) SearchFunc {
	return func(ctx context.Context, query string) ([]string, error) {
		hits, err := tool.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		files := make([]string, 0, len(hits))
		for _, h := range hits {
			files = append(files, h.SourceFilename)
		}
		return files, nil
	}
}

// EvaluateSearchQuality scores searchFn against labelled cases. A failing
// query is recorded with its error and scores zero.
func (a *Aggregator) EvaluateSearchQuality(ctx context.Context, searchFn SearchFunc, cases []QueryCase) SearchQualityReport {
	report := SearchQualityReport{
		IndividualResults: make([]QueryResult, 0, len(cases)),
	}

	var sumPrecision, sumRecall, sumRR float64
	for _, c := range cases {
		result := scoreQuery(ctx, searchFn, c)
		if result.Error != "" {
			report.AggregateMetrics.Errors++
			a.logger.Warn().Str("query", c.Query).Str("error", result.Error).Msg("Search failed during quality evaluation")
		}
		sumPrecision += result.Precision
		sumRecall += result.Recall
		sumRR += result.ReciprocalRank
		report.IndividualResults = append(report.IndividualResults, result)
	}

	n := len(cases)
	report.AggregateMetrics.TotalQueries = n
	if n > 0 {
		report.AggregateMetrics.AvgPrecision = sumPrecision / float64(n)
		report.AggregateMetrics.AvgRecall = sumRecall / float64(n)
		report.AggregateMetrics.MRR = sumRR / float64(n)
	}

	a.logger.Info().
		Int("total_queries", n).
		Float64("avg_precision", report.AggregateMetrics.AvgPrecision).
		Float64("mrr", report.AggregateMetrics.MRR).
		Msg("Search quality evaluation complete")

	return report
}

func scoreQuery(ctx context.Context, searchFn SearchFunc, c QueryCase) QueryResult {
	result := QueryResult{Query: c.Query, Returned: []string{}}

	returned, err := searchFn(ctx, c.Query)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Returned = append(result.Returned, returned...)
	result.NumResults = len(returned)

	expected := make(map[string]bool, len(c.ExpectedDocs))
	for _, doc := range c.ExpectedDocs {
		expected[doc] = true
	}

	relevant := 0
	found := map[string]bool{}
	for rank, file := range returned {
		if !expected[file] {
			continue
		}
		relevant++
		found[file] = true
		if result.ReciprocalRank == 0 {
			result.ReciprocalRank = 1 / float64(rank+1)
		}
	}

	if len(returned) > 0 {
		result.Precision = float64(relevant) / float64(len(returned))
	}
	if len(expected) > 0 {
		result.Recall = float64(len(found)) / float64(len(expected))
	}
	return result
}
