package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitsensei_search_requests_total",
			Help: "Hybrid search requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	SearchDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitsensei_search_degraded_total",
			Help: "Searches answered by a single sub-index after the other failed",
		},
		[]string{"failed_index"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gitsensei_search_duration_seconds",
			Help:    "Hybrid search latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitsensei_llm_calls_total",
			Help: "LLM calls by caller and outcome kind",
		},
		[]string{"caller", "outcome"},
	)

	EvaluationQuestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitsensei_evaluation_questions_total",
			Help: "Evaluated questions by terminal state",
		},
		[]string{"state"},
	)

	JudgeParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gitsensei_judge_parse_failures_total",
			Help: "Judge replies that failed schema validation or decoding",
		},
	)

	InteractionsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitsensei_interactions_logged_total",
			Help: "Interaction records written to disk by source",
		},
		[]string{"source"},
	)

	InteractionsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gitsensei_interactions_published_total",
			Help: "Interaction records appended to the evaluation stream",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
