package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
	"github.com/rs/zerolog"
)

const (
	Version = "1.0.0"

	defaultNumResults = search.DefaultNumResults
	maxNumResults     = 50
)

type Searcher interface {
	Search(ctx context.Context, query string, numResults int, boost map[string]float64) ([]models.ScoredChunk, error)
	Mode() search.Mode
}

type Evaluator interface {
	Evaluate(ctx context.Context, input judge.Input) (*models.EvaluationChecklist, error)
}

type Handler struct {
	searcher     Searcher
	boost        map[string]float64
	chunks       int
	asker        agent.Asker
	evaluator    Evaluator
	instructions string
	logger       *zerolog.Logger
}

type HandlerConfig struct {
	Boost  map[string]float64
	Chunks int
	// Instructions are sent to the judge when a request carries none.
	Instructions string
}

func NewHandler(searcher Searcher, asker agent.Asker, evaluator Evaluator, cfg HandlerConfig, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{
		searcher:     searcher,
		boost:        cfg.Boost,
		chunks:       cfg.Chunks,
		asker:        asker,
		evaluator:    evaluator,
		instructions: cfg.Instructions,
		logger:       logger,
	}
}

// GET /api/v1/health
func (h *Handler) Health(_ *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Version:    Version,
		SearchMode: string(h.searcher.Mode()),
		Chunks:     h.chunks,
	})
}

// POST /api/v1/search
func (h *Handler) Search(req *restful.Request, resp *restful.Response) {
	var searchRequest SearchRequest
	if err := req.ReadEntity(&searchRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	query := strings.TrimSpace(searchRequest.Query)
	if query == "" {
		middleware.HandleError(resp, fmt.Errorf("%w: query is required", middleware.ErrValidation), http.StatusBadRequest)
		return
	}

	numResults := searchRequest.NumResults
	switch {
	case numResults <= 0:
		numResults = defaultNumResults
	case numResults > maxNumResults:
		numResults = maxNumResults
	}

	hits, err := h.searcher.Search(req.Request.Context(), query, numResults, h.boost)
	if err != nil {
		h.logger.Error().Err(err).Str("query", query).Msg("Search failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult{
			ChunkID:        hit.Chunk.ID,
			Text:           hit.Chunk.Text,
			SourceFilename: hit.Chunk.SourceFilename,
			Score:          hit.Score,
			Sources:        hit.Sources,
		})
	}

	h.logger.Debug().Str("query", query).Int("results", len(results)).Msg("Search complete")

	resp.WriteHeaderAndEntity(http.StatusOK, SearchResponse{
		Query:   query,
		Mode:    string(h.searcher.Mode()),
		Results: results,
	})
}

// POST /api/v1/ask
func (h *Handler) Ask(req *restful.Request, resp *restful.Response) {
	var askRequest AskRequest
	if err := req.ReadEntity(&askRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	question := strings.TrimSpace(askRequest.Question)
	if question == "" {
		middleware.HandleError(resp, fmt.Errorf("%w: question is required", middleware.ErrValidation), http.StatusBadRequest)
		return
	}

	h.logger.Info().Str("question", question).Msg("Start answering")

	answer, err := h.asker.Ask(req.Request.Context(), question)
	if err != nil {
		h.logger.Error().Err(err).Msg("Agent failed to answer")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	result := AskResponse{
		Response:  answer.ResponseText,
		Success:   true,
		ToolCalls: answer.ToolCalls,
	}
	if result.ToolCalls == nil {
		result.ToolCalls = []models.ToolCall{}
	}
	if answer.LogPath != "" {
		result.LogFile = filepath.Base(answer.LogPath)
	}

	h.logger.Info().
		Int("tool_calls", len(result.ToolCalls)).
		Str("log_file", result.LogFile).
		Msg("Answer complete")

	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// POST /api/v1/evaluate
func (h *Handler) Evaluate(req *restful.Request, resp *restful.Response) {
	var evalRequest EvaluateRequest
	if err := req.ReadEntity(&evalRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(evalRequest.Question) == "" || strings.TrimSpace(evalRequest.Answer) == "" {
		middleware.HandleError(resp, fmt.Errorf("%w: question and answer are required", middleware.ErrValidation), http.StatusBadRequest)
		return
	}

	instructions := evalRequest.Instructions
	if instructions == "" {
		instructions = h.instructions
	}

	checklist, err := h.evaluator.Evaluate(req.Request.Context(), judge.Input{
		Instructions: instructions,
		Question:     evalRequest.Question,
		Answer:       evalRequest.Answer,
		ToolCalls:    evalRequest.ToolCalls,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Evaluation failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	h.logger.Info().Int("checks", len(checklist.Checklist)).Msg("Evaluation complete")

	resp.WriteHeaderAndEntity(http.StatusOK, checklist)
}
