package middleware

import (
	"errors"
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/search"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/semantic"
	"github.com/rs/zerolog/log"
)

// ErrValidation marks a request the client must fix.
var ErrValidation = errors.New("invalid request")

type ErrorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind"`
	Guidance string `json:"guidance,omitempty"`
}

// Classify maps err to an HTTP status and a stable kind. fallback is used for
// errors that carry no known kind.
func Classify(err error, fallback int) (int, string) {
	var embeddingErr *semantic.EmbeddingError

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, llm.ErrQuotaExceeded):
		return http.StatusTooManyRequests, llm.Kind(err)
	case errors.Is(err, llm.ErrAuth):
		return http.StatusBadGateway, llm.Kind(err)
	case errors.Is(err, judge.ErrParse):
		return http.StatusBadGateway, "judge_parse"
	case errors.Is(err, search.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, "search_unavailable"
	case errors.As(err, &embeddingErr):
		return http.StatusServiceUnavailable, "embedding"
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusServiceUnavailable, llm.Kind(err)
	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway, llm.Kind(err)
	}

	if fallback == http.StatusBadRequest {
		return fallback, "validation"
	}
	if fallback == 0 {
		fallback = http.StatusInternalServerError
	}
	return fallback, "internal"
}

func HandleError(resp *restful.Response, err error, status int) {
	status, kind := Classify(err, status)

	guidance := llm.Guidance(err)
	if guidance == "" {
		switch kind {
		case "search_unavailable", "embedding":
			guidance = "Search is temporarily unavailable. Retry shortly."
		case "judge_parse":
			guidance = "The judge returned an answer that could not be parsed. Retry the evaluation."
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Str("kind", kind).Msg("Request failed")
	}

	if writeErr := resp.WriteHeaderAndEntity(status, ErrorResponse{
		Error:    err.Error(),
		Kind:     kind,
		Guidance: guidance,
	}); writeErr != nil {
		log.Error().Err(writeErr).Msg("Failed to write error response")
	}
}
