package gpt

import (
	"errors"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/sashabaranov/go-openai"
)

// classify tags an OpenAI API failure with its llm error kind.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type == "insufficient_quota" {
			return llm.Wrap(provider, llm.ErrQuotaExceeded, err)
		}
		return llm.Wrap(provider, llm.KindFromStatus(apiErr.HTTPStatusCode), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.Wrap(provider, llm.KindFromStatus(reqErr.HTTPStatusCode), err)
	}

	return llm.Wrap(provider, llm.KindFromTransport(err), err)
}
