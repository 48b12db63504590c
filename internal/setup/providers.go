package setup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm/bedrock"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm/gemini"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm/gpt"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/semantic"
)

// NewLLMClient builds the chat client for cfg.LLMProvider bounded by cfg.LLMTimeout.
func NewLLMClient(ctx context.Context, cfg *Config) (llm.LLMClient, string, error) {
	client, model, err := createLLMClient(ctx, cfg.LLMProvider, cfg)
	if err != nil {
		return nil, "", err
	}
	return llm.WithTimeout(client, cfg.LLMTimeout), model, nil
}

func createLLMClient(ctx context.Context, provider string, cfg *Config) (llm.LLMClient, string, error) {
	switch provider {
	case "bedrock", "":
		c, err := bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
		if err != nil {
			return nil, "", err
		}
		return c, c.ModelID, nil
	case "openai":
		c, err := gpt.NewClient(cfg.OpenAIKey, cfg.OpenAIModelID)
		if err != nil {
			return nil, "", err
		}
		return c, c.ModelID, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, "", err
		}
		return c, c.ModelID, nil
	default:
		return nil, "", fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// NewEmbedder returns nil without error when cfg.EmbeddingProvider is "none".
func NewEmbedder(ctx context.Context, cfg *Config) (semantic.Embedder, string, error) {
	var (
		embedder semantic.Embedder
		model    string
	)

	switch cfg.EmbeddingProvider {
	case "none":
		return nil, "", nil
	case "bedrock", "":
		e, err := bedrock.NewTitanEmbedder(ctx, cfg.AWSRegion, cfg.TitanEmbeddingModelID, cfg.EmbeddingDimension)
		if err != nil {
			return nil, "", err
		}
		embedder, model = e, e.ModelID
	case "openai":
		e, err := gpt.NewEmbedder(cfg.OpenAIKey, cfg.OpenAIEmbeddingModel, cfg.EmbeddingDimension)
		if err != nil {
			return nil, "", err
		}
		embedder, model = e, e.Model
	case "gemini":
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel, cfg.EmbeddingDimension)
		if err != nil {
			return nil, "", err
		}
		embedder, model = e, e.Model
	default:
		return nil, "", fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}

	return withEmbedTimeout(embedder, cfg.EmbeddingTimeout), model, nil
}

type timeoutEmbedder struct {
	next    semantic.Embedder
	timeout time.Duration
}

func withEmbedTimeout(next semantic.Embedder, d time.Duration) semantic.Embedder {
	if d <= 0 {
		return next
	}
	return &timeoutEmbedder{next: next, timeout: d}
}

func (e *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	vec, err := e.next.Embed(ctx, text)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, llm.ErrTimeout) {
		return nil, llm.Wrap("embedding", llm.ErrTimeout, err)
	}
	return vec, err
}

func (e *timeoutEmbedder) Dimension() int {
	return e.next.Dimension()
}
