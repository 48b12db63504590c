package gpt

import (
	"context"
	"errors"
	"fmt"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"github.com/sashabaranov/go-openai"
)

const DefaultEmbeddingModel = string(openai.SmallEmbedding3)

// Embedder produces OpenAI text embeddings.
type Embedder struct {
	Client     *openai.Client
	Model      string
	Dimensions int
}

func NewEmbedder(apiKey string, model string, dimensions int) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return NewEmbedderWithConfig(openai.DefaultConfig(apiKey), model, dimensions), nil
}

func NewEmbedderWithConfig(cfg openai.ClientConfig, model string, dimensions int) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{
		Client:     openai.NewClientWithConfig(cfg),
		Model:      model,
		Dimensions: dimensions,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.Client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.Model),
		Dimensions: e.Dimensions,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create embeddings: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, llm.Wrap(provider, llm.ErrUnavailable, errors.New("no embedding returned"))
	}
	return resp.Data[0].Embedding, nil
}

func (e *Embedder) Dimension() int {
	return e.Dimensions
}
