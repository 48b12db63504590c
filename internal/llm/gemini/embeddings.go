package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
	"google.golang.org/genai"
)

const DefaultEmbeddingModel = "text-embedding-004"

// ContentEmbedder is the subset of genai.Models used for embeddings.
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Embedder struct {
	Models     ContentEmbedder
	Model      string
	Dimensions int
}

func NewEmbedder(ctx context.Context, apiKey string, model string, dimensions int) (*Embedder, error) {
	client, err := newGenaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{Models: client.Models, Model: model, Dimensions: dimensions}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	config := &genai.EmbedContentConfig{}
	if e.Dimensions > 0 {
		dims := int32(e.Dimensions)
		config.OutputDimensionality = &dims
	}

	resp, err := e.Models.EmbedContent(ctx, e.Model, genai.Text(text), config)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to embed content: %w", err))
	}
	if len(resp.Embeddings) == 0 {
		return nil, llm.Wrap(provider, llm.ErrUnavailable, errors.New("no embedding returned"))
	}
	return resp.Embeddings[0].Values, nil
}

func (e *Embedder) Dimension() int {
	return e.Dimensions
}
