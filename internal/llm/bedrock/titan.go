package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const DefaultTitanModelID = "amazon.titan-embed-text-v2:0"

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// TitanEmbedder produces Amazon Titan text embeddings.
type TitanEmbedder struct {
	Client     Runtime
	ModelID    string
	Dimensions int
}

func NewTitanEmbedder(ctx context.Context, region string, modelID string, dimensions int) (*TitanEmbedder, error) {
	if modelID == "" {
		modelID = DefaultTitanModelID
	}

	cfg, err := LoadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}

	return &TitanEmbedder{
		Client:     bedrockruntime.NewFromConfig(cfg),
		ModelID:    modelID,
		Dimensions: dimensions,
	}, nil
}

func (e *TitanEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{
		InputText:  text,
		Dimensions: e.Dimensions,
		Normalize:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("Unable to serialize titan request. Error: %w", err)
	}

	output, err := e.Client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &e.ModelID,
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, classify(fmt.Errorf("Unable to invoke titan model. Error: %w", err))
	}

	var response titanResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal titan response. Error: %w", err)
	}

	return response.Embedding, nil
}

func (e *TitanEmbedder) Dimension() int {
	return e.Dimensions
}
