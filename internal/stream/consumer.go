package stream

import (
	"context"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

type StreamConsumer interface {
	Setup(ctx context.Context) error
	Start(ctx context.Context) error
	Stop() error
}

// StreamPublisher hands logged interactions to an asynchronous evaluator.
type StreamPublisher interface {
	Publish(ctx context.Context, record models.InteractionRecord) (string, error)
}
