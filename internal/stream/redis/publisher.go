package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/metrics"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher appends interaction records to a stream for asynchronous judging.
type Publisher struct {
	client StreamClient
	stream string
	maxLen int64
	logger *zerolog.Logger
}

// NewPublisher caps the stream at roughly maxLen entries when maxLen > 0.
func NewPublisher(client StreamClient, stream string, maxLen int64, logger *zerolog.Logger) *Publisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Publisher{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, record models.InteractionRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("Unable to encode interaction record. Error: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{payloadField: string(data)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("Unable to publish to stream %s. Error: %w", p.stream, err)
	}

	metrics.InteractionsPublished.Inc()
	p.logger.Debug().Str("stream", p.stream).Str("id", id).Str("agent", record.AgentName).Msg("Interaction published")
	return id, nil
}
