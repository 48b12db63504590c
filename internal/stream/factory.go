package stream

import (
	"context"
	"fmt"

	redisconn "github.com/povarna/generative-ai-agents/gitsensei/internal/redis"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/stream/redis"
	"github.com/rs/zerolog"
)

const connectAttempts = 5

type StreamConfig struct {
	Provider    string // only redis today
	RedisConfig *redis.RedisStreamConfig
	// MaxLen caps the published stream when positive.
	MaxLen int64
}

func provider(cfg *StreamConfig) (string, error) {
	p := cfg.Provider
	if p == "" {
		p = "redis"
	}
	if p != "redis" {
		return "", fmt.Errorf("unsupported stream provider: %s", cfg.Provider)
	}
	if cfg.RedisConfig == nil {
		return "", fmt.Errorf("redis config required")
	}
	return p, nil
}

func NewStreamConsumer(
	ctx context.Context,
	cfg *StreamConfig,
	evaluator redis.Evaluator,
	logger *zerolog.Logger,
) (StreamConsumer, error) {
	if _, err := provider(cfg); err != nil {
		return nil, err
	}

	client, err := redisconn.ConnectRedis(ctx, cfg.RedisConfig.RedisAddr, cfg.RedisConfig.RedisPassword, connectAttempts, logger)
	if err != nil {
		return nil, err
	}

	return redis.NewConsumer(
		client,
		cfg.RedisConfig.Stream,
		cfg.RedisConfig.Group,
		cfg.RedisConfig.ConsumerName,
		evaluator,
		logger,
	), nil
}

func NewStreamPublisher(ctx context.Context, cfg *StreamConfig, logger *zerolog.Logger) (StreamPublisher, error) {
	if _, err := provider(cfg); err != nil {
		return nil, err
	}

	client, err := redisconn.ConnectRedis(ctx, cfg.RedisConfig.RedisAddr, cfg.RedisConfig.RedisPassword, connectAttempts, logger)
	if err != nil {
		return nil, err
	}

	return redis.NewPublisher(client, cfg.RedisConfig.Stream, cfg.MaxLen, logger), nil
}
