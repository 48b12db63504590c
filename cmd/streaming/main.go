package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/setup"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/stream"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/stream/redis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	logger := log.Logger

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := setup.LoadConfig()
	consumerName := cfg.ConsumerName
	if host := os.Getenv("HOSTNAME"); host != "" && os.Getenv("CONSUMER_NAME") == "" {
		consumerName = host
	}

	llmClient, modelName, err := setup.NewLLMClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create LLM client")
	}

	evaluator, err := setup.NewJudge(llmClient, &logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build judge")
	}

	streamCfg := &stream.StreamConfig{
		Provider:    os.Getenv("STREAM_PROVIDER"),
		RedisConfig: redis.NewRedisStreamConfig(cfg.RedisAddr, cfg.RedisPassword, cfg.Stream, cfg.StreamGroup, consumerName),
		MaxLen:      cfg.StreamMaxLen,
	}

	consumer, err := stream.NewStreamConsumer(ctx, streamCfg, evaluator, &logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream consumer")
	}

	if err := consumer.Setup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup consumer")
	}

	log.Info().
		Str("stream", cfg.Stream).
		Str("group", cfg.StreamGroup).
		Str("consumer", consumerName).
		Str("model", modelName).
		Msg("Judge consumer started")

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Consumer stopped with error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	if err := consumer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop consumer")
	}

	log.Info().Msg("GitSensei judge consumer stopped")
}
