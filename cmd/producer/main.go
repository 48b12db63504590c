package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/interactionlog"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/setup"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/stream"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/stream/redis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	file := flag.String("f", "", "Publish a single interaction log file")
	dir := flag.String("logs", "", "Publish every interaction log in this directory")
	streamName := flag.String("stream", "", "Stream name (defaults to STREAM_NAME)")
	flag.Parse()

	if *file == "" && *dir == "" {
		fmt.Fprintln(os.Stderr, "Usage: producer -f <log.json> | -logs <dir>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(*file, *dir, *streamName); err != nil {
		log.Error().Err(err).Msg("producer failed")
		os.Exit(1)
	}
}

func run(file, dir, streamName string) error {
	_ = godotenv.Load()

	cfg := setup.LoadConfig()
	if streamName != "" {
		cfg.Stream = streamName
	}

	paths := []string{file}
	if dir != "" {
		listed, err := interactionlog.List(dir)
		if err != nil {
			return err
		}
		paths = listed
	}

	ctx := context.Background()
	publisher, err := stream.NewStreamPublisher(ctx, &stream.StreamConfig{
		Provider:    os.Getenv("STREAM_PROVIDER"),
		RedisConfig: redis.NewRedisStreamConfig(cfg.RedisAddr, cfg.RedisPassword, cfg.Stream, cfg.StreamGroup, cfg.ConsumerName),
		MaxLen:      cfg.StreamMaxLen,
	}, &log.Logger)
	if err != nil {
		return err
	}

	published := 0
	for _, path := range paths {
		record, err := interactionlog.Read(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Skipping unreadable log")
			continue
		}

		id, err := publisher.Publish(ctx, record)
		if err != nil {
			return fmt.Errorf("Unable to publish %s. Error: %w", path, err)
		}
		published++
		log.Debug().Str("file", path).Str("id", id).Msg("Published")
	}

	log.Info().Str("stream", cfg.Stream).Int("published", published).Int("files", len(paths)).Msg("Published successfully!")
	return nil
}
