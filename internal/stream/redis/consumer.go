package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/judge"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	payloadField     = "payload"
	pendingBatchSize = 16
)

// StreamClient is the subset of the go-redis client the stream code uses.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Evaluator interface {
	Evaluate(ctx context.Context, input judge.Input) (*models.EvaluationChecklist, error)
}

// EvaluationResult is published to the results stream for every consumed interaction.
type EvaluationResult struct {
	MessageID string                      `json:"message_id"`
	AgentName string                      `json:"agent_name"`
	Question  string                      `json:"question"`
	Checklist *models.EvaluationChecklist `json:"checklist,omitempty"`
	Error     string                      `json:"error,omitempty"`
	JudgedAt  time.Time                   `json:"judged_at"`
}

type Consumer struct {
	client       StreamClient
	stream       string
	groupID      string
	consumerName string
	evaluator    Evaluator
	logger       *zerolog.Logger
}

func NewConsumer(client StreamClient, stream string, groupID string, consumerName string, evaluator Evaluator, logger *zerolog.Logger) *Consumer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Consumer{
		client:       client,
		stream:       stream,
		groupID:      groupID,
		consumerName: consumerName,
		evaluator:    evaluator,
		logger:       logger,
	}
}

func (c *Consumer) Setup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.groupID, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("stream", c.stream).
		Str("group", c.groupID).
		Str("consumer", c.consumerName).
		Msg("Consumer started")

	if err := c.drainPending(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupID,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Error().Err(err).Msg("Failed to read from stream")
			continue
		}

		for _, s := range msgs {
			for _, msg := range s.Messages {
				c.process(ctx, msg)
			}
		}
	}
}

// drainPending re-processes entries delivered to this consumer but never acked,
// such as those left behind by a crash or a failed publish.
func (c *Consumer) drainPending(ctx context.Context) error {
	start := "0"
	for {
		msgs, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupID,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, start},
			Count:    pendingBatchSize,
			Block:    -1,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, redis.Nil) {
				c.logger.Error().Err(err).Msg("Failed to read pending messages")
			}
			return nil
		}

		processed := 0
		for _, s := range msgs {
			for _, msg := range s.Messages {
				c.process(ctx, msg)
				start = msg.ID
				processed++
			}
		}
		if processed == 0 {
			return nil
		}
		c.logger.Info().Int("count", processed).Msg("Pending messages redelivered")
	}
}

func (c *Consumer) Stop() error {
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	c.logger.Info().Str("id", msg.ID).Msg("Message received")

	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		c.logger.Error().Str("id", msg.ID).Msg("Missing payload field")
		c.ack(ctx, msg.ID)
		return
	}

	var record models.InteractionRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to decode message")
		c.ack(ctx, msg.ID)
		return
	}

	result := EvaluationResult{
		MessageID: msg.ID,
		AgentName: record.AgentName,
		Question:  record.Question,
	}

	checklist, err := c.evaluator.Evaluate(ctx, judge.Input{
		Instructions: record.SystemPrompt,
		Question:     record.Question,
		Answer:       record.ResponseText,
		ToolCalls:    record.ToolCalls,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Evaluation failed")
		result.Error = err.Error()
	} else {
		result.Checklist = checklist
		c.logger.Info().Str("id", msg.ID).Int("checks", len(checklist.Checklist)).Msg("Evaluation complete")
	}
	result.JudgedAt = time.Now().UTC()

	if err := c.publishResult(ctx, result); err != nil {
		// Left pending so the message is redelivered to the group.
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to publish evaluation result")
		return
	}

	c.ack(ctx, msg.ID)
}

func (c *Consumer) publishResult(ctx context.Context, result EvaluationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: ResultsStream(c.stream),
		Values: map[string]any{payloadField: string(data)},
	}).Err()
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.client.XAck(ctx, c.stream, c.groupID, msgID).Err(); err != nil {
		c.logger.Error().Err(err).Str("id", msgID).Msg("Failed to ACK message")
	}
}
