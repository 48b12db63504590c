package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// InvokeWithRetry calls invoke until it succeeds, a non-retryable error comes
// back, attempts run out or ctx is done.
func InvokeWithRetry(ctx context.Context, cfg RetryConfig, request LLMRequest, invoke func(context.Context, LLMRequest) (*LLMResponse, error)) (*LLMResponse, error) {
	attempts := max(cfg.MaxRetries, 1)
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		response, err := invoke(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return nil, fmt.Errorf("non-retryable error: %w", err)
		}

		if attempt == attempts-1 {
			break
		}

		delay := calculateBackoff(attempt, cfg.InitialDelay, cfg.MaxDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries %d exceeded: %w", attempts, lastErr)
}

func calculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	backoff := float64(initialDelay) * math.Pow(2, float64(attempt))

	if maxDelay > 0 && backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	jitter := backoff * 0.2 * (2*rand.Float64() - 1) // Random value between -20% and +20%
	backoff += jitter

	return time.Duration(backoff)
}
