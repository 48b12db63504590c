package llm

import (
	"context"
	"errors"
	"time"
)

type timeoutClient struct {
	next    LLMClient
	timeout time.Duration
}

// WithTimeout bounds every call of next by d. An expired deadline surfaces as ErrTimeout.
func WithTimeout(next LLMClient, d time.Duration) LLMClient {
	if d <= 0 {
		return next
	}
	return &timeoutClient{next: next, timeout: d}
}

func (c *timeoutClient) InvokeModel(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.next.InvokeModel(ctx, request)
	return resp, asTimeout(ctx, err)
}

// InvokeModelWithRetry gives each attempt its own deadline.
func (c *timeoutClient) InvokeModelWithRetry(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	return InvokeWithRetry(ctx, DefaultRetryConfig(), request, c.InvokeModel)
}

func asTimeout(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Provider: "timeout", Err: err}
	}
	return err
}
