package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

var (
	ErrQuotaExceeded = errors.New("llm quota exceeded")
	ErrAuth          = errors.New("llm authentication failed")
	ErrUnavailable   = errors.New("llm model or service unavailable")
	ErrTimeout       = errors.New("llm call timed out")

	// ErrModelNotFound is an unavailable kind that retrying cannot fix.
	ErrModelNotFound = fmt.Errorf("%w: unknown model", ErrUnavailable)
)

// Error tags a provider failure with one of the sentinel kinds.
type Error struct {
	Kind     error
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Wrap tags err with kind. A nil kind returns err annotated with the provider only.
func Wrap(provider string, kind error, err error) error {
	if err == nil {
		return nil
	}
	if kind == nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindFromStatus maps an HTTP-equivalent status code to an error kind.
func KindFromStatus(status int) error {
	switch {
	case status == 429:
		return ErrQuotaExceeded
	case status == 401 || status == 403:
		return ErrAuth
	case status == 404:
		return ErrModelNotFound
	case status == 408:
		return ErrTimeout
	case status >= 500:
		return ErrUnavailable
	default:
		return nil
	}
}

// KindFromTransport classifies context and network failures.
func KindFromTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnavailable
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") {
		return ErrUnavailable
	}
	return nil
}

// IsRetryable reports whether a failure is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrModelNotFound) {
		return false
	}
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// Kind returns a stable short name for the error kind, or "unknown".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrModelNotFound):
		return "unknown_model"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}

// Guidance turns an error kind into text a user can act on.
func Guidance(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "The model provider rejected the request because the quota or rate limit was reached. Wait a minute and retry, or switch to a key with more quota."
	case errors.Is(err, ErrAuth):
		return "The model provider rejected the credentials. Check the API key or AWS credentials configured for this deployment."
	case errors.Is(err, ErrTimeout):
		return "The model did not answer in time. Retry the request; if it keeps happening raise LLM_TIMEOUT."
	case errors.Is(err, ErrModelNotFound):
		return "The configured model id is not known to the provider. Check the model id setting for this deployment."
	case errors.Is(err, ErrUnavailable):
		return "The model or service is unavailable. Check the configured model id and the provider status page."
	default:
		return ""
	}
}
