package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"tailorcv/internal/errcode"
)

// withRetry runs call up to maxRetries+1 times with exponential backoff
// (base delay doubles per attempt). Only retryable failures (429 and 5xx,
// plus transient transport errors) are retried; other client errors fail
// immediately. Retries are sequential, never concurrent.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, logger *slog.Logger, call func(context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			logger.Info("retrying model call",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", maxRetries),
				slog.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("canceled while waiting to retry: %w", ctx.Err())
			}
		}

		text, err := call(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

// isRetryable classifies provider failures. HTTP 429 and 5xx are retryable;
// other 4xx are not. Unknown transport-level failures are retried when the
// message looks transient.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "context deadline exceeded") {
		return false
	}

	if apiErr, ok := asAPIError(err); ok {
		switch apiErr.Code {
		case 429:
			return true
		case 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}

	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") ||
		strings.Contains(msg, "EOF")
}

// mapProviderError 将上游错误归入错误分类；原始错误保留在 %w 链里仅供日志使用。
func mapProviderError(err error) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := asAPIError(err); ok {
		switch {
		case apiErr.Code == 429:
			return fmt.Errorf("%w: %w", errcode.ErrRateLimited, err)
		case apiErr.Code == 401 || apiErr.Code == 403:
			return fmt.Errorf("%w: %w", errcode.ErrUnauthorized, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %w", errcode.ErrServiceUnavailable, err)
		}
	}

	return fmt.Errorf("%w: %w", errcode.ErrServiceUnavailable, err)
}

func asAPIError(err error) (*genai.APIError, bool) {
	for err != nil {
		if apiErr, ok := err.(*genai.APIError); ok {
			return apiErr, true
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
