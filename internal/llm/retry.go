package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/api/googleapi"
)

// baseBackoff is the first retry delay; it doubles on each attempt.
var baseBackoff = time.Second

// IsRetryable reports whether err is a transient provider failure
// (rate limiting or a server-side error).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

type retrying struct {
	Provider
	maxRetries int
}

// WithRetry wraps p so retryable failures are retried up to maxRetries times
// with exponential backoff. maxRetries <= 0 returns p unchanged.
func WithRetry(p Provider, maxRetries int) Provider {
	if maxRetries <= 0 {
		return p
	}
	return &retrying{Provider: p, maxRetries: maxRetries}
}

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	var (
		text    string
		lastErr error
	)
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		text, lastErr = r.Provider.Generate(ctx, req)
		if lastErr == nil {
			return text, nil
		}
		if !IsRetryable(lastErr) {
			return "", lastErr
		}
		if attempt < r.maxRetries {
			backoff := baseBackoff << uint(attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", lastErr
}
