package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the one retry/backoff policy shared by every upstream
// call site. Retries cover transient failures only; callers mark
// non-retryable errors permanent via Permanent.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryPolicy{
		MaxRetries:      uint64(maxRetries),
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Do runs op with exponential backoff, bounded by the policy's retry count
// and the context.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx))
}

// Permanent wraps an error so the policy stops retrying it.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
