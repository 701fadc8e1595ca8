package llm

import (
	"context"
	"time"

	"swarmcap/internal/logging"
)

// DefaultRetryBackoff is the fixed sleep between attempts after a transient error.
const DefaultRetryBackoff = 10 * time.Second

// RetryClient retries transient failures with a fixed backoff until the
// request succeeds or the context is cancelled. Non-transient errors are
// returned immediately.
type RetryClient struct {
	inner   Client
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a RetryClient.
type RetryOption func(*RetryClient)

// WithBackoff overrides the fixed backoff.
func WithBackoff(d time.Duration) RetryOption {
	return func(c *RetryClient) { c.backoff = d }
}

// WithSleeper replaces the sleep function. Tests use it to avoid real waits.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(c *RetryClient) { c.sleep = sleep }
}

// NewRetryClient wraps inner with unbounded fixed-backoff retries.
func NewRetryClient(inner Client, opts ...RetryOption) *RetryClient {
	c := &RetryClient{
		inner:   inner,
		backoff: DefaultRetryBackoff,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements Client.
func (c *RetryClient) Complete(ctx context.Context, req Request) (string, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reply, err := c.inner.Complete(ctx, req)
		if err == nil {
			if attempt > 1 {
				logging.API("completion succeeded after %d attempts", attempt)
			}
			return reply, nil
		}
		if !IsTransient(err) {
			logging.APIError("completion failed: %v", err)
			return "", err
		}

		logging.APIWarn("attempt %d failed (%v), retrying in %s", attempt, err, c.backoff)
		if err := c.sleep(ctx, c.backoff); err != nil {
			return "", err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
