// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls Retry.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int

	// BaseDelay is multiplied by 2^attempt between attempts.
	BaseDelay time.Duration

	// MaxDelay caps the exponential part. Zero means uncapped.
	MaxDelay time.Duration

	// MaxJitter adds a uniform random delay in [0, MaxJitter).
	MaxJitter time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil retries only transient channel errors.
	Retryable func(error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Jitter overrides the random source. Used by tests.
	Jitter func(max time.Duration) time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 1s base delay and up to 1s of jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		MaxJitter: time.Second,
		Retryable: IsTransient,
	}
}

// Backoff returns the wait after the given 0-based failed attempt.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt) //nolint:gosec // attempt is small and non-negative
	if delay < 0 || (p.MaxDelay > 0 && delay > p.MaxDelay) {
		delay = p.MaxDelay
	}
	if p.MaxJitter > 0 {
		delay += p.jitter(p.MaxJitter)
	}
	return delay
}

func (p *RetryPolicy) jitter(maxJitter time.Duration) time.Duration {
	if p.Jitter != nil {
		return p.Jitter(maxJitter)
	}
	//nolint:gosec // G404: non-cryptographic jitter for backoff timing
	return time.Duration(rand.Int64N(int64(maxJitter)))
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It returns the number of calls made and the last error,
// unwrapped, so callers can classify it. Waits honor ctx.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) (int, error) {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return attempt, err
			}
			return attempt, ctxErr
		}

		err = fn(ctx, attempt)
		if err == nil {
			return attempt + 1, nil
		}
		if !retryable(err) || attempt == policy.Attempts-1 {
			return attempt + 1, err
		}

		delay := policy.Backoff(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, err
		case <-timer.C:
		}
	}
	return policy.Attempts, err
}
