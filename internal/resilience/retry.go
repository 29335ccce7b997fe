// Package resilience wraps external calls with bounded retry. Providers
// use it around search and LLM requests; from the pipeline's point of
// view a call either succeeds or fails once, after retries are spent.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first.
	// A value of 1 means no retries. Default: 3.
	Attempts int

	// BaseDelay is the wait before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the doubling backoff. Default: 10s.
	MaxDelay time.Duration

	// Jitter widens each wait by a random fraction of itself
	// (0 = none, 0.5 = up to ±50%). Default: 0.25.
	Jitter float64

	// Retryable overrides the default transient-error check when set.
	Retryable func(err error) bool

	// OnRetry runs before each retry sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy returns the retry policy used for provider calls.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Jitter:    0.25,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Do runs fn until it succeeds, fails non-transiently, or attempts run
// out. Context cancellation stops the loop immediately, including during
// a backoff sleep.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error

	delay := p.BaseDelay
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts {
			break
		}

		wait := delay
		if p.Jitter > 0 {
			span := float64(wait) * p.Jitter
			wait += time.Duration((rand.Float64()*2 - 1) * span)
			if wait < 0 {
				wait = 0
			}
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}

		if delay *= 2; delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return zero, lastErr
}

// LogRetries returns an OnRetry callback that logs each attempt.
func LogRetries(service, operation string) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
