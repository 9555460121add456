package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how calls to external services are retried.
// Delays grow exponentially from BaseDelay up to MaxDelay, and each
// wait is drawn uniformly from (0, delay] so concurrent document
// workers do not retry in lockstep.
type RetryConfig struct {
	// Attempts is the total number of tries including the first.
	// 1 disables retries.
	Attempts int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// ShouldRetry decides whether an error is worth another attempt.
	// Nil means IsTransient.
	ShouldRetry func(error) bool

	// OnRetry observes each scheduled retry before its wait starts.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryConfig suits the vision backend: requests carry full page
// images and the service sheds load with 429/529 responses, so waits
// start at whole seconds rather than milliseconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  4,
		BaseDelay: 2 * time.Second,
		MaxDelay:  45 * time.Second,
	}
}

// DoVal runs fn until it succeeds, the error stops being retryable, the
// attempt budget is spent, or ctx is done. The last error is returned
// as-is so callers can still classify it.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= cfg.Attempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}

		wait := jitteredWait(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// Do is DoVal for calls without a result.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// jitteredWait draws the wait before the given retry: full jitter under
// an exponential ceiling, never zero.
func jitteredWait(cfg RetryConfig, attempt int) time.Duration {
	ceiling := cfg.BaseDelay << (attempt - 1)
	if ceiling <= 0 || ceiling > cfg.MaxDelay {
		ceiling = cfg.MaxDelay
	}
	return time.Duration(rand.Int64N(int64(ceiling))) + 1
}

// RetryLogger returns an OnRetry hook that reports each scheduled retry
// for one stage of the document pipeline.
func RetryLogger(stage string) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("retrying "+stage,
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
