package resilience

import (
	"context"
	"math"
	"time"
)

// BackoffStrategy selects how the wait between attempts grows
type BackoffStrategy int

const (
	BackoffExponential BackoffStrategy = iota // InitialBackoff * Multiplier^(n-1)
	BackoffLinear                             // InitialBackoff * n
)

// Sleeper waits for d or until ctx is done, whichever comes first
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts       int           // Maximum number of attempts, including the first
	InitialBackoff    time.Duration // Base backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration, zero means uncapped
	BackoffMultiplier float64       // Multiplier for exponential backoff
	Strategy          BackoffStrategy

	// OnRetry is called after a failed attempt that will be retried
	OnRetry func(attempt int, err error, wait time.Duration)

	// Sleep defaults to SleepContext; tests substitute a recorder
	Sleep Sleeper
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Strategy:          BackoffExponential,
	}
}

// LinearRetryConfig waits base, 2*base, 3*base... between attempts
func LinearRetryConfig(maxAttempts int, base time.Duration) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: base,
		Strategy:       BackoffLinear,
	}
}

// RetryableFunc is a function that can be retried. attempt starts at 1.
type RetryableFunc func(attempt int) error

// IsRetryableError checks if an error is retryable
type IsRetryableError func(error) bool

// Retry executes fn until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is cancelled while waiting.
// The last attempt's error is returned on exhaustion.
func Retry(ctx context.Context, fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	sleep := config.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil // Success
		}

		lastErr = err

		// Check if error is retryable
		if isRetryable != nil && !isRetryable(err) {
			return err // Non-retryable error
		}

		// Don't sleep after the last attempt
		if attempt == config.MaxAttempts {
			break
		}

		wait := config.Delay(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

// Delay returns the wait after the given failed attempt (1-based)
func (c *RetryConfig) Delay(attempt int) time.Duration {
	var backoff time.Duration
	switch c.Strategy {
	case BackoffLinear:
		backoff = c.InitialBackoff * time.Duration(attempt)
	default:
		multiplier := c.BackoffMultiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
		backoff = CalculateBackoff(attempt-1, c.InitialBackoff, c.MaxBackoff, multiplier)
	}

	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		return c.MaxBackoff
	}
	return backoff
}

// CalculateBackoff calculates the exponential backoff duration for a given zero-based attempt
func CalculateBackoff(attempt int, initialBackoff time.Duration, maxBackoff time.Duration, multiplier float64) time.Duration {
	backoff := time.Duration(float64(initialBackoff) * math.Pow(multiplier, float64(attempt)))
	if maxBackoff > 0 && backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
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
