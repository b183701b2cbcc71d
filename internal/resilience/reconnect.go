package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReconnectConfig holds configuration for reconnection logic
type ReconnectConfig struct {
	MaxAttempts int           // Maximum number of reconnection attempts
	Backoff     time.Duration // Backoff duration after the first failure
	Multiplier  float64       // Backoff multiplier for exponential backoff
	MaxBackoff  time.Duration // Maximum backoff duration
}

// DefaultReconnectConfig returns a default reconnection configuration
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 5,
		Backoff:     1 * time.Second,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}

// ReconnectFunc is a function that attempts to reconnect
type ReconnectFunc func() error

// Reconnect attempts to reconnect with exponential backoff until fn succeeds,
// attempts run out or ctx is cancelled.
func Reconnect(ctx context.Context, logger zerolog.Logger, fn ReconnectFunc, config *ReconnectConfig) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}

	retry := &RetryConfig{
		MaxAttempts:       config.MaxAttempts,
		InitialBackoff:    config.Backoff,
		MaxBackoff:        config.MaxBackoff,
		BackoffMultiplier: config.Multiplier,
		Strategy:          BackoffExponential,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", config.MaxAttempts).
				Dur("backoff", wait).
				Msg("Reconnection attempt failed")
		},
	}

	attempts := 0
	err := Retry(ctx, func(attempt int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts = attempt
		return fn()
	}, retry, func(error) bool { return ctx.Err() == nil })
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to reconnect after %d attempts: %w", config.MaxAttempts, err)
	}

	logger.Info().Int("attempts", attempts).Msg("Reconnection successful")
	return nil
}
