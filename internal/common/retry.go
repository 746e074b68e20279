package common

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryableFunc is a single attempt of an operation. Returning nil stops the loop.
type RetryableFunc func(ctx context.Context) error

// Config holds the configuration for retry behavior.
type Config struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	retryIf      func(error) bool
	onRetry      func(attempt int, delay time.Duration, err error)
}

// Option is a functional option for configuring retry behavior.
type Option func(*Config)

// WithMaxRetries sets the maximum number of retry attempts.
// Default is 3 retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry. Default is 1 second.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between retries. Default is 30 seconds.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithMultiplier sets the exponential backoff multiplier. Default is 2.0.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithRetryIf limits retries to errors accepted by fn.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		c.retryIf = fn
	}
}

// WithOnRetry registers a hook called before each backoff sleep.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *Config) {
		c.onRetry = fn
	}
}

func defaultConfig() *Config {
	return &Config{
		maxRetries:   3,
		initialDelay: 1 * time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, the retry budget is spent, fn returns a
// Permanent error, or ctx is done. Delays grow exponentially and are capped
// at the configured maximum.
//
//	err := common.Do(ctx, func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	}, common.WithMaxRetries(5), common.WithInitialDelay(time.Second))
func Do(ctx context.Context, fn RetryableFunc, opts ...Option) error {
	if fn == nil {
		return errors.New("retry: function cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateDelay(attempt, cfg.initialDelay, cfg.maxDelay, cfg.multiplier)
			if cfg.onRetry != nil {
				cfg.onRetry(attempt, delay, lastErr)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted during backoff (attempt %d/%d): %w", attempt, cfg.maxRetries, ctx.Err())
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if cfg.retryIf != nil && !cfg.retryIf(err) {
			return err
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, ctx.Err())
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.maxRetries+1, lastErr)
}

// calculateDelay returns initialDelay * multiplier^(attempt-1), capped at maxDelay.
func calculateDelay(attempt int, initialDelay, maxDelay time.Duration, multiplier float64) time.Duration {
	delay := float64(initialDelay) * math.Pow(multiplier, float64(attempt-1))
	if delay > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(delay)
}
