package utils

import (
	"context"
	"math"
	"time"
)

// ErrorClassifier reports whether err is worth another attempt.
type ErrorClassifier func(error) bool

type RetryOptions struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Classifier      ErrorClassifier
}

// DefaultRetryOptions suits short store operations on the request path.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:     3,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		Multiplier:      2.0,
	}
}

// Retry runs fn until it succeeds, the classifier rejects the error, the
// attempts run out or ctx is done. The last error from fn is returned.
func Retry(ctx context.Context, opts RetryOptions, fn func() error) error {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if opts.Classifier != nil && !opts.Classifier(err) {
			return err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Backoff(attempt, opts)):
		}
	}
	return lastErr
}

// Backoff returns the wait after the given attempt (1-based), capped at MaxInterval.
func Backoff(attempt int, opts RetryOptions) time.Duration {
	if attempt <= 1 {
		return opts.InitialInterval
	}
	interval := float64(opts.InitialInterval) * math.Pow(opts.Multiplier, float64(attempt-1))
	if opts.MaxInterval > 0 && interval > float64(opts.MaxInterval) {
		return opts.MaxInterval
	}
	return time.Duration(interval)
}
