// Package retry runs a call with bounded exponential backoff.
//
// The wait before retry n (0-based) is BackoffFactor * 2^n, so a factor of
// 0.5s with three attempts waits 0.5s then 1s. On final failure the last
// error is returned unchanged, so callers can still match its kind.
//
//	resp, err := retry.DoValue(ctx, retry.DefaultConfig(), func() (*Response, error) {
//	    return req.Do(ctx, spec)
//	})
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/maxvaer/wafpierce/internal/scanerr"
)

// maxDelay bounds a single wait so large attempt counts cannot overflow.
const maxDelay = time.Minute

// Config controls retry behaviour.
type Config struct {
	MaxAttempts   int           // Total attempts including the first. <= 0 is treated as 1.
	BackoffFactor time.Duration // Base of the exponential wait.
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every network-category error.
	Retryable func(error) bool
	Logger    *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns 3 attempts with a 0.5s backoff factor, retrying
// network errors.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		BackoffFactor: 500 * time.Millisecond,
	}
}

// OnKinds returns a Retryable predicate accepting only the listed kinds.
func OnKinds(kinds ...scanerr.Kind) func(error) bool {
	return func(err error) bool {
		for _, k := range kinds {
			if errors.Is(err, k) {
				return true
			}
		}
		return false
	}
}

// StopError marks an error as permanent.
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so that Do returns it without further attempts.
func Stop(err error) error {
	return &StopError{Err: err}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoValue(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoValue is Do for calls that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = scanerr.IsNetwork
	}
	sleep := cfg.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		var stop *StopError
		if errors.As(err, &stop) {
			return zero, stop.Err
		}
		if !retryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			wait := CalcDelay(cfg.BackoffFactor, attempt)
			logger.Debug("Attempt failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("wait", wait),
				zap.Error(err))
			if err := sleep(ctx, wait); err != nil {
				return zero, err
			}
		} else {
			logger.Debug("All attempts failed",
				zap.Int("max_attempts", attempts),
				zap.Error(err))
		}
	}
	return zero, lastErr
}

// CalcDelay returns factor * 2^attempt, capped at one minute.
func CalcDelay(factor time.Duration, attempt int) time.Duration {
	if factor <= 0 || attempt < 0 {
		return 0
	}
	d := float64(factor) * math.Pow(2, float64(attempt))
	if math.IsInf(d, 0) || d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
