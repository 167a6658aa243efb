package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/rueidis"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	maxElapsedTime  = 20 * time.Second
	initialInterval = 250 * time.Millisecond
	maxInterval     = 4 * time.Second
	maxRetries      = uint64(4)
)

// IsRetryableError reports whether err is a transient failure of a networked backend.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, ErrNotExist) {
		return false
	}

	// The caller's context is done; another attempt cannot succeed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		switch code := pgerr.Field('C'); {
		case strings.HasPrefix(code, "08"), // connection exceptions
			strings.HasPrefix(code, "53"), // insufficient resources
			strings.HasPrefix(code, "57"), // operator intervention
			code == "40001",               // serialization_failure
			code == "40P01",               // deadlock_detected
			code == "55P03":               // lock_not_available
			return true
		default:
			return false
		}
	}

	if rueidis.IsRedisNil(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "EOF") ||
		strings.HasPrefix(msg, "LOADING") ||
		strings.HasPrefix(msg, "TRYAGAIN")
}

// withRetry runs operation with exponential backoff until it succeeds, fails
// with a non-retryable error or the retry budget runs out.
func withRetry[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	err := backoff.Retry(func() error {
		var err error

		result, err = operation(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}

		lastErr = err

		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			return result, fmt.Errorf("operation failed after retries: %w", lastErr)
		}

		return result, err
	}

	return result, nil
}

// withRetryNoResult is withRetry for operations that only return an error.
func withRetryNoResult(ctx context.Context, operation func(context.Context) error) error {
	_, err := withRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})

	return err
}
