package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/metrics"
)

// Operation is a fallible call; it must honour ctx
type Operation[T any] func(ctx context.Context) (T, error)

// temporary is implemented by errors that know whether a retry can succeed
type temporary interface {
	Temporary() bool
}

// IsRetryable reports whether err is a transient transport failure:
// an error reporting Temporary, a net.Error, or an expired deadline.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var tmp temporary
	if errors.As(err, &tmp) {
		if tmp.Temporary() {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// WithRetry executes op with exponential backoff. Each attempt runs under
// policy.CallTimeout; an attempt that hits it is retried, not treated as
// cancellation of the caller. Failures are returned as *TransportError tagged
// with label. Cancellation of ctx aborts immediately.
func WithRetry[T any](ctx context.Context, label string, policy Policy, op Operation[T]) (T, error) {
	var zero T
	logger := zerolog.Ctx(ctx)
	maxAttempts := policy.attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &TransportError{Label: label, Attempts: attempt - 1, Cause: err}
		}

		result, err := runAttempt(ctx, policy.CallTimeout, op)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("operation", label).
					Int("attempt", attempt).
					Msg("operation succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, &TransportError{Label: label, Attempts: attempt, Cause: err}
		}

		if !IsRetryable(err) {
			logger.Debug().
				Err(err).
				Str("operation", label).
				Int("attempt", attempt).
				Msg("non-retryable error, aborting")
			return zero, &TransportError{Label: label, Attempts: attempt, Cause: err}
		}

		if attempt == maxAttempts {
			break
		}

		delay := policy.CalculateDelay(attempt)
		metrics.RetriesTotal.WithLabelValues(label).Inc()
		logger.Warn().
			Err(err).
			Str("operation", label).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("retry_delay", delay).
			Msg("retrying operation after error")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &TransportError{Label: label, Attempts: attempt, Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	return zero, &TransportError{Label: label, Attempts: maxAttempts, Cause: lastErr}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := op(attemptCtx)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return result, err
}
