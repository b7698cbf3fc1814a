package errors

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []ErrorCode{
			ErrCodeNetwork,
			ErrCodeTimeout,
		},
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func() error

// backOff returns the delay sequence between attempts, without jitter.
func (c *RetryConfig) backOff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.InitialDelay),
		backoff.WithMaxInterval(c.MaxDelay),
		backoff.WithMultiplier(c.Multiplier),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
}

func isRetryableError(err error, retryableCodes []ErrorCode) bool {
	var srcErr *SourceError
	if As(err, &srcErr) {
		for _, code := range retryableCodes {
			if srcErr.Code == code {
				return true
			}
		}
		return srcErr.IsRetryable()
	}

	return IsRetryable(err)
}

// RetryOperation represents an operation that can be retried
type RetryOperation struct {
	Name      string
	Fn        RetryFunc
	Config    *RetryConfig
	OnRetry   func(attempt int, err error)
	OnSuccess func()
	OnFailure func(err error)
}

// Execute runs the retry operation. Context cancellation is reported as a
// cancellation failure so callers can tell shutdown apart from a broken source.
func (op *RetryOperation) Execute(ctx context.Context) error {
	if op.Config == nil {
		op.Config = DefaultRetryConfig()
	}

	var lastErr error
	delays := op.Config.backOff()

	for attempt := 1; attempt <= op.Config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return op.fail(NewCancelledError("", err))
		}

		lastErr = op.Fn()
		if lastErr == nil {
			if op.OnSuccess != nil {
				op.OnSuccess()
			}
			return nil
		}
		if !isRetryableError(lastErr, op.Config.RetryableErrors) {
			return op.fail(lastErr)
		}
		if attempt == op.Config.MaxAttempts {
			break
		}

		if op.OnRetry != nil {
			op.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(delays.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return op.fail(NewCancelledError("", ctx.Err()))
		case <-timer.C:
		}
	}

	return op.fail(WrapSourceError(
		lastErr,
		ErrCodeFetch,
		"",
		"operation '"+op.Name+"' failed after retries",
	).WithContext("attempts", op.Config.MaxAttempts))
}

func (op *RetryOperation) fail(err error) error {
	if op.OnFailure != nil {
		op.OnFailure(err)
	}
	return err
}
