package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapSourceError wraps an error as a SourceError if it isn't already one
func WrapSourceError(err error, code ErrorCode, source, message string) *SourceError {
	if err == nil {
		return nil
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		if srcErr.Context == nil {
			srcErr.Context = make(map[string]interface{})
		}
		srcErr.Context["wrapped_message"] = message
		if source != "" && srcErr.Source == "" {
			srcErr.Source = source
		}
		return srcErr
	}

	return NewSourceError(code, source, message, err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsSourceError checks if an error is a SourceError with specific code
func IsSourceError(err error, code ErrorCode) bool {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Code == code
	}
	return false
}

// IsCancelled reports whether err is a cancellation failure, either tagged as
// such or caused by a cancelled context.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return IsSourceError(err, ErrCodeCancelled) || errors.Is(err, context.Canceled)
}

// Code returns the ErrorCode of err, classifying untagged errors.
func Code(err error) ErrorCode {
	var srcErr *SourceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &srcErr):
		return srcErr.Code
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeFetch
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"rate limit",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Severity
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "panic"), strings.Contains(errStr, "fatal"):
		return SeverityCritical
	case strings.Contains(errStr, "failed"), strings.Contains(errStr, "error"):
		return SeverityHigh
	case strings.Contains(errStr, "warning"):
		return SeverityMedium
	}

	return SeverityLow
}
