package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeValidation indicates input validation errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork indicates transport errors while talking to a source
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeDatabase indicates database operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeFetch indicates a source fetch that did not produce a list
	ErrCodeFetch ErrorCode = "FETCH"

	// ErrCodeParse indicates a source returned data that could not be decoded
	ErrCodeParse ErrorCode = "PARSE"

	// ErrCodeCancelled indicates a fetch aborted by shutdown or interruption
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SourceError is an error attributed to a validator list source (or to the
// daemon itself when Source is empty).
type SourceError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Source   string                 `json:"source,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// NewSourceError creates a new SourceError
func NewSourceError(code ErrorCode, source, message string, cause error) *SourceError {
	return &SourceError{
		Code:     code,
		Message:  message,
		Source:   source,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *SourceError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Source != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Source, e.Code, e.Severity, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, msg)
}

// Unwrap returns the underlying cause
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *SourceError) WithContext(key string, value interface{}) *SourceError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable
func (e *SourceError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeTimeout:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeDatabase:
		return SeverityHigh
	case ErrCodeFetch, ErrCodeParse, ErrCodeNetwork, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeValidation, ErrCodeConfig:
		return SeverityLow
	case ErrCodeCancelled:
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// ErrorGroup represents a collection of errors
type ErrorGroup struct {
	Errors []error
}

// NewErrorGroup creates a new error group
func NewErrorGroup() *ErrorGroup {
	return &ErrorGroup{
		Errors: make([]error, 0),
	}
}

// Add adds an error to the group
func (eg *ErrorGroup) Add(err error) {
	if err != nil {
		eg.Errors = append(eg.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (eg *ErrorGroup) HasErrors() bool {
	return len(eg.Errors) > 0
}

// ErrorOrNil returns the group as an error, or nil when it is empty.
func (eg *ErrorGroup) ErrorOrNil() error {
	if !eg.HasErrors() {
		return nil
	}
	return eg
}

// Error implements the error interface
func (eg *ErrorGroup) Error() string {
	if len(eg.Errors) == 0 {
		return ""
	}
	if len(eg.Errors) == 1 {
		return eg.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(eg.Errors), eg.Errors[0])
}

// Common error constructors

// NewValidationError creates a validation error
func NewValidationError(source, message string) *SourceError {
	return NewSourceError(ErrCodeValidation, source, message, nil)
}

// NewNetworkError creates a network error
func NewNetworkError(source, message string, cause error) *SourceError {
	return NewSourceError(ErrCodeNetwork, source, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(message string, cause error) *SourceError {
	return NewSourceError(ErrCodeDatabase, "", message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(source, message string) *SourceError {
	return NewSourceError(ErrCodeConfig, source, message, nil)
}

// NewFetchError creates a fetch failure
func NewFetchError(source, message string, cause error) *SourceError {
	return NewSourceError(ErrCodeFetch, source, message, cause)
}

// NewParseError creates a parse failure
func NewParseError(source, message string, cause error) *SourceError {
	return NewSourceError(ErrCodeParse, source, message, cause)
}

// NewCancelledError creates a cancellation failure
func NewCancelledError(source string, cause error) *SourceError {
	return NewSourceError(ErrCodeCancelled, source, "fetch cancelled", cause)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(source, message string, cause error) *SourceError {
	return NewSourceError(ErrCodeTimeout, source, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(source, message string, cause error) *SourceError {
	return NewSourceError(ErrCodeInternal, source, message, cause)
}
