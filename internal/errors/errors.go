// Package errors provides structured error types for the cellcount pipeline.
// Every error carries a category, a code, a message and optional details so
// callers can tell fatal conditions from per-record integrity failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryIntegrity  ErrorCategory = "INTEGRITY"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInputNotFound = "INPUT_NOT_FOUND"
	CodeMissingColumn = "MISSING_COLUMN"
	CodeMalformedRow  = "MALFORMED_ROW"
	CodeInvalidNumber = "INVALID_NUMBER"

	// Schema codes
	CodeSchemaInit = "INIT_FAILED"

	// Integrity codes
	CodeSubjectConflict     = "SUBJECT_CONFLICT"
	CodeDuplicateSample     = "DUPLICATE_SAMPLE"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"

	// Storage codes
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeUploadFailed     = "UPLOAD_FAILED"
	CodeDownloadFailed   = "DOWNLOAD_FAILED"
	CodeDeleteFailed     = "DELETE_FAILED"
	CodeObjectNotFound   = "OBJECT_NOT_FOUND"

	// Query codes
	CodeQueryFailed = "QUERY_FAILED"

	// Config codes
	CodeInvalidGroupBy = "INVALID_GROUP_BY"
	CodeInvalidConfig  = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsRecoverable reports whether err is a per-record integrity failure.
// Recoverable errors skip a single record; everything else aborts the run.
func IsRecoverable(err error) bool {
	return GetCategory(err) == ErrCategoryIntegrity
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an *Error.
func GetCategory(err error) ErrorCategory {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an *Error.
func GetCode(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *Error {
	return New(ErrCategoryValidation, code, message)
}

func NewSchemaError(message string, cause error) *Error {
	return Wrap(ErrCategorySchema, CodeSchemaInit, message, cause)
}

func NewIntegrityError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryIntegrity, code, message, cause)
}

func NewStorageError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewQueryError(message string, cause error) *Error {
	return Wrap(ErrCategoryQuery, CodeQueryFailed, message, cause)
}

func NewConfigError(code, message string) *Error {
	return New(ErrCategoryConfig, code, message)
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
