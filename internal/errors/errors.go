package errors

import (
	"fmt"
)

// ClipError is the structured error type for clipgrep.
// It provides context for error handling, logging, and user presentation.
type ClipError struct {
	// Code is the unique error code (e.g., "ERR_202_IMAGE_DECODE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Encoder, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *ClipError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ClipError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ClipError.
func (e *ClipError) Is(target error) bool {
	if t, ok := target.(*ClipError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ClipError) WithDetail(key, value string) *ClipError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new ClipError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *ClipError {
	return &ClipError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a ClipError from an existing error.
// The error's message becomes the ClipError message.
func Wrap(code string, err error) *ClipError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// DecodeError creates a per-file image decode error.
func DecodeError(path string, cause error) *ClipError {
	return New(ErrCodeImageDecode, fmt.Sprintf("cannot decode image %s", path), cause).
		WithDetail("path", path)
}

// HashError creates a per-file content hashing error.
func HashError(path string, cause error) *ClipError {
	return New(ErrCodeFileHash, fmt.Sprintf("cannot hash %s", path), cause).
		WithDetail("path", path)
}

// StatError creates a per-file metadata error.
func StatError(path string, cause error) *ClipError {
	return New(ErrCodeFileStat, fmt.Sprintf("cannot stat %s", path), cause).
		WithDetail("path", path)
}

// StoreReadError creates a run-fatal store lookup error.
func StoreReadError(message string, cause error) *ClipError {
	return New(ErrCodeStoreRead, message, cause)
}

// StoreWriteError creates a run-fatal store mutation error.
func StoreWriteError(message string, cause error) *ClipError {
	return New(ErrCodeStoreWrite, message, cause)
}

// EncodeBatchError creates a per-batch encoder failure.
func EncodeBatchError(batchSize int, cause error) *ClipError {
	return New(ErrCodeEncodeBatch, fmt.Sprintf("encoding batch of %d images failed", batchSize), cause).
		WithDetail("batch_size", fmt.Sprintf("%d", batchSize))
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*ClipError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ClipError.
// Returns empty string if not a ClipError.
func GetCode(err error) string {
	if ce, ok := err.(*ClipError); ok {
		return ce.Code
	}
	return ""
}
