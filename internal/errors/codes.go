// Package errors provides structured error handling for clipgrep.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, store)
//   - 3XX: Encoder service errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and store I/O errors.
	CategoryIO Category = "IO"
	// CategoryEncoder indicates encoder service errors.
	CategoryEncoder Category = "ENCODER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort the run.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileStat    = "ERR_201_FILE_STAT"
	ErrCodeImageDecode = "ERR_202_IMAGE_DECODE"
	ErrCodeFileHash    = "ERR_203_FILE_HASH"
	ErrCodeStoreRead   = "ERR_204_STORE_READ"
	ErrCodeStoreWrite  = "ERR_205_STORE_WRITE"
	ErrCodeIndexLocked = "ERR_206_INDEX_LOCKED"

	// Encoder errors (300-399)
	ErrCodeEncoderUnavailable = "ERR_301_ENCODER_UNAVAILABLE"
	ErrCodeEncodeBatch        = "ERR_302_ENCODE_BATCH"
	ErrCodeEncodeQuery        = "ERR_303_ENCODE_QUERY"

	// Validation errors (400-499)
	ErrCodeInvalidQuery      = "ERR_401_INVALID_QUERY"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidPath       = "ERR_403_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryEncoder
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Store-level failures abort the current run; everything else is
// recovered at file or batch granularity.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreRead, ErrCodeStoreWrite, ErrCodeIndexLocked:
		return SeverityFatal
	case ErrCodeFileStat, ErrCodeImageDecode, ErrCodeFileHash, ErrCodeEncodeBatch:
		return SeverityWarning
	}
	return SeverityError
}
