// Package errors provides structured error handling for bibdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: State and IO errors (catalog files, index directory, lock)
//   - 4XX: Input errors (bibliography, queries, selections)
//   - 5XX: Internal errors (index, search, extraction)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, state and lock errors.
	CategoryIO Category = "IO"
	// CategoryInput indicates malformed user or bibliography input.
	CategoryInput Category = "INPUT"
	// CategoryInternal indicates engine and extraction failures.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current command.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation, the caller may continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a skipped item.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// State and IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeStateCorrupt   = "ERR_203_STATE_CORRUPT"
	ErrCodeStateWrite     = "ERR_204_STATE_WRITE"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"
	ErrCodeIndexOpen      = "ERR_206_INDEX_OPEN"
	ErrCodeLocked         = "ERR_207_LOCKED"

	// Input errors (400-499)
	ErrCodeBibParse      = "ERR_401_BIB_PARSE"
	ErrCodeInvalidQuery  = "ERR_402_INVALID_QUERY"
	ErrCodeInvalidChoice = "ERR_403_INVALID_CHOICE"
	ErrCodeInvalidPath   = "ERR_404_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeIndexFailed   = "ERR_502_INDEX_FAILED"
	ErrCodeSearchFailed  = "ERR_503_SEARCH_FAILED"
	ErrCodeExtractFailed = "ERR_504_EXTRACT_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "1" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryInput
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeStateWrite, ErrCodeIndexOpen, ErrCodeLocked:
		return SeverityFatal
	case ErrCodeExtractFailed, ErrCodeStateCorrupt:
		return SeverityWarning
	}
	return SeverityError
}
