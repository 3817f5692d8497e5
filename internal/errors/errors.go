package errors

import (
	stderrors "errors"
	"fmt"
)

// BibdexError is the structured error type for bibdex.
// It carries enough context for logging and for CLI presentation.
type BibdexError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Input, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *BibdexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BibdexError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BibdexError with the same code.
func (e *BibdexError) Is(target error) bool {
	if t, ok := target.(*BibdexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *BibdexError) WithDetail(key, value string) *BibdexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *BibdexError) WithSuggestion(suggestion string) *BibdexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new BibdexError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *BibdexError {
	return &BibdexError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a BibdexError from an existing error.
func Wrap(code string, err error) *BibdexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *BibdexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a file-related error.
func IOError(message string, cause error) *BibdexError {
	return New(ErrCodeFileNotFound, message, cause)
}

// InputError creates an error for malformed queries or selections.
func InputError(message string, cause error) *BibdexError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *BibdexError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal reports whether err, or any error it wraps, has fatal severity.
func IsFatal(err error) bool {
	var be *BibdexError
	if stderrors.As(err, &be) {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a BibdexError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var be *BibdexError
	if stderrors.As(err, &be) {
		return be.Code
	}
	return ""
}

// GetCategory extracts the category from a BibdexError in the chain.
func GetCategory(err error) Category {
	var be *BibdexError
	if stderrors.As(err, &be) {
		return be.Category
	}
	return ""
}
