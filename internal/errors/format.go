package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

func asBibdex(err error) *BibdexError {
	var be *BibdexError
	if stderrors.As(err, &be) {
		return be
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForUser returns a user-friendly error message.
// If debug is true, the cause and details are included.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	var be *BibdexError
	if !stderrors.As(err, &be) {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(be.Message)
	sb.WriteString("\n")

	if be.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(be.Suggestion)
		sb.WriteString("\n")
	}

	if debug {
		if be.Cause != nil {
			fmt.Fprintf(&sb, "\nCause: %v\n", be.Cause)
		}
		for k, v := range be.Details {
			fmt.Fprintf(&sb, "  %s: %s\n", k, v)
		}
	}

	fmt.Fprintf(&sb, "\n[%s]", be.Code)
	return sb.String()
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	be := asBibdex(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", be.Message)
	if be.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", be.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", be.Code)
	return sb.String()
}

type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	be := asBibdex(err)
	je := jsonError{
		Code:       be.Code,
		Message:    be.Message,
		Category:   string(be.Category),
		Severity:   string(be.Severity),
		Details:    be.Details,
		Suggestion: be.Suggestion,
	}
	if be.Cause != nil {
		je.Cause = be.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog flattens an error into key-value pairs for slog.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var be *BibdexError
	if !stderrors.As(err, &be) {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": be.Code,
		"message":    be.Message,
		"category":   string(be.Category),
		"severity":   string(be.Severity),
	}
	if be.Cause != nil {
		result["cause"] = be.Cause.Error()
	}
	if be.Suggestion != "" {
		result["suggestion"] = be.Suggestion
	}
	for k, v := range be.Details {
		result["detail_"+k] = v
	}
	return result
}
