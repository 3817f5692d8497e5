package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBibdexError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an underlying error
	cause := errors.New("permission denied")

	// When: wrapping it
	err := New(ErrCodeStateWrite, "failed to save catalog", cause)

	// Then: the cause is reachable
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestBibdexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigInvalid, "bad limit", "[ERR_102_CONFIG_INVALID] bad limit"},
		{"state", ErrCodeStateWrite, "disk full", "[ERR_204_STATE_WRITE] disk full"},
		{"input", ErrCodeBibParse, "unexpected }", "[ERR_401_BIB_PARSE] unexpected }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestBibdexError_Is_MatchesByCode(t *testing.T) {
	a := New(ErrCodeLocked, "held by pid 1", nil)
	b := New(ErrCodeLocked, "held by pid 2", nil)
	c := New(ErrCodeConfigInvalid, "x", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigNotFound, CategoryConfig, SeverityError},
		{ErrCodeStateWrite, CategoryIO, SeverityFatal},
		{ErrCodeStateCorrupt, CategoryIO, SeverityWarning},
		{ErrCodeLocked, CategoryIO, SeverityFatal},
		{ErrCodeInvalidChoice, CategoryInput, SeverityError},
		{ErrCodeExtractFailed, CategoryInternal, SeverityWarning},
		{"BOGUS", CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "m", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail_Chains(t *testing.T) {
	err := New(ErrCodeFileNotFound, "missing", nil).
		WithDetail("path", "/tmp/a.bib").
		WithSuggestion("check --bib-file")

	assert.Equal(t, "/tmp/a.bib", err.Details["path"])
	assert.Equal(t, "check --bib-file", err.Suggestion)
}

func TestIsFatal_LooksThroughWrapping(t *testing.T) {
	// Given: a fatal error wrapped by fmt.Errorf
	inner := New(ErrCodeIndexOpen, "cannot open index", nil)
	outer := fmt.Errorf("sync: %w", inner)

	// Then: helpers find it
	assert.True(t, IsFatal(outer))
	assert.Equal(t, ErrCodeIndexOpen, GetCode(outer))
	assert.Equal(t, CategoryIO, GetCategory(outer))

	assert.False(t, IsFatal(errors.New("plain")))
	assert.Empty(t, GetCode(errors.New("plain")))
}
