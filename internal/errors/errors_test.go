package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWheelhouseError_Error(t *testing.T) {
	err := New(CategoryArchive, SeverityError, "unpack failed")
	assert.Equal(t, "archive (error): unpack failed", err.Error())

	wrapped := Wrap(fmt.Errorf("unexpected EOF"), CategoryArchive, SeverityError, "unpack failed")
	assert.Equal(t, "archive (error): unpack failed: unexpected EOF", wrapped.Error())
}

func TestWheelhouseError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := WrapError(cause, CategoryFileSystem, "cannot write destination")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestWheelhouseError_WithContext(t *testing.T) {
	err := New(CategoryBuild, SeverityError, "build failed").
		WithContext("artifact", "mypkg-1.0.tar.gz").
		WithContext("attempt", 2)

	assert.Equal(t, "mypkg-1.0.tar.gz", err.Context["artifact"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestCategoryHelpers(t *testing.T) {
	err := ValidationError("artifact path required")
	assert.True(t, IsCategory(err, CategoryValidation))
	assert.False(t, IsCategory(err, CategoryBuild))
	assert.Equal(t, CategoryValidation, GetCategory(err))

	// Non-WheelhouseError falls back to internal
	assert.Equal(t, CategoryInternal, GetCategory(fmt.Errorf("plain")))
}

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"plain", fmt.Errorf("boom"), 1},
		{"validation", ValidationError("bad input"), 2},
		{"config", ConfigError("missing python"), 7},
		{"git", New(CategoryGit, SeverityError, "clone failed"), 8},
		{"backend", New(CategoryBackend, SeverityError, "hook failed"), 11},
		{"build", New(CategoryBuild, SeverityError, "build failed"), 11},
		{"archive", New(CategoryArchive, SeverityError, "bad archive"), 11},
		{"cache", New(CategoryCache, SeverityError, "index corrupt"), 12},
		{"internal", New(CategoryInternal, SeverityFatal, "bug"), 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, adapter.ExitCodeFor(tc.err))
		})
	}
}

func TestCLIErrorAdapter_Format(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	// Config/validation errors show only the message
	assert.Equal(t, "missing python", adapter.FormatError(ConfigError("missing python")))

	// Others are prefixed with their category
	assert.Equal(t, "backend: hook failed",
		adapter.FormatError(New(CategoryBackend, SeverityError, "hook failed")))

	// Verbose shows the full structured form
	verbose := NewCLIErrorAdapter(true, nil)
	assert.Equal(t, "config (error): missing python", verbose.FormatError(ConfigError("missing python")))
}
