package minderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan:
// - errors.Is matches by code through wrapping
// - CodeOf / HintOf traverse wrapped chains
// - ExitCode maps codes onto the 0/1/2/3 contract

func TestIs_MatchesByCode(t *testing.T) {
	err := Newf(CodeNoIndex, "missing %s", "api-index.json")
	wrapped := fmt.Errorf("loading: %w", err)

	assert.True(t, errors.Is(wrapped, New(CodeNoIndex, "")))
	assert.False(t, errors.Is(wrapped, New(CodeNoGit, "")))
}

func TestCodeOfAndHintOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeForbidden, "escape attempt"))
	assert.Equal(t, CodeForbidden, CodeOf(err))
	assert.NotEmpty(t, HintOf(err))

	assert.Empty(t, CodeOf(errors.New("plain")))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeFSTimeout, cause, "write failed")
	assert.True(t, errors.Is(err, cause))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, 1, ExitCode(New(CodeParseError, "x")))
	assert.Equal(t, 1, ExitCode(New(CodeIndexInconsistent, "x")))
	assert.Equal(t, 2, ExitCode(New(CodeNoIndex, "x")))
	assert.Equal(t, 2, ExitCode(New(CodeNoGit, "x")))
	assert.Equal(t, 2, ExitCode(New(CodeFSTimeout, "x")))
	assert.Equal(t, 3, ExitCode(New(CodeForbidden, "x")))
}

func TestWithHint_Overrides(t *testing.T) {
	err := New(CodeNoIndex, "gone").WithHint("try harder")
	assert.Equal(t, "try harder", err.Hint)
}
