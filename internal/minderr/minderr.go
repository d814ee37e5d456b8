// Package minderr defines the structured error type shared by every core
// component. Each error carries a stable code, a human-readable message, and
// a hint intended for user-facing display.
package minderr

import (
	"errors"
	"fmt"
)

// Stable error codes. These identifiers are part of the external contract
// and map onto process exit codes via ExitCode.
const (
	CodeNoIndex           = "MIND_NO_INDEX"
	CodeIndexInconsistent = "MIND_INDEX_INCONSISTENT"
	CodeNoGit             = "MIND_NO_GIT"
	CodeFSTimeout         = "MIND_FS_TIMEOUT"
	CodeParseError        = "MIND_PARSE_ERROR"
	CodePackBudget        = "MIND_PACK_BUDGET_EXCEEDED"
	CodeTimeBudget        = "MIND_TIME_BUDGET"
	CodeInvalidFlag       = "MIND_INVALID_FLAG"
	CodeForbidden         = "MIND_FORBIDDEN"
	CodeQueryError        = "MIND_QUERY_ERROR"
)

// Error is the structured error type for the mind core.
type Error struct {
	// Code is one of the MIND_* identifiers above.
	Code string

	// Message is the human-readable error message.
	Message string

	// Hint is an actionable suggestion for the user.
	Hint string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, so errors.Is(err, minderr.New(CodeNoIndex, ""))
// holds for any error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message, Hint: defaultHint(code)}
}

// Newf creates an error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an error with the given code wrapping cause.
func Wrap(code string, cause error, message string) *Error {
	return &Error{Code: code, Message: message, Hint: defaultHint(code), Cause: cause}
}

// WithHint replaces the default hint. Returns the error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// CodeOf returns the MIND_* code of err, or empty if err carries none.
func CodeOf(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// HintOf returns the hint of err, or empty if err carries none.
func HintOf(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Hint
	}
	return ""
}

// ExitCode maps err to the process exit code contract:
// 0 success, 1 generic failure, 2 transient/environment, 3 forbidden.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case CodeNoIndex, CodeNoGit, CodeFSTimeout:
		return 2
	case CodeForbidden:
		return 3
	default:
		return 1
	}
}

func defaultHint(code string) string {
	switch code {
	case CodeNoIndex:
		return "run 'mind init' and 'mind update' to build the index"
	case CodeIndexInconsistent:
		return "run 'mind update --no-cache' to rebuild the index"
	case CodeNoGit:
		return "not a git repository; pass --changed explicitly or init git"
	case CodeFSTimeout:
		return "storage operation timed out; retry or raise the budget"
	case CodeParseError:
		return "file could not be chunked; check encoding and size"
	case CodePackBudget:
		return "raise totalTokens or lower section caps"
	case CodeTimeBudget:
		return "update stopped at the time budget; re-run to continue"
	case CodeInvalidFlag:
		return "see 'mind query --help' for required parameters"
	case CodeForbidden:
		return "paths must stay inside the workspace root"
	default:
		return ""
	}
}
