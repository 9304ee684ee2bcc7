// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies a command failure.
type ErrorCategory string

const (
	// CategoryValidation is bad input: a missing argument or an
	// unparseable value. Fix the input and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound is a reference to something that does not
	// exist, such as an unknown object id.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryTransient is a failure that may clear up on its own: the
	// authority is not running yet, or a timeout.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal is anything unexpected.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized error with an optional hint for the user.
type ToolError struct {
	Category ErrorCategory
	Err      error

	// Hint is printed after the error on its own lines.
	Hint string
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// WithHint attaches a hint and returns e.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation reports bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound reports a missing resource.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Transient reports a failure worth retrying.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal reports an unexpected failure.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// ExitError ends the process with Code without printing anything more.
// Commands return it after writing their own output, when a non-zero
// exit is a normal outcome (discover finding nothing, for example).
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit code %d", e.Code) }

// ExitCode is checked by main to tell a handled exit from an error.
func (e *ExitError) ExitCode() int { return e.Code }
