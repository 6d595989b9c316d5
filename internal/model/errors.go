package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures so callers can tell expected outcomes
// (a name that doesn't resolve) from invocation faults without matching
// on error strings.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota
	KindTaskNotFound
	KindGroupNotFound
	KindTimeout
	KindExecution
	KindValidation
	KindExport
)

// Error is a classified taskmon error. The zero Kind is Configuration.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps the error kind to the process exit code contract.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindConfiguration:
		return 2
	case KindTaskNotFound, KindGroupNotFound:
		return 3
	case KindTimeout, KindExecution:
		return 4
	case KindValidation:
		return 5
	case KindExport:
		return 6
	default:
		return 1
	}
}

// NewConfigurationError reports a malformed policy or definition value.
func NewConfigurationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewTaskNotFound reports a task name absent from the catalog.
func NewTaskNotFound(name string) *Error {
	return &Error{Kind: KindTaskNotFound, Message: fmt.Sprintf("task %q not found", name)}
}

// NewGroupNotFound reports a group name absent from the catalog.
func NewGroupNotFound(name string) *Error {
	return &Error{Kind: KindGroupNotFound, Message: fmt.Sprintf("group %q not found", name)}
}

// NewTimeout reports a child process that exceeded its bound.
func NewTimeout(task string, limit time.Duration) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf("task %q timed out after %s", task, limit)}
}

// NewExecutionError wraps an invocation-layer fault.
func NewExecutionError(task string, cause error) *Error {
	return &Error{
		Kind:    KindExecution,
		Message: fmt.Sprintf("execution failed for %q: %v", task, cause),
		Cause:   cause,
	}
}

// NewValidationError reports a definition that fails validation.
func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewExportError reports a failed scheduler-unit export.
func NewExportError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindExport, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind from err's chain. The second return is
// false for untyped errors.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
