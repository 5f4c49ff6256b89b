// Package taskerr defines the error taxonomy shared by every component of
// taskctl and the exit codes the CLI layer maps them to.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the buckets the CLI maps to a
// distinct process exit code.
type Kind int

const (
	// KindGeneral is an unclassified failure.
	KindGeneral Kind = iota
	// KindValidation covers bad input, schema violations, secret
	// detections, and invalid state transitions.
	KindValidation
	// KindDrift covers worktree/context mismatches detected at hand-off.
	KindDrift
	// KindBlocker covers quarantined tasks and denied transitions.
	KindBlocker
	// KindIO covers missing files and unreadable artifacts.
	KindIO
	// KindGit covers external git command failures.
	KindGit
	// KindHalt covers the workflow-halt condition (blocked unblockers).
	KindHalt
)

// ExitCode returns the process exit code for the error kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindHalt:
		return 2
	case KindValidation:
		return 10
	case KindDrift:
		return 20
	case KindBlocker:
		return 30
	case KindIO:
		return 40
	case KindGit:
		return 50
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDrift:
		return "drift"
	case KindBlocker:
		return "blocker"
	case KindIO:
		return "io"
	case KindGit:
		return "git"
	case KindHalt:
		return "workflow-halt"
	default:
		return "general"
	}
}

// Error is the tagged error union every mutating component returns.
type Error struct {
	Kind           Kind
	Message        string
	Details        map[string]any
	RecoveryAction string
	Retryable      bool
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches structured detail fields and returns the receiver
// for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithRecovery attaches a human-readable recovery hint.
func (e *Error) WithRecovery(action string) *Error {
	e.RecoveryAction = action
	return e
}

// AsRetryable marks the error as safe to retry (idempotent reads only).
func (e *Error) AsRetryable() *Error {
	e.Retryable = true
	return e
}

// ExitCode extracts the exit code for any error, falling back to 1 for
// errors that are not a *taskerr.Error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind.ExitCode()
	}
	return 1
}

// IsRetryable reports whether the error, or a wrapped *Error within it,
// is marked retryable. Only idempotent external reads (git log, git show)
// are ever marked this way.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// IsFatal reports whether the error should abort a batch operation rather
// than being collected as a per-item warning.
func IsFatal(err error) bool {
	var te *Error
	if !errors.As(err, &te) {
		return true
	}
	switch te.Kind {
	case KindIO, KindGit, KindGeneral:
		return true
	default:
		return false
	}
}

// Is reports whether err's Kind matches k.
func Is(err error, k Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == k
	}
	return false
}
