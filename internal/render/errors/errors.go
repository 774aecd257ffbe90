package errors

// Package errors provides sentinel errors for renderer subprocess invocation.
// Concrete failures wrap these so callers can classify with errors.Is.

import "errors"

var (
	// ErrExecutableNotFound indicates the executable was not found on the search path.
	ErrExecutableNotFound = errors.New("executable not found")
	// ErrLaunchFailed indicates the subprocess could not be started.
	ErrLaunchFailed = errors.New("subprocess launch failed")
	// ErrRenderFailed indicates the subprocess ran and exited with a non-zero status.
	ErrRenderFailed = errors.New("subprocess exited non-zero")
)
