package render

import (
	"fmt"
	"strings"

	rerrors "git.home.luguber.info/inful/deckbuilder/internal/render/errors"
)

// State is the lifecycle of one invocation.
type State string

const (
	StatePending       State = "pending"
	StateSucceeded     State = "succeeded"
	StateFailedNonZero State = "failed_nonzero"
	StateFailedLaunch  State = "failed_launch"
)

// Result is what a finished subprocess reported.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Outcome pairs the terminal state of an invocation with its captured result.
type Outcome struct {
	State  State
	Result Result
}

// LaunchError reports a subprocess that could not be started.
type LaunchError struct {
	Command    string
	Dir        string
	SearchPath string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("could not start %s in %s: %v", e.Command, e.Dir, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	return []error{rerrors.ErrLaunchFailed, e.Err}
}

// Diagnostic renders the full launch failure report.
func (e *LaunchError) Diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  command: %s\n", e.Command)
	fmt.Fprintf(&b, "  current_dir: %s\n", e.Dir)
	fmt.Fprintf(&b, "  err: %v\n", e.Err)
	fmt.Fprintf(&b, "  PATH: %s", e.SearchPath)
	return b.String()
}

// ExitError reports a subprocess that ran and exited with a non-zero status.
type ExitError struct {
	Command  string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s in %s exited with status %d", e.Command, e.Dir, e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return rerrors.ErrRenderFailed
}

// Diagnostic renders the full non-zero exit report including captured streams.
func (e *ExitError) Diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  command: %s\n", e.Command)
	fmt.Fprintf(&b, "  current_dir: %s\n", e.Dir)
	fmt.Fprintf(&b, "  exit status: %d\n", e.ExitCode)
	fmt.Fprintf(&b, "  stdout: %s\n", strings.TrimRight(e.Stdout, "\n"))
	fmt.Fprintf(&b, "  stderr: %s", strings.TrimRight(e.Stderr, "\n"))
	return b.String()
}
