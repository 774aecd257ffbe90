// Package extract runs the literate-code extraction command that refreshes
// generated fragments before lessons are discovered.
package extract

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/deckbuilder/internal/render"
)

// Extractor runs a fixed command line in the build working directory.
type Extractor struct {
	runner  render.Runner
	command []string
}

// New returns an extractor for command (executable followed by arguments).
// An empty command yields a disabled extractor.
func New(runner render.Runner, command []string) *Extractor {
	return &Extractor{runner: runner, command: append([]string(nil), command...)}
}

// Enabled reports whether a command is configured.
func (e *Extractor) Enabled() bool {
	return e != nil && len(e.command) > 0
}

// Invocation returns the command the extractor will run.
func (e *Extractor) Invocation() render.Invocation {
	if !e.Enabled() {
		return render.Invocation{}
	}
	return render.NewInvocation(e.command[0], e.command[1:], nil)
}

// Run executes the command. A disabled extractor is a no-op. Failures are the
// render package's LaunchError and ExitError, so they carry the same diagnostics
// as a failed lesson render.
func (e *Extractor) Run(ctx context.Context, env render.Env) error {
	if !e.Enabled() {
		slog.DebugContext(ctx, "Extraction disabled")
		return nil
	}
	_, err := render.Invoke(ctx, e.runner, env, e.Invocation())
	return err
}
