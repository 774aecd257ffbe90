package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	rerrors "git.home.luguber.info/inful/deckbuilder/internal/render/errors"
)

// Runner executes an invocation to completion. A non-nil error means the process could
// not be started; a process that ran reports its exit status through Result.
//
// ExecRunner is the production implementation; tests inject fakes to avoid depending on
// an installed renderer.
type Runner interface {
	Run(ctx context.Context, env Env, inv Invocation) (Result, error)
}

// ExecRunner starts invocations as child processes and captures stdout and stderr.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, env Env, inv Invocation) (Result, error) {
	path, err := LookPath(inv.Executable, env)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.Dir = env.WorkDir
	cmd.Env = withSearchPath(os.Environ(), env.SearchPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// LookPath locates executable on env.SearchPath rather than the ambient PATH. Names
// containing a path separator are resolved against env.WorkDir.
func LookPath(executable string, env Env) (string, error) {
	if strings.ContainsRune(executable, filepath.Separator) {
		p := executable
		if !filepath.IsAbs(p) && env.WorkDir != "" {
			p = filepath.Join(env.WorkDir, p)
		}
		if err := checkExecutable(p); err != nil {
			return "", fmt.Errorf("%w: %s: %w", rerrors.ErrExecutableNotFound, executable, err)
		}
		return p, nil
	}
	for _, dir := range filepath.SplitList(env.SearchPath) {
		if dir == "" {
			dir = "."
		}
		if !filepath.IsAbs(dir) && env.WorkDir != "" {
			dir = filepath.Join(env.WorkDir, dir)
		}
		p := filepath.Join(dir, executable)
		if checkExecutable(p) == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q in search path", rerrors.ErrExecutableNotFound, executable)
}

func checkExecutable(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", p)
	}
	if info.Mode()&0o111 == 0 {
		return fs.ErrPermission
	}
	return nil
}

func withSearchPath(environ []string, searchPath string) []string {
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+searchPath)
}

// Invoke runs inv synchronously and maps the outcome onto the invocation state machine.
// The returned error is nil only for StateSucceeded; otherwise it is a *LaunchError or
// an *ExitError carrying the reconstructed command, working directory and diagnostics.
func Invoke(ctx context.Context, runner Runner, env Env, inv Invocation) (Outcome, error) {
	command := inv.String()
	slog.DebugContext(ctx, "Invoking subprocess", logfields.Command(command), logfields.Dir(env.WorkDir))

	start := time.Now()
	res, err := runner.Run(ctx, env, inv)
	dur := time.Since(start)

	if len(res.Stdout) > 0 {
		slog.DebugContext(ctx, "subprocess stdout", logfields.Command(inv.Executable), slog.String("output", string(res.Stdout)))
	}
	if len(res.Stderr) > 0 {
		slog.WarnContext(ctx, "subprocess stderr", logfields.Command(inv.Executable), slog.String("error_output", string(res.Stderr)))
	}

	if err != nil {
		return Outcome{State: StateFailedLaunch, Result: res}, &LaunchError{
			Command:    command,
			Dir:        env.WorkDir,
			SearchPath: env.SearchPath,
			Err:        err,
		}
	}
	if res.ExitCode != 0 {
		return Outcome{State: StateFailedNonZero, Result: res}, &ExitError{
			Command:  command,
			Dir:      env.WorkDir,
			ExitCode: res.ExitCode,
			Stdout:   string(res.Stdout),
			Stderr:   string(res.Stderr),
		}
	}

	slog.DebugContext(ctx, "Subprocess completed", logfields.Command(inv.Executable), logfields.Duration(dur))
	return Outcome{State: StateSucceeded, Result: res}, nil
}
