// Package rendertest provides a scripted render.Runner for tests that must not depend
// on an installed renderer.
package rendertest

import (
	"context"
	"slices"
	"sync"

	"git.home.luguber.info/inful/deckbuilder/internal/render"
)

// Response is the scripted reply for an invocation.
type Response struct {
	Result render.Result
	Err    error
}

// Runner records every invocation and replies with the first matching scripted
// response. Unmatched invocations succeed with exit status 0.
type Runner struct {
	mu    sync.Mutex
	calls []render.Invocation
	rules []rule
	// OnRun, if set, is called for every invocation before the reply is chosen.
	OnRun func(env render.Env, inv render.Invocation)
}

type rule struct {
	match func(render.Invocation) bool
	resp  Response
}

// New returns an empty scripted runner.
func New() *Runner {
	return &Runner{}
}

// FailWhenArg makes invocations containing arg exit with code and stderr.
func (r *Runner) FailWhenArg(arg string, code int, stderr string) *Runner {
	return r.When(func(inv render.Invocation) bool { return slices.Contains(inv.Args, arg) },
		Response{Result: render.Result{ExitCode: code, Stderr: []byte(stderr)}})
}

// LaunchErrorWhenExecutable makes invocations of executable fail to start with err.
func (r *Runner) LaunchErrorWhenExecutable(executable string, err error) *Runner {
	return r.When(func(inv render.Invocation) bool { return inv.Executable == executable },
		Response{Err: err})
}

// When adds a scripted response for invocations matching fn.
func (r *Runner) When(fn func(render.Invocation) bool, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{match: fn, resp: resp})
	return r
}

func (r *Runner) Run(_ context.Context, env render.Env, inv render.Invocation) (render.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	rules := slices.Clone(r.rules)
	onRun := r.OnRun
	r.mu.Unlock()

	if onRun != nil {
		onRun(env, inv)
	}
	for _, rl := range rules {
		if rl.match(inv) {
			return rl.resp.Result, rl.resp.Err
		}
	}
	return render.Result{}, nil
}

// Calls returns the recorded invocations in order.
func (r *Runner) Calls() []render.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}
