package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/gitinfo"
	"git.home.luguber.info/inful/deckbuilder/internal/history"
	"git.home.luguber.info/inful/deckbuilder/internal/render"
	rerrors "git.home.luguber.info/inful/deckbuilder/internal/render/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/render/rendertest"
	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

type fixture struct {
	dir    string
	runner *rendertest.Runner
}

func newFixture(t *testing.T, lessons map[string][]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for lesson, files := range lessons {
		lessonDir := filepath.Join(dir, "src", "tutorial", lesson)
		require.NoError(t, os.MkdirAll(lessonDir, 0o750))
		for _, f := range files {
			require.NoError(t, os.WriteFile(filepath.Join(lessonDir, f), []byte("# "+f+"\n"), 0o600))
		}
	}
	return &fixture{dir: dir, runner: rendertest.New()}
}

func (f *fixture) config(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("version: \"1.0\"\n" + yaml))
	require.NoError(t, err)
	return cfg
}

func (f *fixture) builder(cfg *config.Config, opts ...Option) *Builder {
	base := []Option{
		WithRunner(f.runner),
		WithRevisionFunc(func(string) (gitinfo.Revision, error) { return gitinfo.Revision{}, gitinfo.ErrNotRepository }),
		WithIDGenerator(func() string { return "build-1" }),
	}
	return New(cfg, render.Env{WorkDir: f.dir, SearchPath: "/usr/local/bin:/usr/bin"}, append(base, opts...)...)
}

func outputArg(inv render.Invocation) string {
	i := slices.Index(inv.Args, "-o")
	if i < 0 || i+1 >= len(inv.Args) {
		return ""
	}
	return inv.Args[i+1]
}

func outputs(calls []render.Invocation) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, outputArg(c))
	}
	return out
}

const worklists = `
lessons:
  slides: [intro]
  exercises: [ex1, ex2]
`

func TestBuild_RendersEveryLessonInWorklistOrder(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"intro": {"b.md", "a.md", "mod.md", "notes.txt"},
		"ex1":   {"01.md"},
		"ex2":   {"01.md", "02.md"},
	})
	rep, err := f.builder(f.config(t, worklists)).Build(t.Context(), TriggerCLI)
	require.NoError(t, err)

	calls := f.runner.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{
		filepath.Join("target", "slides", "intro.html"),
		filepath.Join("target", "exercises", "ex1.html"),
		filepath.Join("target", "exercises", "ex2.html"),
	}, outputs(calls))

	slides := calls[0]
	assert.Equal(t, "pandoc", slides.Executable)
	assert.Equal(t, []string{
		"-t", "revealjs", "-V", "theme=simple", "--highlight-style=kate",
		"--css", "../../slide-style.css", "--css", "../../code-style.css",
		"-o", filepath.Join("target", "slides", "intro.html"), "-s",
		filepath.Join("src", "tutorial", "intro", "a.md"),
		filepath.Join("src", "tutorial", "intro", "b.md"),
	}, slides.Args)

	assert.Equal(t, []string{
		"--css", "../../code-style.css",
		"-o", filepath.Join("target", "exercises", "ex1.html"), "-s",
		filepath.Join("src", "tutorial", "ex1", "01.md"),
	}, calls[1].Args)

	assert.Equal(t, report.OutcomeSuccess, rep.Outcome)
	assert.Equal(t, "build-1", rep.BuildID)
	require.Len(t, rep.Lessons, 3)
	assert.NotEmpty(t, rep.Lessons[0].Fingerprint)
	assert.FileExists(t, filepath.Join(f.dir, "target", report.JSONFile))
}

func TestBuild_UnreadableFragmentIsReportedByRenderer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	dangling := filepath.Join(f.dir, "src", "tutorial", "intro", "x.md")
	require.NoError(t, os.Symlink(filepath.Join(f.dir, "missing.md"), dangling))
	f.runner.FailWhenArg(filepath.Join("src", "tutorial", "intro", "x.md"), 1, "pandoc: x.md: withBinaryFile: does not exist")

	rep, err := f.builder(f.config(t, "lessons:\n  slides: [intro]\n")).Build(t.Context(), TriggerCLI)
	require.Error(t, err)

	require.Len(t, f.runner.Calls(), 1, "renderer must still run")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRender))
	assert.Contains(t, err.Error(), filepath.Join("target", "slides", "intro.html"))

	require.Len(t, rep.Lessons, 1)
	assert.Equal(t, report.LessonFailedRender, rep.Lessons[0].State)
	assert.Empty(t, rep.Lessons[0].Fingerprint)
}

func TestBuild_AbortsAfterRenderFailure(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}, "ex1": {"a.md"}, "ex2": {"a.md"}})
	target := filepath.Join("target", "exercises", "ex1.html")
	f.runner.FailWhenArg(target, 1, "pandoc: unknown option --bogus")

	rep, err := f.builder(f.config(t, worklists)).Build(t.Context(), TriggerCLI)
	require.Error(t, err)

	assert.NotContains(t, outputs(f.runner.Calls()), filepath.Join("target", "exercises", "ex2.html"),
		"no lesson may render after the failed one")
	assert.Contains(t, err.Error(), target)
	assert.Equal(t, ferrors.CategoryRender, ferrors.GetCategory(err))
	assert.ErrorIs(t, err, rerrors.ErrRenderFailed)

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	diag := ce.Diagnostic()
	assert.Contains(t, diag, "exit status: 1")
	assert.Contains(t, diag, "pandoc: unknown option --bogus")
	assert.Contains(t, diag, "current_dir: "+f.dir)
	assert.Contains(t, diag, target)

	assert.Equal(t, report.OutcomeFailed, rep.Outcome)
	require.Len(t, rep.Lessons, 2)
	assert.Equal(t, report.LessonFailedRender, rep.Lessons[1].State)
	assert.Equal(t, 1, rep.Lessons[1].ExitCode)
}

func TestBuild_ContinuePolicyRendersRemainingLessons(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}, "ex2": {"a.md"}})
	cfg := f.config(t, worklists+"build:\n  failure_policy: continue\n")

	rep, err := f.builder(cfg).Build(t.Context(), TriggerCLI)
	require.Error(t, err)

	assert.Len(t, f.runner.Calls(), 2)
	assert.Equal(t, ferrors.CategoryDiscovery, ferrors.GetCategory(err))
	assert.Equal(t, 2, rep.SucceededCount())
	assert.Equal(t, 1, rep.FailedCount())
	assert.Equal(t, report.LessonUnreadable, rep.Lessons[1].State)
	assert.Equal(t, report.OutcomeFailed, rep.Outcome)
}

func TestBuild_ContinuePolicyJoinsFailures(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	f.runner.FailWhenArg(filepath.Join("target", "slides", "intro.html"), 2, "boom")
	cfg := f.config(t, worklists+"build:\n  failure_policy: continue\n")

	_, err := f.builder(cfg).Build(t.Context(), TriggerCLI)
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 3)
}

func TestBuild_MissingSourceDirectoryNamesPath(t *testing.T) {
	f := newFixture(t, map[string][]string{})
	cfg := f.config(t, "lessons:\n  slides: [ghost]\n")

	_, err := f.builder(cfg).Build(t.Context(), TriggerCLI)
	require.Error(t, err)
	assert.Empty(t, f.runner.Calls())
	assert.Equal(t, ferrors.CategoryDiscovery, ferrors.GetCategory(err))
	assert.Contains(t, err.Error(), filepath.Join("src", "tutorial", "ghost"))
}

func TestBuild_CreatesMissingOutputDirectories(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	cfg := f.config(t, "lessons:\n  slides: [intro]\n")
	f.runner.OnRun = func(env render.Env, inv render.Invocation) {
		// the renderer can only write into a directory that already exists
		out := filepath.Join(env.WorkDir, outputArg(inv))
		require.DirExists(t, filepath.Dir(out))
		_ = os.WriteFile(out, []byte("<html></html>"), 0o600)
	}
	require.NoDirExists(t, filepath.Join(f.dir, "target"))

	_, err := f.builder(cfg).Build(t.Context(), TriggerCLI)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.dir, "target", "slides", "intro.html"))
	assert.NoDirExists(t, filepath.Join(f.dir, "target", "exercises"), "empty worklists get no directory")
}

func TestBuild_PreconditionFailure(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "target"), []byte("not a dir"), 0o600))

	_, err := f.builder(f.config(t, "lessons:\n  slides: [intro]\n")).Build(t.Context(), TriggerCLI)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryPrecondition, ferrors.GetCategory(err))
	assert.Empty(t, f.runner.Calls())
}

func TestBuild_LaunchFailureReportsSearchPath(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	f.runner.LaunchErrorWhenExecutable("pandoc", fmt.Errorf("%w: pandoc", rerrors.ErrExecutableNotFound))

	_, err := f.builder(f.config(t, "lessons:\n  slides: [intro]\n")).Build(t.Context(), TriggerCLI)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryLaunch, ferrors.GetCategory(err))
	assert.ErrorIs(t, err, rerrors.ErrExecutableNotFound)

	ce, _ := ferrors.AsClassified(err)
	assert.Contains(t, ce.Diagnostic(), "PATH: /usr/local/bin:/usr/bin")
	assert.Contains(t, ce.Diagnostic(), filepath.Join("target", "slides", "intro.html"))
}

func TestBuild_ExtractionRunsBeforeDiscovery(t *testing.T) {
	f := newFixture(t, map[string][]string{})
	f.runner.OnRun = func(env render.Env, inv render.Invocation) {
		if inv.Executable != "tango" {
			return
		}
		dir := filepath.Join(env.WorkDir, "src", "tutorial", "generated")
		_ = os.MkdirAll(dir, 0o750)
		_ = os.WriteFile(filepath.Join(dir, "01.md"), []byte("# generated\n"), 0o600)
	}
	cfg := f.config(t, "lessons:\n  exercises: [generated]\nextract:\n  command: [tango]\n")

	rep, err := f.builder(cfg).Build(t.Context(), TriggerCLI)
	require.NoError(t, err)

	calls := f.runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "tango", calls[0].Executable)
	assert.Contains(t, calls[1].Args, filepath.Join("src", "tutorial", "generated", "01.md"))
	assert.Contains(t, rep.StageDurations, string(StageExtract))
}

func TestBuild_ExtractionFailureStopsBuild(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	f.runner.When(func(inv render.Invocation) bool { return inv.Executable == "tango" },
		rendertest.Response{Result: render.Result{ExitCode: 3, Stderr: []byte("bad chunk")}})
	cfg := f.config(t, "lessons:\n  slides: [intro]\nextract:\n  command: [tango]\nbuild:\n  failure_policy: continue\n")

	_, err := f.builder(cfg).Build(t.Context(), TriggerCLI)
	require.Error(t, err)
	assert.Len(t, f.runner.Calls(), 1)
	assert.Equal(t, ferrors.CategoryRender, ferrors.GetCategory(err))
}

func TestBuild_WritesIndex(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}, "ex1": {"a.md"}, "ex2": {"a.md"}})
	f.runner.OnRun = func(env render.Env, inv render.Invocation) {
		out := outputArg(inv)
		title := strings.TrimSuffix(filepath.Base(out), ".html")
		_ = os.WriteFile(filepath.Join(env.WorkDir, out),
			[]byte("<html><head><title>"+title+" deck</title></head></html>"), 0o600)
	}
	cfg := f.config(t, worklists+"build:\n  index: true\n")

	_, err := f.builder(cfg).Build(t.Context(), TriggerCLI)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.dir, "target", "index.html"))
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, `<a href="slides/intro.html">intro deck</a>`)
	assert.Contains(t, html, `<a href="exercises/ex2.html">ex2 deck</a>`)
}

type fakeNotifier struct{ published []*report.Report }

func (n *fakeNotifier) Publish(_ context.Context, r *report.Report) error {
	n.published = append(n.published, r)
	return errors.New("nats down")
}
func (n *fakeNotifier) Close() error { return nil }

func TestBuild_RecordsHistoryAndNotifies(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	notifier := &fakeNotifier{}

	b := f.builder(f.config(t, "lessons:\n  slides: [intro]\n"), WithHistory(store), WithNotifier(notifier),
		WithRevisionFunc(func(string) (gitinfo.Revision, error) {
			return gitinfo.Revision{Commit: "abc", Dirty: true}, nil
		}))
	_, err = b.Build(t.Context(), TriggerSchedule)
	require.NoError(t, err, "notification failures never fail a build")

	builds, err := store.Recent(t.Context(), 5)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "abc-dirty", builds[0].Revision)
	assert.Equal(t, TriggerSchedule, builds[0].Trigger)
	require.Len(t, notifier.published, 1)
	assert.Equal(t, report.OutcomeSuccess, notifier.published[0].Outcome)
}

func TestBuild_CanceledBeforeStart(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"a.md"}})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	rep, err := f.builder(f.config(t, "lessons:\n  slides: [intro]\n")).Build(ctx, TriggerCLI)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, report.OutcomeCanceled, rep.Outcome)
	assert.Empty(t, f.runner.Calls())
}

func TestPlan(t *testing.T) {
	f := newFixture(t, map[string][]string{"intro": {"b.md", "a.md", "mod.md"}, "ex1": {"a.md"}})
	steps, err := f.builder(f.config(t, worklists)).Plan()
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryDiscovery, ferrors.GetCategory(err))
	assert.Empty(t, f.runner.Calls(), "planning never runs the renderer")

	require.Len(t, steps, 3)
	assert.Equal(t, []string{
		filepath.Join("src", "tutorial", "intro", "a.md"),
		filepath.Join("src", "tutorial", "intro", "b.md"),
	}, []string(steps[0].Fragments))
	assert.Contains(t, steps[0].Invocation.String(), filepath.Join("target", "slides", "intro.html"))
	assert.NoError(t, steps[1].Err)
	assert.Error(t, steps[2].Err)
	assert.Empty(t, steps[2].Invocation.Executable)
}

func TestPlan_SingleFileLayout(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "src", "tutorial"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "src", "tutorial", "intro.md"), []byte("# x"), 0o600))
	cfg := f.config(t, "source:\n  layout: single_file\nlessons:\n  slides: [intro]\n")

	steps, err := f.builder(cfg).Plan()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, []string{filepath.Join("src", "tutorial", "intro.md")}, []string(steps[0].Fragments))
}
