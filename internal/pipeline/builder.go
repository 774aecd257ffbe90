package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/deckbuilder/internal/artifact"
	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/extract"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/fragments"
	"git.home.luguber.info/inful/deckbuilder/internal/gitinfo"
	"git.home.luguber.info/inful/deckbuilder/internal/history"
	"git.home.luguber.info/inful/deckbuilder/internal/index"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/notify"
	"git.home.luguber.info/inful/deckbuilder/internal/observability"
	"git.home.luguber.info/inful/deckbuilder/internal/render"
	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

// Trigger names what started a build.
const (
	TriggerCLI      = "cli"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
)

// IndexTitle is the heading of the generated index page.
const IndexTitle = "Lessons"

// Builder runs deck builds for one configuration. It is not safe for
// concurrent Build calls; the daemon serialises them.
type Builder struct {
	cfg        *config.Config
	env        render.Env
	runner     render.Runner
	discoverer *fragments.Discoverer
	extractor  *extract.Extractor
	recorder   metrics.Recorder
	history    history.Store
	notifier   notify.Publisher
	revision   func(dir string) (gitinfo.Revision, error)
	newID      func() string
}

// Option customises a Builder.
type Option func(*Builder)

// WithRunner replaces the subprocess runner (tests use a scripted runner).
func WithRunner(r render.Runner) Option {
	return func(b *Builder) { b.runner = r }
}

// WithRecorder enables metrics.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithHistory records every finished build in store.
func WithHistory(store history.Store) Option {
	return func(b *Builder) { b.history = store }
}

// WithNotifier publishes every finished build.
func WithNotifier(p notify.Publisher) Option {
	return func(b *Builder) {
		if p != nil {
			b.notifier = p
		}
	}
}

// WithRevisionFunc replaces the source revision lookup.
func WithRevisionFunc(fn func(dir string) (gitinfo.Revision, error)) Option {
	return func(b *Builder) { b.revision = fn }
}

// WithIDGenerator replaces the build ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) { b.newID = fn }
}

// New creates a Builder. env is captured once by the caller; every subprocess
// runs in env.WorkDir and every relative configured path resolves against it.
func New(cfg *config.Config, env render.Env, opts ...Option) *Builder {
	b := &Builder{
		cfg:      cfg,
		env:      env,
		runner:   render.ExecRunner{},
		recorder: metrics.NoopRecorder{},
		notifier: notify.Noop{},
		revision: gitinfo.Head,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.discoverer = fragments.NewDiscoverer(fragments.Options{
		Layout:    cfg.Source.Layout,
		Extension: cfg.Source.Extension,
		Sentinel:  cfg.Source.Sentinel,
		BaseDir:   env.WorkDir,
	})
	b.extractor = extract.New(b.runner, cfg.Extract.Command)
	return b
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *config.Config { return b.cfg }

// Env returns the captured process context.
func (b *Builder) Env() render.Env { return b.env }

// resolve returns p relative to the working directory unless it is absolute.
func (b *Builder) resolve(p string) string {
	if filepath.IsAbs(p) || b.env.WorkDir == "" {
		return p
	}
	return filepath.Join(b.env.WorkDir, p)
}

// buildState carries mutable state through the stages of one build.
type buildState struct {
	report   *report.Report
	recorder metrics.Recorder
	// failures collects lesson errors under the continue policy.
	failures []error
	// stageFailed marks a stage that recorded failures but let the build go on.
	stageFailed bool
	rendered    []index.Entry
}

// Build runs one full build and returns its report. The returned error is nil
// only when every lesson rendered. Under the abort policy it is the first
// failure; under continue it joins every lesson failure.
func (b *Builder) Build(ctx context.Context, trigger string) (*report.Report, error) {
	rep := report.New(b.newID(), trigger)
	rep.ConfigSnapshot = b.cfg.Snapshot()
	ctx = observability.WithTrigger(observability.WithBuildID(ctx, rep.BuildID), trigger)

	if rev, err := b.revision(b.resolve(b.cfg.Source.Root)); err == nil {
		rep.Revision = rev.Commit
		if rev.Dirty {
			rep.Revision += "-dirty"
		}
	} else {
		slog.DebugContext(ctx, "Source revision unavailable", logfields.Error(err))
	}

	slog.InfoContext(ctx, "Build started",
		slog.Int("lessons", b.cfg.Lessons.Total()),
		slog.String("policy", string(b.cfg.Build.FailurePolicy)))

	bs := &buildState{report: rep, recorder: b.recorder}
	err := runStages(ctx, bs, b.stages())
	if err == nil && len(bs.failures) > 0 {
		err = errors.Join(bs.failures...)
	}
	rep.AddError(err)

	canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	rep.Finish(canceled)
	b.finalize(ctx, rep)
	return rep, err
}

func (b *Builder) stages() []stageDef {
	defs := []stageDef{
		{Name: StageExtract, Fn: b.stageExtract, Skip: func(*buildState) bool { return !b.extractor.Enabled() }},
		{Name: StagePrepareOutput, Fn: b.stagePrepareOutput},
	}
	for _, k := range artifact.Kinds() {
		defs = append(defs, stageDef{
			Name: RenderStage(k),
			Fn:   func(ctx context.Context, bs *buildState) error { return b.stageRender(ctx, bs, k) },
			Skip: func(*buildState) bool { return len(b.cfg.Lessons.For(k)) == 0 },
		})
	}
	defs = append(defs, stageDef{
		Name: StageWriteIndex,
		Fn:   b.stageWriteIndex,
		Skip: func(bs *buildState) bool { return !b.cfg.Build.Index || len(bs.rendered) == 0 },
	})
	return defs
}

// stageExtract runs the upstream extraction command. It must finish before
// discovery so that generated fragments are picked up.
func (b *Builder) stageExtract(ctx context.Context, _ *buildState) error {
	if err := b.extractor.Run(ctx, b.env); err != nil {
		return classifyExtractError(err)
	}
	return nil
}

// stagePrepareOutput creates the output directory of every kind with a non-empty worklist.
func (b *Builder) stagePrepareOutput(ctx context.Context, _ *buildState) error {
	for _, k := range artifact.Kinds() {
		if len(b.cfg.Lessons.For(k)) == 0 {
			continue
		}
		dir := filepath.Join(b.cfg.Output.Root, k.Subdir())
		if err := os.MkdirAll(b.resolve(dir), 0o750); err != nil {
			return ferrors.PreconditionError(fmt.Sprintf("cannot create output directory %s", dir)).
				WithCause(err).WithContext("path", dir).Build()
		}
		slog.DebugContext(ctx, "Output directory ready", logfields.Path(dir))
	}
	return nil
}

// stageRender renders every lesson of kind k in worklist order.
func (b *Builder) stageRender(ctx context.Context, bs *buildState, k artifact.Kind) error {
	rc := artifact.Resolve(k, b.cfg.Renderer.Settings(k))
	for _, lesson := range b.cfg.Lessons.For(k) {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := b.renderLesson(observability.WithLesson(ctx, k.String(), lesson), rc, lesson)
		bs.report.AddLesson(res)
		if err == nil {
			bs.rendered = append(bs.rendered,
				index.NewEntry(b.resolve(b.cfg.Output.Root), k.Subdir(), lesson, b.resolve(res.Output)))
			continue
		}
		if res.State == report.LessonCanceled || b.cfg.Build.FailurePolicy != config.FailurePolicyContinue {
			return err
		}
		bs.failures = append(bs.failures, err)
		bs.stageFailed = true
	}
	return nil
}

// renderLesson runs discovery, ordering and invocation for one lesson.
func (b *Builder) renderLesson(ctx context.Context, rc artifact.RenderConfig, lesson string) (report.LessonResult, error) {
	k := rc.Kind
	step := b.planLesson(rc, lesson)
	res := report.LessonResult{
		Kind:      k.String(),
		Lesson:    lesson,
		Output:    step.Output,
		Fragments: []string(step.Fragments),
		Command:   step.Invocation.String(),
	}
	start := time.Now()
	fail := func(err error) (report.LessonResult, error) {
		res.Duration = time.Since(start)
		classified, state := classifyLessonError(k, lesson, step.Output, err)
		res.State = state
		res.Error = classified.Error()
		var exitErr *render.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode
		}
		b.recorder.ObserveRender(k.String(), res.Duration, metrics.ResultFailed)
		slog.ErrorContext(ctx, "Lesson failed", logfields.Output(step.Output), logfields.Error(classified))
		return res, classified
	}

	if step.Err != nil {
		return fail(step.Err)
	}
	b.recorder.SetFragments(k.String(), lesson, len(step.Fragments))

	// An unreadable fragment is the renderer's to report; the lesson only loses
	// its fingerprint.
	fp, err := fragments.Fingerprint(b.env.WorkDir, step.Fragments)
	if err != nil {
		slog.WarnContext(ctx, "Cannot fingerprint lesson sources", logfields.Error(err))
	}
	res.Fingerprint = fp
	if fp != "" && b.history != nil {
		if prev, herr := b.history.LastFingerprint(ctx, k.String(), lesson); herr == nil && prev == fp {
			slog.DebugContext(ctx, "Sources unchanged since last successful render")
		}
	}

	if _, err := render.Invoke(ctx, b.runner, b.env, step.Invocation); err != nil {
		return fail(err)
	}
	res.State = report.LessonSucceeded
	res.Duration = time.Since(start)
	b.recorder.ObserveRender(k.String(), res.Duration, metrics.ResultSuccess)
	slog.InfoContext(ctx, "Lesson rendered",
		logfields.Output(step.Output), logfields.Fragments(len(step.Fragments)), logfields.Duration(res.Duration))
	return res, nil
}

// stageWriteIndex writes index.html linking every rendered artifact.
func (b *Builder) stageWriteIndex(ctx context.Context, bs *buildState) error {
	target, err := index.Write(b.resolve(b.cfg.Output.Root), IndexTitle, bs.rendered)
	if err != nil {
		return ferrors.PreconditionError("cannot write index page").
			WithCause(err).WithContext("path", b.cfg.Output.Root).Build()
	}
	slog.InfoContext(ctx, "Index written", logfields.Path(target))
	return nil
}

// finalize persists and publishes a finished report. Failures here are logged
// and never change the build outcome.
func (b *Builder) finalize(ctx context.Context, rep *report.Report) {
	outcome := metrics.BuildOutcomeLabel(rep.Outcome)
	b.recorder.ObserveBuildDuration(rep.Duration())
	b.recorder.IncBuildOutcome(outcome)
	b.recorder.SetLastBuild(rep.End, outcome)

	// A report is only written once the output root exists; an early precondition
	// failure leaves nothing to write next to.
	if b.cfg.Build.ReportEnabled() {
		root := b.resolve(b.cfg.Output.Root)
		if _, err := os.Stat(root); err == nil {
			if err := rep.Persist(root); err != nil {
				slog.WarnContext(ctx, "Failed to persist build report", logfields.Error(err))
			}
		}
	}

	// Persist and publish even when the build itself was canceled.
	bg := context.WithoutCancel(ctx)
	if b.history != nil {
		if err := b.history.Record(bg, rep); err != nil {
			slog.WarnContext(ctx, "Failed to record build history", logfields.Error(err))
		}
	}
	if err := b.notifier.Publish(bg, rep); err != nil {
		slog.WarnContext(ctx, "Failed to publish build event", logfields.Error(err))
	}

	level := slog.LevelInfo
	if rep.Outcome != report.OutcomeSuccess {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "Build finished",
		logfields.Outcome(string(rep.Outcome)),
		slog.Int("succeeded", rep.SucceededCount()),
		slog.Int("failed", rep.FailedCount()),
		logfields.Duration(rep.Duration()))
}
