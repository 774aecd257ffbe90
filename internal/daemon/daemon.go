// Package daemon rebuilds lessons when sources change or on a cron schedule.
//
// Builds never overlap. Triggers that arrive while a build is running collapse
// into a single follow-up build.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/observability"
	"git.home.luguber.info/inful/deckbuilder/internal/pipeline"
)

// BuildFunc runs one build for the named trigger.
type BuildFunc func(ctx context.Context, trigger string) error

// Options tune a Daemon. Zero values fall back to the configuration.
type Options struct {
	// WorkDir resolves relative source and output roots.
	WorkDir string
	// InitialBuild queues a build before waiting for changes.
	InitialBuild bool
	// MaxDelay bounds how long a stream of changes can postpone a rebuild.
	MaxDelay time.Duration
	// SettleWindow extends the period after a build during which source
	// changes are attributed to the build itself and ignored.
	SettleWindow time.Duration
}

// defaultSettleWindow covers watcher events still in flight when a build returns.
const defaultSettleWindow = 250 * time.Millisecond

// Daemon owns the watcher, the scheduler and the single build loop.
type Daemon struct {
	cfg   *config.Config
	opts  Options
	build BuildFunc

	triggers chan string
	builds   atomic.Int64
	failures atomic.Int64
	ready    chan struct{}

	// building is set while a build runs; quietUntil (unix nanos) marks the end
	// of the settle window after it. Extraction writes fragments into the
	// watched tree, so changes seen in either period must not trigger a rebuild.
	building   atomic.Bool
	quietUntil atomic.Int64
}

// New returns a daemon for cfg that calls build for every rebuild.
func New(cfg *config.Config, build BuildFunc, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ValidationError("config is required").Build()
	}
	if build == nil {
		return nil, ferrors.ValidationError("build func is required").Build()
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * cfg.Daemon.DebounceDuration()
	}
	if opts.SettleWindow <= 0 {
		opts.SettleWindow = defaultSettleWindow
	}
	return &Daemon{
		cfg:      cfg,
		opts:     opts,
		build:    build,
		triggers: make(chan string, 1),
		ready:    make(chan struct{}),
	}, nil
}

// Trigger queues a build. It returns false when a build is already queued,
// in which case the queued build covers this request.
func (d *Daemon) Trigger(trigger string) bool {
	select {
	case d.triggers <- trigger:
		return true
	default:
		return false
	}
}

// Builds returns the number of builds run so far.
func (d *Daemon) Builds() int64 { return d.builds.Load() }

// Failures returns the number of builds that returned an error.
func (d *Daemon) Failures() int64 { return d.failures.Load() }

// Ready is closed once the watcher and scheduler are running.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Run blocks until ctx is canceled. A failing build is logged and the daemon
// keeps waiting for the next trigger.
func (d *Daemon) Run(ctx context.Context) error {
	debouncer, err := NewDebouncer(d.cfg.Daemon.DebounceDuration(), d.opts.MaxDelay)
	if err != nil {
		return err
	}

	watcher, err := NewSourceWatcher(
		d.resolve(d.cfg.Source.Root),
		d.cfg.Source.Extension,
		d.cfg.Source.Sentinel,
		[]string{d.resolve(d.cfg.Output.Root)},
		func(path string) { d.sourceChanged(ctx, debouncer, path) },
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPrecondition, "cannot watch lesson sources").
			WithContext("path", d.resolve(d.cfg.Source.Root)).
			Build()
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			slog.Warn("Failed to close source watcher", logfields.Error(cerr))
		}
	}()
	if err := watcher.Start(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPrecondition, "cannot watch lesson sources").
			WithContext("path", watcher.Root()).
			Build()
	}

	go debouncer.Run(ctx, func(reason string, count int) {
		slog.InfoContext(ctx, "Sources changed",
			logfields.Path(reason),
			slog.Int("changes", count))
		d.Trigger(pipeline.TriggerWatch)
	})

	if schedule := d.cfg.Daemon.Schedule; schedule != "" {
		scheduler, serr := NewScheduler()
		if serr != nil {
			return serr
		}
		if _, serr = scheduler.ScheduleCron(schedule, func() { d.Trigger(pipeline.TriggerSchedule) }); serr != nil {
			_ = scheduler.Stop(ctx)
			return ferrors.WrapError(serr, ferrors.CategoryConfig, "invalid daemon schedule").
				WithContext("field", "daemon.schedule").
				Build()
		}
		scheduler.Start(ctx)
		defer func() {
			if stopErr := scheduler.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				slog.Warn("Failed to stop scheduler", logfields.Error(stopErr))
			}
		}()
	}

	if d.opts.InitialBuild {
		d.Trigger(pipeline.TriggerWatch)
	}
	close(d.ready)

	return d.loop(ctx)
}

func (d *Daemon) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Daemon stopping", slog.Int64("builds", d.Builds()))
			return nil
		case trigger := <-d.triggers:
			d.runBuild(ctx, trigger)
		}
	}
}

// sourceChanged forwards a change to the debouncer unless it happened while the
// daemon's own build was writing to the source tree.
func (d *Daemon) sourceChanged(ctx context.Context, debouncer *Debouncer, path string) {
	if d.building.Load() || time.Now().UnixNano() < d.quietUntil.Load() {
		slog.DebugContext(ctx, "Ignoring source change made during build", logfields.Path(path))
		return
	}
	debouncer.Request(path)
}

func (d *Daemon) runBuild(ctx context.Context, trigger string) {
	ctx = observability.WithTrigger(ctx, trigger)
	d.builds.Add(1)
	d.building.Store(true)
	err := d.build(ctx, trigger)
	d.quietUntil.Store(time.Now().Add(d.opts.SettleWindow).UnixNano())
	d.building.Store(false)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		slog.InfoContext(ctx, "Build canceled by shutdown")
	default:
		d.failures.Add(1)
		slog.ErrorContext(ctx, "Build failed; waiting for next change", logfields.Error(err))
	}
}

func (d *Daemon) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || d.opts.WorkDir == "" {
		return p
	}
	return filepath.Join(d.opts.WorkDir, p)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
