// Package commands implements the deckbuilder command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/history"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/notify"
	"git.home.luguber.info/inful/deckbuilder/internal/pipeline"
	"git.home.luguber.info/inful/deckbuilder/internal/render"
	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

// Global carries state shared by every subcommand.
type Global struct {
	// Out receives user-facing command output.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"deckbuilder.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text|json); overrides logging.format"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Extract, then render every configured lesson"`
	Discover DiscoverCmd `cmd:"" help:"List the ordered fragments of every lesson without rendering"`
	Plan     PlanCmd     `cmd:"" help:"Print the renderer command for every lesson without running it"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	History  HistoryCmd  `cmd:"" help:"Show recent builds from the history database"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild whenever lesson sources change or on a schedule"`
}

// AfterApply runs after flag parsing; it installs a provisional logger until
// the configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := config.ResolveLogLevel(c.Verbose, "")
	slog.SetDefault(config.NewLogger(os.Stderr, config.LogFormat(c.LogFormat), level))
	return nil
}

// LoadConfig loads the configuration and reapplies logging with its settings.
// Precedence: flags > DECKBUILDER_LOG_LEVEL > config file.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	format := cfg.Logging.Format
	if c.LogFormat != "" {
		format = config.LogFormat(c.LogFormat)
	}
	slog.SetDefault(config.NewLogger(os.Stderr, format, config.ResolveLogLevel(c.Verbose, cfg.Logging.Level)))
	return cfg, nil
}

// session is a configured Builder plus the optional collaborators it owns.
type session struct {
	builder  *pipeline.Builder
	recorder *metrics.PrometheusRecorder
	textfile string
	closers  []func() error
}

// newSession wires the builder with the history store, notifier and metrics
// recorder enabled in cfg.
func newSession(cfg *config.Config) (*session, error) {
	env, err := render.CaptureEnv()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryPrecondition, "cannot capture process environment").Build()
	}

	s := &session{}
	var opts []pipeline.Option

	if cfg.Metrics.Textfile != "" {
		s.recorder = metrics.NewPrometheusRecorder(nil)
		s.textfile = cfg.Metrics.Textfile
		opts = append(opts, pipeline.WithRecorder(s.recorder))
	}

	if cfg.History.Path != "" {
		store, herr := history.NewSQLiteStore(cfg.History.Path)
		if herr != nil {
			return nil, herr
		}
		s.closers = append(s.closers, store.Close)
		opts = append(opts, pipeline.WithHistory(store))
	}

	if cfg.Notify.NATSURL != "" {
		pub, nerr := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject, slog.Default())
		if nerr != nil {
			_ = s.Close()
			return nil, nerr
		}
		s.closers = append(s.closers, pub.Close)
		opts = append(opts, pipeline.WithNotifier(pub))
	}

	s.builder = pipeline.New(cfg, env, opts...)
	return s, nil
}

// Build runs one build and refreshes the metrics textfile.
func (s *session) Build(ctx context.Context, trigger string) (*report.Report, error) {
	rep, err := s.builder.Build(ctx, trigger)
	if s.recorder != nil {
		if werr := s.recorder.WriteTextfile(s.textfile); werr != nil {
			slog.WarnContext(ctx, "Failed to write metrics textfile", logfields.Path(s.textfile), logfields.Error(werr))
		}
	}
	return rep, err
}

// Close releases the history store and notifier.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func closeSession(s *session) {
	if err := s.Close(); err != nil {
		slog.Warn("Failed to release build resources", logfields.Error(err))
	}
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
