package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/deckbuilder/internal/daemon"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Schedule  string `help:"Cron expression for periodic rebuilds; overrides daemon.schedule"`
	NoInitial bool   `name:"no-initial" help:"Skip the build on startup"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if w.Schedule != "" {
		cfg.Daemon.Schedule = w.Schedule
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer closeSession(s)

	out := g.out()
	d, err := daemon.New(cfg, func(ctx context.Context, trigger string) error {
		rep, berr := s.Build(ctx, trigger)
		if rep != nil {
			printf(out, "%s\n", rep.Summary())
		}
		return berr
	}, daemon.Options{
		WorkDir:      s.builder.Env().WorkDir,
		InitialBuild: !w.NoInitial,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Watching for changes; press Ctrl-C to stop")
	return d.Run(ctx)
}
