package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	FailurePolicy string `name:"failure-policy" help:"Override build.failure_policy (abort|continue)"`
	Index         bool   `help:"Also write index.html listing every rendered artifact"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if err := b.applyOverrides(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer closeSession(s)

	rep, err := s.Build(ctx, pipeline.TriggerCLI)
	if rep != nil {
		printf(g.out(), "%s\n", rep.Summary())
	}
	return err
}

func (b *BuildCmd) applyOverrides(cfg *config.Config) error {
	if b.FailurePolicy != "" {
		policy, err := config.NormalizeFailurePolicy(b.FailurePolicy)
		if err != nil {
			return ferrors.ValidationError("invalid --failure-policy value").
				WithCause(err).
				WithContext("value", b.FailurePolicy).
				Build()
		}
		cfg.Build.FailurePolicy = policy
	}
	if b.Index {
		cfg.Build.Index = true
	}
	return nil
}
