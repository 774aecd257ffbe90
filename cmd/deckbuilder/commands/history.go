package commands

import (
	"context"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of builds to show" default:"10"`
	Build string `help:"Show the lesson results of one build"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return ferrors.ConfigError("build history is disabled; set history.path").
			WithContext("field", "history.path").
			Build()
	}

	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.Build != "" {
		return h.printLessons(ctx, g, store)
	}
	return h.printBuilds(ctx, g, store)
}

func (h *HistoryCmd) printBuilds(ctx context.Context, g *Global, store history.Store) error {
	builds, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	printf(tw, "BUILD\tSTARTED\tTRIGGER\tOUTCOME\tLESSONS\tFAILED\tREVISION\n")
	for _, b := range builds {
		printf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			b.ID, b.StartedAt.Local().Format(time.DateTime), b.Trigger, b.Outcome,
			b.Lessons, b.Failed, b.Revision)
	}
	return tw.Flush()
}

func (h *HistoryCmd) printLessons(ctx context.Context, g *Global, store history.Store) error {
	lessons, err := store.Lessons(ctx, h.Build)
	if err != nil {
		return err
	}
	if len(lessons) == 0 {
		return ferrors.ValidationError("no lessons recorded for build").
			WithContext("build_id", h.Build).
			Build()
	}
	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	printf(tw, "KIND\tLESSON\tSTATE\tFRAGMENTS\tDURATION\tOUTPUT\n")
	for _, l := range lessons {
		printf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			l.Kind, l.Name, l.State, l.Fragments, l.Duration.Truncate(time.Millisecond), l.Output)
	}
	return tw.Flush()
}
