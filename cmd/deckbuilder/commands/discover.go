package commands

import (
	"git.home.luguber.info/inful/deckbuilder/internal/config"
	"git.home.luguber.info/inful/deckbuilder/internal/pipeline"
	"git.home.luguber.info/inful/deckbuilder/internal/render"
)

// DiscoverCmd implements the 'discover' command.
type DiscoverCmd struct{}

func (d *DiscoverCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	steps, err := planSteps(cfg)
	w := g.out()
	for _, step := range steps {
		printf(w, "%s/%s (%s)\n", step.Kind, step.Lesson, step.Source)
		if step.Err != nil {
			printf(w, "  error: %v\n", step.Err)
			continue
		}
		for _, f := range step.Fragments {
			printf(w, "  %s\n", f)
		}
	}
	return err
}

// planSteps resolves every lesson without side effects.
func planSteps(cfg *config.Config) ([]pipeline.Step, error) {
	env, err := render.CaptureEnv()
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, env).Plan()
}
