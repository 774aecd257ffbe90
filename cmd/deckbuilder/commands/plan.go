package commands

import (
	"git.home.luguber.info/inful/deckbuilder/internal/extract"
)

// PlanCmd implements the 'plan' command: it prints the commands a build would
// run, in order, without executing anything.
type PlanCmd struct{}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	w := g.out()

	if ex := extract.New(nil, cfg.Extract.Command); ex.Enabled() {
		printf(w, "%s\n", ex.Invocation())
	}

	steps, err := planSteps(cfg)
	for _, step := range steps {
		if step.Err != nil {
			printf(w, "# %s/%s: %v\n", step.Kind, step.Lesson, step.Err)
			continue
		}
		printf(w, "%s\n", step.Invocation)
	}
	return err
}
