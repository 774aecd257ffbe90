package commands

import (
	"path/filepath"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory to write deckbuilder.yaml into"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	cfgPath := root.Config
	if i.Output != "" {
		cfgPath = filepath.Join(i.Output, "deckbuilder.yaml")
	}
	if err := config.Init(cfgPath, i.Force); err != nil {
		return err
	}
	printf(g.out(), "Wrote configuration to %s\n", cfgPath)
	return nil
}
