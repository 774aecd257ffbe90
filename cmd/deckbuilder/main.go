package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/deckbuilder/cmd/deckbuilder/commands"
	"git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("deckbuilder"),
		kong.Description("Build HTML slide decks and exercise sheets from lesson Markdown fragments."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(&commands.Global{Out: os.Stdout}, cli),
	)

	err := parser.Run()
	errors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
}
